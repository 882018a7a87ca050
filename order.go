package main

import "math"

// OrderMeta is the ordering envelope the backend attaches to events. When
// present it is authoritative for transcript placement.
type OrderMeta struct {
	RequestOrdinal uint64  `json:"request_ordinal"`
	OutputIndex    *uint64 `json:"output_index,omitempty"`
	SequenceNumber *uint64 `json:"sequence_number,omitempty"`
}

// OrderKey totally orders transcript cells across turns. Comparison is
// lexicographic over (Req, Out, Seq).
type OrderKey struct {
	Req uint64
	Out int32
	Seq uint64
}

// Reserved Out values. Provider output indices are non-negative, so the
// negative band below is free for internal placement.
const (
	outBanner       = math.MinInt32     // pre-prompt banner (headers, welcome)
	outUserPrompt   = math.MinInt32 + 1 // the user prompt within a request
	outPromptNotice = math.MinInt32 + 2 // internal notice between prompt and model output
	outTrailer      = math.MaxInt32     // trailing internal notice at end of request
)

func (k OrderKey) Less(o OrderKey) bool {
	if k.Req != o.Req {
		return k.Req < o.Req
	}
	if k.Out != o.Out {
		return k.Out < o.Out
	}
	return k.Seq < o.Seq
}

func (k OrderKey) LessEq(o OrderKey) bool {
	return !o.Less(k)
}

// orderTracker issues keys for items that arrive without authoritative
// ordering: internal notices, user prompts, and provider events missing
// OrderMeta. It tracks the highest request ordinal observed so synthetic
// keys stay monotone relative to provider keys.
type orderTracker struct {
	lastSeenReq uint64
	promptReq   uint64 // synthetic req of the most recent locally entered prompt
	internalSeq uint64
	// set while a user prompt sits in the queue waiting for the next turn;
	// internal notices must then sort after the current turn but before
	// that prompt's output.
	promptQueued bool
}

// noteOrder must be called with the event's OrderMeta (which may be nil)
// before any key derivation for that event.
func (t *orderTracker) noteOrder(m *OrderMeta) {
	if m == nil {
		return
	}
	if m.RequestOrdinal > t.lastSeenReq {
		t.lastSeenReq = m.RequestOrdinal
	}
}

func (t *orderTracker) nextSeq() uint64 {
	t.internalSeq++
	return t.internalSeq
}

// fromOrderMeta embeds provider ordering directly.
func (t *orderTracker) fromOrderMeta(m *OrderMeta) OrderKey {
	k := OrderKey{Req: m.RequestOrdinal}
	if m.OutputIndex != nil {
		k.Out = int32(*m.OutputIndex)
	}
	if m.SequenceNumber != nil {
		k.Seq = *m.SequenceNumber
	}
	return k
}

// nextInternal keys a notice anchored to the currently active request so it
// trails any provider output already placed there.
func (t *orderTracker) nextInternal() OrderKey {
	req := t.lastSeenReq
	if req < 1 {
		req = 1
	}
	if t.promptQueued {
		req++
	}
	return OrderKey{Req: req, Out: outTrailer, Seq: t.nextSeq()}
}

// nextPromptKey keys a just-entered user prompt. The synthetic req always
// exceeds the highest provider ordinal seen so the prompt lands in a fresh
// turn bucket; it is reconciled later when the provider assigns the real
// ordinal (see pendingUserCellUpdates).
func (t *orderTracker) nextPromptKey() OrderKey {
	if t.promptReq <= t.lastSeenReq {
		t.promptReq = t.lastSeenReq + 1
	} else {
		t.promptReq++
	}
	return OrderKey{Req: t.promptReq, Out: outUserPrompt, Seq: t.nextSeq()}
}

// nextAfterPromptKey keys a notice that must follow the most recent user
// prompt but precede any provider output of that turn.
func (t *orderTracker) nextAfterPromptKey() OrderKey {
	req := t.promptReq
	if req <= t.lastSeenReq {
		req = t.lastSeenReq + 1
	}
	return OrderKey{Req: req, Out: outPromptNotice, Seq: t.nextSeq()}
}

// bannerKey keys pre-prompt content rendered before the first turn.
func (t *orderTracker) bannerKey() OrderKey {
	req := t.lastSeenReq
	if req < 1 {
		req = 1
	}
	return OrderKey{Req: req, Out: outBanner, Seq: t.nextSeq()}
}

// nearTimeKey honors explicit ordering when present; otherwise the caller
// supplies the key of the last cell in the current request bucket and the
// derived key slots immediately after it. Used for provider events that
// arrive without OrderMeta (plan updates and the like).
func (t *orderTracker) nearTimeKey(m *OrderMeta, lastInReq func(req uint64) (OrderKey, bool)) OrderKey {
	if m != nil {
		return t.fromOrderMeta(m)
	}
	req := t.lastSeenReq
	if req < 1 {
		req = 1
	}
	if last, ok := lastInReq(req); ok {
		return OrderKey{Req: req, Out: last.Out, Seq: last.Seq + 1}
	}
	return OrderKey{Req: req, Out: 0, Seq: t.nextSeq()}
}
