package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }

func TestOrderKeyLess(t *testing.T) {
	tests := []struct {
		name string
		a, b OrderKey
		less bool
	}{
		{"request dominates", OrderKey{Req: 1, Out: 100, Seq: 100}, OrderKey{Req: 2}, true},
		{"output breaks request tie", OrderKey{Req: 2, Out: 1, Seq: 50}, OrderKey{Req: 2, Out: 2}, true},
		{"sequence breaks output tie", OrderKey{Req: 2, Out: 1, Seq: 3}, OrderKey{Req: 2, Out: 1, Seq: 4}, true},
		{"equal keys", OrderKey{Req: 2, Out: 1, Seq: 3}, OrderKey{Req: 2, Out: 1, Seq: 3}, false},
		{"negative out sorts first", OrderKey{Req: 2, Out: outBanner}, OrderKey{Req: 2, Out: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.less, tt.a.Less(tt.b))
			if tt.less {
				require.False(t, tt.b.Less(tt.a))
				require.True(t, tt.a.LessEq(tt.b))
			}
		})
	}
}

func TestOrderTrackerFromOrderMeta(t *testing.T) {
	tr := &orderTracker{}

	key := tr.fromOrderMeta(&OrderMeta{RequestOrdinal: 7, OutputIndex: u64(3), SequenceNumber: u64(12)})
	require.Equal(t, OrderKey{Req: 7, Out: 3, Seq: 12}, key)

	// Missing optional fields default to zero.
	key = tr.fromOrderMeta(&OrderMeta{RequestOrdinal: 7})
	require.Equal(t, OrderKey{Req: 7, Out: 0, Seq: 0}, key)
}

func TestOrderTrackerNoteOrder(t *testing.T) {
	tr := &orderTracker{}

	tr.noteOrder(nil)
	require.EqualValues(t, 0, tr.lastSeenReq)

	tr.noteOrder(&OrderMeta{RequestOrdinal: 5})
	require.EqualValues(t, 5, tr.lastSeenReq)

	// Older ordinals never move the watermark backwards.
	tr.noteOrder(&OrderMeta{RequestOrdinal: 2})
	require.EqualValues(t, 5, tr.lastSeenReq)
}

func TestOrderTrackerBandOrdering(t *testing.T) {
	tr := &orderTracker{}
	tr.noteOrder(&OrderMeta{RequestOrdinal: 1})

	banner := tr.bannerKey()
	prompt := tr.nextPromptKey()
	afterPrompt := tr.nextAfterPromptKey()
	output := tr.fromOrderMeta(&OrderMeta{RequestOrdinal: 2, OutputIndex: u64(0)})
	tr.noteOrder(&OrderMeta{RequestOrdinal: 2})
	trailer := tr.nextInternal()

	// Within a turn: banner, then prompt, then pre-output notices, then
	// provider output, then trailing notices.
	require.True(t, banner.Less(prompt))
	require.True(t, prompt.Less(afterPrompt))
	require.True(t, afterPrompt.Less(output))
	require.True(t, output.Less(trailer))
}

func TestOrderTrackerPromptKeysAdvance(t *testing.T) {
	tr := &orderTracker{}
	tr.noteOrder(&OrderMeta{RequestOrdinal: 3})

	first := tr.nextPromptKey()
	require.EqualValues(t, 4, first.Req)

	// A second locally entered prompt lands in its own turn bucket.
	second := tr.nextPromptKey()
	require.EqualValues(t, 5, second.Req)
	require.True(t, first.Less(second))

	// Once the provider catches up, the synthetic ordinal stays ahead.
	tr.noteOrder(&OrderMeta{RequestOrdinal: 9})
	third := tr.nextPromptKey()
	require.EqualValues(t, 10, third.Req)
}

func TestOrderTrackerInternalWithQueuedPrompt(t *testing.T) {
	tr := &orderTracker{}
	tr.noteOrder(&OrderMeta{RequestOrdinal: 3})

	plain := tr.nextInternal()
	require.EqualValues(t, 3, plain.Req)

	tr.promptQueued = true
	queued := tr.nextInternal()
	require.EqualValues(t, 4, queued.Req)
	require.True(t, plain.Less(queued))
}

func TestOrderTrackerNearTimeKey(t *testing.T) {
	tr := &orderTracker{}
	tr.noteOrder(&OrderMeta{RequestOrdinal: 2})

	// Explicit ordering wins.
	key := tr.nearTimeKey(&OrderMeta{RequestOrdinal: 5, OutputIndex: u64(1)}, func(uint64) (OrderKey, bool) {
		t.Fatal("lastInReq must not be consulted when meta is present")
		return OrderKey{}, false
	})
	require.Equal(t, OrderKey{Req: 5, Out: 1}, key)

	// Without meta, slot right after the last cell of the current request.
	last := OrderKey{Req: 2, Out: 1, Seq: 7}
	key = tr.nearTimeKey(nil, func(req uint64) (OrderKey, bool) {
		require.EqualValues(t, 2, req)
		return last, true
	})
	require.Equal(t, OrderKey{Req: 2, Out: 1, Seq: 8}, key)
	require.True(t, last.Less(key))

	// Empty request bucket falls back to the zero output band.
	key = tr.nearTimeKey(nil, func(uint64) (OrderKey, bool) { return OrderKey{}, false })
	require.EqualValues(t, 2, key.Req)
	require.EqualValues(t, 0, key.Out)
}
