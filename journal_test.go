package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// unregisteredEvent is a payload the journal codec knows nothing about.
type unregisteredEvent struct{}

func (unregisteredEvent) eventPayload() {}

func roundTripEvent(t *testing.T, ev BackendEvent) BackendEvent {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var got BackendEvent
	require.NoError(t, json.Unmarshal(data, &got))
	return got
}

func TestBackendEventRoundTrip(t *testing.T) {
	ev := BackendEvent{
		ID:       "ev-1",
		EventSeq: 42,
		Order:    &OrderMeta{RequestOrdinal: 3, OutputIndex: u64(1), SequenceNumber: u64(9)},
		Msg:      AgentMessageEvent{StreamID: "s1", Message: "final answer"},
	}

	got := roundTripEvent(t, ev)
	require.Equal(t, ev.ID, got.ID)
	require.Equal(t, ev.EventSeq, got.EventSeq)
	require.Equal(t, ev.Order, got.Order)
	require.Equal(t, ev.Msg, got.Msg)
}

func TestBackendEventRoundTripExecEnd(t *testing.T) {
	ev := BackendEvent{
		EventSeq: 7,
		Msg: ExecCommandEndEvent{
			CallID:   "c1",
			ExitCode: 1,
			Stdout:   "out",
			Stderr:   "err",
			Duration: 250 * time.Millisecond,
		},
	}

	got := roundTripEvent(t, ev)
	require.Equal(t, ev.Msg, got.Msg)
	require.Nil(t, got.Order)
}

func TestBackendEventRoundTripUserMessage(t *testing.T) {
	ev := BackendEvent{Msg: UserMessageEvent{Message: "do the thing"}}
	got := roundTripEvent(t, ev)
	require.Equal(t, ev.Msg, got.Msg)
}

func TestBackendEventTypeTag(t *testing.T) {
	data, err := json.Marshal(BackendEvent{Msg: TokenCountEvent{InputTokens: 10}})
	require.NoError(t, err)

	var env eventEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, "token_count", env.Type)
}

func TestBackendEventMarshalUnregisteredType(t *testing.T) {
	_, err := json.Marshal(BackendEvent{Msg: unregisteredEvent{}})
	require.Error(t, err)
}

func TestBackendEventUnmarshalUnknownType(t *testing.T) {
	var ev BackendEvent
	err := json.Unmarshal([]byte(`{"event_seq":1,"type":"no_such_event","payload":{}}`), &ev)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no_such_event")
}

func TestBackendEventUnmarshalBadPayload(t *testing.T) {
	var ev BackendEvent
	err := json.Unmarshal([]byte(`{"event_seq":1,"type":"exec_end","payload":[1,2]}`), &ev)
	require.Error(t, err)
}

// Every registered type name must decode back to the payload type that
// produced it, or resumed sessions would drop events.
func TestEventDecodersCoverAllTypeNames(t *testing.T) {
	payloads := []EventPayload{
		SessionConfiguredEvent{},
		TaskStartedEvent{},
		TaskCompleteEvent{},
		AgentMessageEvent{},
		AgentMessageDeltaEvent{},
		AgentReasoningEvent{},
		AgentReasoningDeltaEvent{},
		AgentReasoningRawContentEvent{},
		AgentReasoningRawContentDeltaEvent{},
		AgentReasoningSectionBreakEvent{},
		ExecCommandBeginEvent{},
		ExecCommandOutputDeltaEvent{},
		ExecCommandEndEvent{},
		PatchApplyBeginEvent{},
		PatchApplyEndEvent{},
		McpToolCallBeginEvent{},
		McpToolCallEndEvent{},
		WebSearchBeginEvent{},
		WebSearchCompleteEvent{},
		CustomToolCallBeginEvent{},
		CustomToolCallEndEvent{},
		ExecApprovalRequestEvent{},
		ApplyPatchApprovalRequestEvent{},
		PlanUpdateEvent{},
		TokenCountEvent{},
		RateLimitEvent{},
		BackgroundNoticeEvent{},
		ErrorEvent{},
		AgentStatusUpdateEvent{},
		UserMessageEvent{},
		ReplayHistoryEvent{},
	}
	for _, p := range payloads {
		name := eventTypeName(p)
		require.NotEmpty(t, name, "missing type name for %T", p)
		_, ok := eventDecoders[name]
		require.True(t, ok, "missing decoder for %s", name)
	}
}
