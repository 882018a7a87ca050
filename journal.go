package main

import (
	"encoding/json"
	"fmt"
)

// The event journal persists BackendEvent values whose payload is an
// interface, so the JSON form carries a type tag next to the payload body.
type eventEnvelope struct {
	ID       string          `json:"id,omitempty"`
	EventSeq uint64          `json:"event_seq"`
	Order    *OrderMeta      `json:"order,omitempty"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}

func eventTypeName(msg EventPayload) string {
	switch msg.(type) {
	case SessionConfiguredEvent:
		return "session_configured"
	case TaskStartedEvent:
		return "task_started"
	case TaskCompleteEvent:
		return "task_complete"
	case AgentMessageEvent:
		return "agent_message"
	case AgentMessageDeltaEvent:
		return "agent_message_delta"
	case AgentReasoningEvent:
		return "agent_reasoning"
	case AgentReasoningDeltaEvent:
		return "agent_reasoning_delta"
	case AgentReasoningRawContentEvent:
		return "agent_reasoning_raw"
	case AgentReasoningRawContentDeltaEvent:
		return "agent_reasoning_raw_delta"
	case AgentReasoningSectionBreakEvent:
		return "agent_reasoning_section_break"
	case ExecCommandBeginEvent:
		return "exec_begin"
	case ExecCommandOutputDeltaEvent:
		return "exec_output_delta"
	case ExecCommandEndEvent:
		return "exec_end"
	case PatchApplyBeginEvent:
		return "patch_begin"
	case PatchApplyEndEvent:
		return "patch_end"
	case McpToolCallBeginEvent:
		return "mcp_tool_begin"
	case McpToolCallEndEvent:
		return "mcp_tool_end"
	case WebSearchBeginEvent:
		return "web_search_begin"
	case WebSearchCompleteEvent:
		return "web_search_complete"
	case CustomToolCallBeginEvent:
		return "custom_tool_begin"
	case CustomToolCallEndEvent:
		return "custom_tool_end"
	case ExecApprovalRequestEvent:
		return "exec_approval_request"
	case ApplyPatchApprovalRequestEvent:
		return "patch_approval_request"
	case PlanUpdateEvent:
		return "plan_update"
	case TokenCountEvent:
		return "token_count"
	case RateLimitEvent:
		return "rate_limit"
	case BackgroundNoticeEvent:
		return "background_notice"
	case ErrorEvent:
		return "error"
	case AgentStatusUpdateEvent:
		return "agent_status"
	case UserMessageEvent:
		return "user_message"
	case ReplayHistoryEvent:
		return "replay_history"
	}
	return ""
}

func decodeAs[T EventPayload](raw json.RawMessage) (EventPayload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var eventDecoders = map[string]func(json.RawMessage) (EventPayload, error){
	"session_configured":            decodeAs[SessionConfiguredEvent],
	"task_started":                  decodeAs[TaskStartedEvent],
	"task_complete":                 decodeAs[TaskCompleteEvent],
	"agent_message":                 decodeAs[AgentMessageEvent],
	"agent_message_delta":           decodeAs[AgentMessageDeltaEvent],
	"agent_reasoning":               decodeAs[AgentReasoningEvent],
	"agent_reasoning_delta":         decodeAs[AgentReasoningDeltaEvent],
	"agent_reasoning_raw":           decodeAs[AgentReasoningRawContentEvent],
	"agent_reasoning_raw_delta":     decodeAs[AgentReasoningRawContentDeltaEvent],
	"agent_reasoning_section_break": decodeAs[AgentReasoningSectionBreakEvent],
	"exec_begin":                    decodeAs[ExecCommandBeginEvent],
	"exec_output_delta":             decodeAs[ExecCommandOutputDeltaEvent],
	"exec_end":                      decodeAs[ExecCommandEndEvent],
	"patch_begin":                   decodeAs[PatchApplyBeginEvent],
	"patch_end":                     decodeAs[PatchApplyEndEvent],
	"mcp_tool_begin":                decodeAs[McpToolCallBeginEvent],
	"mcp_tool_end":                  decodeAs[McpToolCallEndEvent],
	"web_search_begin":              decodeAs[WebSearchBeginEvent],
	"web_search_complete":           decodeAs[WebSearchCompleteEvent],
	"custom_tool_begin":             decodeAs[CustomToolCallBeginEvent],
	"custom_tool_end":               decodeAs[CustomToolCallEndEvent],
	"exec_approval_request":         decodeAs[ExecApprovalRequestEvent],
	"patch_approval_request":        decodeAs[ApplyPatchApprovalRequestEvent],
	"plan_update":                   decodeAs[PlanUpdateEvent],
	"token_count":                   decodeAs[TokenCountEvent],
	"rate_limit":                    decodeAs[RateLimitEvent],
	"background_notice":             decodeAs[BackgroundNoticeEvent],
	"error":                         decodeAs[ErrorEvent],
	"agent_status":                  decodeAs[AgentStatusUpdateEvent],
	"user_message":                  decodeAs[UserMessageEvent],
	"replay_history":                decodeAs[ReplayHistoryEvent],
}

func (ev BackendEvent) MarshalJSON() ([]byte, error) {
	name := eventTypeName(ev.Msg)
	if name == "" {
		return nil, fmt.Errorf("unregistered event type %T", ev.Msg)
	}
	payload, err := json.Marshal(ev.Msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{
		ID:       ev.ID,
		EventSeq: ev.EventSeq,
		Order:    ev.Order,
		Type:     name,
		Payload:  payload,
	})
}

func (ev *BackendEvent) UnmarshalJSON(data []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	decode, ok := eventDecoders[env.Type]
	if !ok {
		return fmt.Errorf("unknown event type %q", env.Type)
	}
	msg, err := decode(env.Payload)
	if err != nil {
		return fmt.Errorf("decoding %s event: %w", env.Type, err)
	}
	ev.ID = env.ID
	ev.EventSeq = env.EventSeq
	ev.Order = env.Order
	ev.Msg = msg
	return nil
}
