package main

import "time"

// BackendEvent is the envelope every inbound backend event arrives in.
// EventSeq is an observation counter only; Order, when present, is
// authoritative for transcript placement.
type BackendEvent struct {
	ID       string
	EventSeq uint64
	Order    *OrderMeta
	Msg      EventPayload
}

// EventPayload is the closed set of event variants the core observes.
type EventPayload interface{ eventPayload() }

type SessionConfiguredEvent struct {
	SessionID      string
	Model          string
	RequestedModel string
	HistoryLogID   uint64
	HistoryOffset  int
}

type TaskStartedEvent struct {
	TaskID string
}

type TaskCompleteEvent struct {
	TaskID          string
	LastAgentMessge string
}

type AgentMessageEvent struct {
	StreamID string
	Message  string
}

type AgentMessageDeltaEvent struct {
	StreamID string
	Delta    string
}

type AgentReasoningEvent struct {
	StreamID string
	Text     string
}

type AgentReasoningDeltaEvent struct {
	StreamID string
	Delta    string
}

type AgentReasoningRawContentEvent struct {
	StreamID string
	Text     string
}

type AgentReasoningRawContentDeltaEvent struct {
	StreamID string
	Delta    string
}

type AgentReasoningSectionBreakEvent struct {
	StreamID string
}

type ExecCommandBeginEvent struct {
	CallID  string
	Command []string
	Cwd     string
}

type ExecCommandOutputDeltaEvent struct {
	CallID string
	Stream ExecOutputStream
	Chunk  []byte
}

type ExecOutputStream int

const (
	ExecStreamStdout ExecOutputStream = iota
	ExecStreamStderr
)

type ExecCommandEndEvent struct {
	CallID   string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// FileChange describes one file in a patch set. MovePath is set for renames.
type FileChange struct {
	Path     string
	MovePath string
	Kind     FileChangeKind
	Diff     string
}

type FileChangeKind int

const (
	FileChangeUpdate FileChangeKind = iota
	FileChangeAdd
	FileChangeDelete
)

type PatchApplyBeginEvent struct {
	CallID      string
	AutoApprove bool
	Changes     []FileChange
}

type PatchApplyEndEvent struct {
	CallID  string
	Success bool
	Stdout  string
	Stderr  string
}

type McpToolCallBeginEvent struct {
	CallID string
	Server string
	Tool   string
	Input  string
}

type McpToolCallEndEvent struct {
	CallID string
	Result string
	Err    string
}

type WebSearchBeginEvent struct {
	CallID string
}

type WebSearchCompleteEvent struct {
	CallID string
	Query  string
}

type CustomToolCallBeginEvent struct {
	CallID string
	Tool   string
	Input  string
}

type CustomToolCallEndEvent struct {
	CallID   string
	Success  bool
	Result   string
	Duration time.Duration
}

type ExecApprovalRequestEvent struct {
	CallID  string
	Command []string
	Cwd     string
	Reason  string
}

type ApplyPatchApprovalRequestEvent struct {
	CallID  string
	Changes []FileChange
	Reason  string
}

type PlanStepStatus int

const (
	PlanStepPending PlanStepStatus = iota
	PlanStepInProgress
	PlanStepCompleted
)

type PlanStep struct {
	Step   string
	Status PlanStepStatus
}

type PlanUpdateEvent struct {
	Name  string
	Steps []PlanStep
}

type TokenCountEvent struct {
	InputTokens  int
	CachedTokens int
	OutputTokens int
	ContextUsed  int
	ContextLimit int
}

// RateLimitWindow reports consumption of one provider rate-limit window.
type RateLimitWindow struct {
	Label       string
	UsedPercent float64
	ResetsAt    time.Time
}

type RateLimitEvent struct {
	Windows []RateLimitWindow
}

// BackgroundNoticeEvent carries out-of-band notices (retry chatter, upgrade
// hints). A non-empty NoticeID makes a later event with the same id replace
// the earlier cell in place.
type BackgroundNoticeEvent struct {
	NoticeID string
	Message  string
}

type ErrorEvent struct {
	Message string
}

type AgentStatus int

const (
	AgentPending AgentStatus = iota
	AgentRunning
	AgentCompleted
	AgentFailed
	AgentCancelled
)

type AgentStatusInfo struct {
	Name      string
	Status    AgentStatus
	StartedAt time.Time
	EndedAt   time.Time
	Detail    string
}

type AgentStatusUpdateEvent struct {
	Agents []AgentStatusInfo
}

// UserMessageEvent records a user prompt in the event journal. Live turns
// insert the prompt cell through the submission pipeline instead; this event
// only appears inside replayed history.
type UserMessageEvent struct {
	Message string
}

// ReplayHistoryEvent replays a previously journaled event stream on resume;
// the core reconstructs cells in order from the wrapped events.
type ReplayHistoryEvent struct {
	Events []BackendEvent
}

func (SessionConfiguredEvent) eventPayload()             {}
func (TaskStartedEvent) eventPayload()                   {}
func (TaskCompleteEvent) eventPayload()                  {}
func (AgentMessageEvent) eventPayload()                  {}
func (AgentMessageDeltaEvent) eventPayload()             {}
func (AgentReasoningEvent) eventPayload()                {}
func (AgentReasoningDeltaEvent) eventPayload()           {}
func (AgentReasoningRawContentEvent) eventPayload()      {}
func (AgentReasoningRawContentDeltaEvent) eventPayload() {}
func (AgentReasoningSectionBreakEvent) eventPayload()    {}
func (ExecCommandBeginEvent) eventPayload()              {}
func (ExecCommandOutputDeltaEvent) eventPayload()        {}
func (ExecCommandEndEvent) eventPayload()                {}
func (PatchApplyBeginEvent) eventPayload()               {}
func (PatchApplyEndEvent) eventPayload()                 {}
func (McpToolCallBeginEvent) eventPayload()              {}
func (McpToolCallEndEvent) eventPayload()                {}
func (WebSearchBeginEvent) eventPayload()                {}
func (WebSearchCompleteEvent) eventPayload()             {}
func (CustomToolCallBeginEvent) eventPayload()           {}
func (CustomToolCallEndEvent) eventPayload()             {}
func (ExecApprovalRequestEvent) eventPayload()           {}
func (ApplyPatchApprovalRequestEvent) eventPayload()     {}
func (PlanUpdateEvent) eventPayload()                    {}
func (TokenCountEvent) eventPayload()                    {}
func (RateLimitEvent) eventPayload()                     {}
func (BackgroundNoticeEvent) eventPayload()              {}
func (ErrorEvent) eventPayload()                         {}
func (AgentStatusUpdateEvent) eventPayload()             {}
func (UserMessageEvent) eventPayload()                   {}
func (ReplayHistoryEvent) eventPayload()                 {}

// Op is the closed set of outbound operations the core sends to the backend.
type Op interface{ backendOp() }

// InputItem is one element of a user submission.
type InputItem interface{ inputItem() }

type TextItem struct{ Text string }

// LocalImage references an image on disk attached to the prompt.
type LocalImage struct{ Path string }

// EphemeralImage is pasted or dragged content that only lives for one prompt.
type EphemeralImage struct {
	Name string
	Path string
}

func (TextItem) inputItem()       {}
func (LocalImage) inputItem()     {}
func (EphemeralImage) inputItem() {}

type UserInputOp struct{ Items []InputItem }

// QueueUserInputOp enqueues input on the backend without starting a turn.
type QueueUserInputOp struct{ Items []InputItem }

type InterruptOp struct{}

type ShutdownOp struct{}

type AddToHistoryOp struct{ Text string }

type ConfigureSessionOp struct {
	Model          string
	Provider       string
	Effort         string
	Verbosity      string
	Cwd            string
	ApprovalPolicy string
	SandboxPolicy  string
}

type ApprovedCommandMatchKind int

const (
	ApprovedCommandExact ApprovedCommandMatchKind = iota
	ApprovedCommandPrefix
)

type RegisterApprovedCommandOp struct {
	Command        []string
	MatchKind      ApprovedCommandMatchKind
	SemanticPrefix []string
}

type GetHistoryEntryRequestOp struct {
	LogID  uint64
	Offset int
}

type UpdateValidationToolOp struct {
	Name   string
	Enable bool
}

type UpdateValidationGroupOp struct {
	Group  string
	Enable bool
}

type RunProjectCommandOp struct {
	Name    string
	Command []string
	Display string
	Env     map[string]string
}

// Approval decisions sent back for ExecApprovalRequest / ApplyPatchApprovalRequest.
type ApprovalDecision int

const (
	ApprovalDenied ApprovalDecision = iota
	ApprovalApproved
	ApprovalApprovedForSession
)

type ApprovalResponseOp struct {
	CallID   string
	Decision ApprovalDecision
}

func (UserInputOp) backendOp()               {}
func (QueueUserInputOp) backendOp()          {}
func (InterruptOp) backendOp()               {}
func (ShutdownOp) backendOp()                {}
func (AddToHistoryOp) backendOp()            {}
func (ConfigureSessionOp) backendOp()        {}
func (RegisterApprovedCommandOp) backendOp() {}
func (GetHistoryEntryRequestOp) backendOp()  {}
func (UpdateValidationToolOp) backendOp()    {}
func (UpdateValidationGroupOp) backendOp()   {}
func (RunProjectCommandOp) backendOp()       {}
func (ApprovalResponseOp) backendOp()        {}
