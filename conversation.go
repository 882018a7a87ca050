package main

import (
	"time"
)

// BackendClient is the outbound half of the backend contract; ops never
// block the caller.
type BackendClient interface {
	Submit(op Op)
}

// NoticePlacement controls where a background notice lands relative to the
// turn structure.
type NoticePlacement int

const (
	// PlaceTail appends at the end of the current request.
	PlaceTail NoticePlacement = iota
	// PlaceBeforeNextOutput slots the notice before the next provider
	// output of the upcoming turn when a prompt is queued, else pre-prompt.
	PlaceBeforeNextOutput
)

/// Conversation owns all conversation state: the transcript, the layout
// cache, stream and tracker components, and the submission pipeline. It is
// single-owner state driven by the event loop; handlers never block.
type Conversation struct {
	order      *orderTracker
	layout     *LayoutCache
	trans      *Transcript
	streams    *StreamController
	execs      *ExecTracker
	tools      *ToolTracker
	patches    *PatchTracker
	interrupts *InterruptManager
	submitter  *InputSubmitter

	backend BackendClient

	// notify posts messages to the host program (the bubbletea loop);
	// schedule arranges a later notify without blocking a handler.
	notify   func(any)
	schedule func(d time.Duration, msg any)

	sessionID     string
	sessionBanner bool
	taskRunning   bool
	activeTasks   map[string]bool
	interruptSent bool

	agents    []AgentStatusInfo
	planTitle string

	tokens       TokenCountEvent
	rateLimits   RateLimitEvent
	rateWarned   map[string]int // window label -> highest threshold warned
	lastRatePoll time.Time
}

func NewConversation(backend BackendClient, notify func(any), schedule func(time.Duration, any)) *Conversation {
	if notify == nil {
		notify = func(any) {}
	}
	if schedule == nil {
		schedule = func(time.Duration, any) {}
	}
	order := &orderTracker{}
	layout := NewLayoutCache(80)
	trans := NewTranscript(layout)
	c := &Conversation{
		order:       order,
		layout:      layout,
		trans:       trans,
		streams:     NewStreamController(trans, order),
		execs:       NewExecTracker(trans),
		tools:       NewToolTracker(trans),
		patches:     NewPatchTracker(trans),
		interrupts:  &InterruptManager{},
		backend:     backend,
		notify:      notify,
		schedule:    schedule,
		activeTasks: map[string]bool{},
		rateWarned:  map[string]int{},
	}
	c.submitter = NewInputSubmitter(c)
	c.submitter.queueOnBackend = backend != nil
	return c
}

// SetBackend swaps the backend once a session is established. The session
// keeps its own mid-turn input queue, so queued prompts are mirrored to it.
func (c *Conversation) SetBackend(backend BackendClient) {
	c.backend = backend
	c.submitter.queueOnBackend = backend != nil
}

// submit forwards an op to the backend, tolerating a not-yet-configured
// session.
func (c *Conversation) submit(op Op) {
	if c.backend != nil {
		c.backend.Submit(op)
	}
}

func (c *Conversation) Transcript() *Transcript { return c.trans }
func (c *Conversation) Layout() *LayoutCache    { return c.layout }
func (c *Conversation) TaskRunning() bool       { return c.taskRunning }

// ToggleReasoning flips the visibility of every reasoning cell in the
// transcript and sets the default collapse state for cells finalized later.
// Returns the new state: true means reasoning is now collapsed.
func (c *Conversation) ToggleReasoning() bool {
	collapsed := !c.streams.reasoningCollapsed
	c.streams.SetReasoningCollapsed(collapsed)
	for i := 0; i < c.trans.Len(); i++ {
		if rc, ok := c.trans.CellAt(i).(*ReasoningCell); ok && rc.Collapsed != collapsed {
			rc.Collapsed = collapsed
			c.layout.InvalidateAt(i)
		}
	}
	return collapsed
}

// Reset drops all conversation state for a fresh start, keeping the
// backend wiring and host hooks.
func (c *Conversation) Reset() {
	c.order = &orderTracker{}
	c.trans = NewTranscript(c.layout)
	c.layout.InvalidateAll()
	c.streams = NewStreamController(c.trans, c.order)
	c.execs = NewExecTracker(c.trans)
	c.tools = NewToolTracker(c.trans)
	c.patches = NewPatchTracker(c.trans)
	c.interrupts = &InterruptManager{}
	c.submitter = NewInputSubmitter(c)
	c.submitter.queueOnBackend = c.backend != nil
	c.sessionBanner = false
	c.taskRunning = false
	c.activeTasks = map[string]bool{}
	c.interruptSent = false
	c.agents = nil
	c.planTitle = ""
	c.tokens = TokenCountEvent{}
	c.rateLimits = RateLimitEvent{}
	c.rateWarned = map[string]int{}
}

// TurnActive reports whether submitting now should queue instead of
// dispatching: a task is running, a stream is open, or messages already sit
// in the queue.
func (c *Conversation) TurnActive() bool {
	return c.taskRunning || c.streams.OpenStreams() || c.submitter.QueuedCount() > 0
}

// Quiescent is true when no stream, exec, tool, agent, or task is active.
func (c *Conversation) Quiescent() bool {
	if c.taskRunning || len(c.activeTasks) > 0 {
		return false
	}
	if c.streams.OpenStreams() || c.execs.RunningCount() > 0 || c.tools.RunningCount() > 0 {
		return false
	}
	return c.agentsTerminal()
}

func (c *Conversation) agentsTerminal() bool {
	for _, a := range c.agents {
		switch a.Status {
		case AgentPending, AgentRunning:
			return false
		}
	}
	return true
}

// maybeClearRunning drops the running indicator once nothing is active.
func (c *Conversation) maybeClearRunning() {
	if len(c.activeTasks) == 0 && !c.streams.OpenStreams() &&
		c.execs.RunningCount() == 0 && c.tools.RunningCount() == 0 && c.agentsTerminal() {
		c.taskRunning = false
	}
}

// InsertBackgroundNotice places an out-of-band notice. A non-empty id
// replaces an earlier notice with the same id in place.
func (c *Conversation) InsertBackgroundNotice(id, message string, placement NoticePlacement) {
	if id != "" {
		idx := c.trans.IndexWhere(func(cell Cell) bool {
			nc, ok := cell.(*NoticeCell)
			return ok && nc.NoticeID == id
		})
		if idx >= 0 {
			c.trans.ReplaceAt(idx, &NoticeCell{NoticeID: id, Text: message, Dim: true})
			return
		}
	}
	var key OrderKey
	switch placement {
	case PlaceBeforeNextOutput:
		if c.submitter.QueuedCount() > 0 || c.submitter.DispatchPending() {
			key = c.order.nextAfterPromptKey()
		} else {
			key = c.order.bannerKey()
		}
	default:
		key = c.order.nextInternal()
	}
	c.trans.Insert(&NoticeCell{NoticeID: id, Text: message, Dim: true}, key, "notice")
}

// insertInternalNotice appends a normal (non-dim) notice at the tail of the
// current request.
func (c *Conversation) insertInternalNotice(text string) {
	c.trans.Insert(&NoticeCell{Text: text}, c.order.nextInternal(), "notice")
}

func (c *Conversation) insertError(text, hint string) {
	c.trans.Insert(&ErrorCell{Text: text, Hint: hint}, c.order.nextInternal(), "error")
}

// Interrupt cancels all active work and tells the backend to stop. It
// returns true when there was running state to cancel.
func (c *Conversation) Interrupt() bool {
	active := c.taskRunning || len(c.activeTasks) > 0 || c.streams.OpenStreams() ||
		c.execs.RunningCount() > 0 || c.tools.RunningCount() > 0
	if !active {
		c.interruptSent = false
		return false
	}

	// the wait tool itself is running state, but interrupting it is not
	// worth a cancellation notice
	waitOnly := c.execs.WaitOnlyRunning() &&
		c.tools.RunningCount() == c.tools.WaitCount() &&
		!c.streams.OpenStreams()

	c.streams.SetDropStreaming(true)
	c.streams.FinalizeOpen()
	c.streams.CancelAll()
	c.execs.InterruptAll()
	c.tools.InterruptAll()
	c.interrupts.Drop()
	c.activeTasks = map[string]bool{}
	c.taskRunning = false
	c.agents = nil
	c.planTitle = ""

	if !waitOnly {
		c.insertInternalNotice("Cancelled by user.")
	}
	if !c.interruptSent {
		c.submit(InterruptOp{})
		c.interruptSent = true
	}
	return true
}
