package main

import (
	"log/slog"
	"strings"
	"time"
)

// orphanExecFlushDelay bounds how long an ExecCommandEnd may wait for its
// matching Begin before a fallback cell is rendered.
const orphanExecFlushDelay = 120 * time.Millisecond

// RunningCommand is the per-exec state held between Begin and End.
type RunningCommand struct {
	CallID  string
	Command []string
	Started time.Time

	Stdout strings.Builder
	Stderr strings.Builder

	WaitActive   bool
	WaitDuration time.Duration
	WaitNotes    []string

	// transcript index of the running cell; revalidated before use
	HistoryIndex int
}

type pendingExecEnd struct {
	event   ExecCommandEndEvent
	key     OrderKey
	arrived time.Time
}

// ExecTracker pairs exec begin/end events, buffers output, and renders
// progress into the transcript. Ends that arrive before their Begin sit in
// a bounded orphan buffer until the flush timer fires.
type ExecTracker struct {
	trans   *Transcript
	running map[string]*RunningCommand
	pending map[string]pendingExecEnd

	previewRows int
}

func NewExecTracker(trans *Transcript) *ExecTracker {
	return &ExecTracker{
		trans:       trans,
		running:     map[string]*RunningCommand{},
		pending:     map[string]pendingExecEnd{},
		previewRows: 5,
	}
}

func (x *ExecTracker) RunningCount() int { return len(x.running) }

func (x *ExecTracker) PendingEndCount() int { return len(x.pending) }

// Begin registers the command and inserts its running cell. A stashed
// orphan end for the same call id pairs immediately.
func (x *ExecTracker) Begin(ev ExecCommandBeginEvent, key OrderKey) {
	if pe, ok := x.pending[ev.CallID]; ok {
		delete(x.pending, ev.CallID)
		cell := completedExecCell(ev.CallID, ev.Command, pe.event)
		x.trans.Insert(cell, key, "exec-paired")
		return
	}

	rc := &RunningCommand{
		CallID:  ev.CallID,
		Command: ev.Command,
		Started: time.Now(),
	}
	cell := &ExecCell{CallID: ev.CallID, Command: ev.Command, Status: ExecRunning, started: rc.Started}
	rc.HistoryIndex = x.trans.Insert(cell, key, "exec-begin")
	x.running[ev.CallID] = rc
}

// OutputDelta appends to the stdout/stderr buffer and refreshes the running
// cell's live preview.
func (x *ExecTracker) OutputDelta(ev ExecCommandOutputDeltaEvent) {
	rc, ok := x.running[ev.CallID]
	if !ok {
		return
	}
	if ev.Stream == ExecStreamStderr {
		rc.Stderr.Write(ev.Chunk)
	} else {
		rc.Stdout.Write(ev.Chunk)
	}
	idx, cell := x.runningCell(rc)
	if cell == nil {
		return
	}
	cell.Preview = tailLines(rc.Stdout.String()+rc.Stderr.String(), x.previewRows)
	x.trans.layout.InvalidateAt(idx)
}

// End finalizes a matching running command, or stashes an orphan end for
// the flush timer. Returns true when the end was stashed and a flush should
// be scheduled.
func (x *ExecTracker) End(ev ExecCommandEndEvent, key OrderKey) (stashed bool) {
	rc, ok := x.running[ev.CallID]
	if !ok {
		x.pending[ev.CallID] = pendingExecEnd{event: ev, key: key, arrived: time.Now()}
		return true
	}
	delete(x.running, ev.CallID)

	idx, _ := x.runningCell(rc)
	var cellKey OrderKey
	if idx >= 0 {
		if k, ok := x.trans.KeyAt(idx); ok {
			cellKey = k
		}
		x.trans.RemoveAt(idx)
	} else {
		cellKey = key
	}
	cell := completedExecCell(ev.CallID, rc.Command, ev)
	x.trans.Insert(cell, cellKey, "exec-end")
	return false
}

// FlushPending renders fallback cells for orphan ends that never saw a
// Begin within the flush window.
func (x *ExecTracker) FlushPending(now time.Time) {
	for id, pe := range x.pending {
		if now.Sub(pe.arrived) < orphanExecFlushDelay {
			continue
		}
		delete(x.pending, id)
		slog.Warn("exec.orphan_end", "call_id", id)
		cell := completedExecCell(id, []string{"call_" + id}, pe.event)
		x.trans.Insert(cell, pe.key, "exec-orphan")
	}
}

// SetWait updates the wait-tool state attached to a running command.
func (x *ExecTracker) SetWait(callID string, active bool, elapsed time.Duration, note string) {
	rc, ok := x.running[callID]
	if !ok {
		return
	}
	rc.WaitActive = active
	rc.WaitDuration += elapsed
	if note != "" {
		rc.WaitNotes = append(rc.WaitNotes, note)
	}
}

// WaitOnlyRunning reports whether the only running indicator is a wait.
func (x *ExecTracker) WaitOnlyRunning() bool {
	if len(x.running) == 0 {
		return false
	}
	for _, rc := range x.running {
		if !rc.WaitActive {
			return false
		}
	}
	return true
}

// InterruptAll marks every running exec cell interrupted and clears state.
func (x *ExecTracker) InterruptAll() {
	for _, rc := range x.running {
		if idx, cell := x.runningCell(rc); cell != nil {
			cell.Status = ExecInterrupted
			cell.Preview = tailLines(rc.Stdout.String()+rc.Stderr.String(), x.previewRows)
			x.trans.layout.InvalidateAt(idx)
		}
	}
	x.running = map[string]*RunningCommand{}
}

// CompleteLingering converts any still-running cells to completed form;
// used when a TaskComplete arrives with execs unterminated.
func (x *ExecTracker) CompleteLingering() {
	for _, rc := range x.running {
		if idx, cell := x.runningCell(rc); cell != nil {
			cell.Status = ExecComplete
			cell.Preview = tailLines(rc.Stdout.String()+rc.Stderr.String(), x.previewRows)
			cell.Duration = time.Since(rc.Started)
			x.trans.layout.InvalidateAt(idx)
		}
	}
	x.running = map[string]*RunningCommand{}
}

// runningCell revalidates the stored history index; on a stale index the
// transcript is rescanned for the cell.
func (x *ExecTracker) runningCell(rc *RunningCommand) (int, *ExecCell) {
	if cell, ok := x.trans.CellAt(rc.HistoryIndex).(*ExecCell); ok &&
		cell.CallID == rc.CallID && cell.Status == ExecRunning {
		return rc.HistoryIndex, cell
	}
	idx := x.trans.IndexWhere(func(c Cell) bool {
		ec, ok := c.(*ExecCell)
		return ok && ec.CallID == rc.CallID && ec.Status == ExecRunning
	})
	if idx < 0 {
		return -1, nil
	}
	rc.HistoryIndex = idx
	cell := x.trans.CellAt(idx).(*ExecCell)
	return idx, cell
}

func completedExecCell(callID string, command []string, ev ExecCommandEndEvent) *ExecCell {
	preview := tailLines(ev.Stdout+ev.Stderr, 5)
	return &ExecCell{
		CallID:   callID,
		Command:  command,
		Status:   ExecComplete,
		ExitCode: ev.ExitCode,
		Preview:  preview,
		Duration: ev.Duration,
	}
}

func tailLines(text string, n int) []string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
