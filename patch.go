package main

import (
	"log/slog"
	"os"
)

// PatchTracker records change sets, snapshots pre-apply file contents for
// the diff overlay, and keeps each patch's cell updated in place.
type PatchTracker struct {
	trans *Transcript

	// call id -> transcript index hint of the patch cell
	cells map[string]int
	// pre-apply file contents, cached by path until session end
	baselines map[string]string
	// every change set seen this session, for the diff overlay
	changes []FileChange
}

func NewPatchTracker(trans *Transcript) *PatchTracker {
	return &PatchTracker{
		trans:     trans,
		cells:     map[string]int{},
		baselines: map[string]string{},
	}
}

// Begin snapshots baselines and inserts the applying cell.
func (p *PatchTracker) Begin(ev PatchApplyBeginEvent, key OrderKey) {
	for _, ch := range ev.Changes {
		p.snapshotBaseline(ch)
		p.changes = append(p.changes, ch)
	}
	status := PatchApplying
	if !ev.AutoApprove {
		status = PatchProposed
	}
	cell := &PatchCell{CallID: ev.CallID, Status: status, Changes: ev.Changes}
	p.cells[ev.CallID] = p.trans.Insert(cell, key, "patch-begin")
}

// End updates the existing cell in place; no new cell is inserted.
func (p *PatchTracker) End(ev PatchApplyEndEvent) {
	idx, cell := p.cellFor(ev.CallID)
	if cell == nil {
		slog.Warn("patch.end_without_begin", "call_id", ev.CallID)
		return
	}
	if ev.Success {
		cell.Status = PatchApplied
		cell.Detail = ""
	} else {
		cell.Status = PatchFailed
		cell.Detail = ev.Stderr
	}
	p.trans.layout.InvalidateAt(idx)
}

// snapshotBaseline reads a changed file's pre-apply contents on first
// observation. Renames mirror the baseline under the destination path so
// diff tabs display against the new name.
func (p *PatchTracker) snapshotBaseline(ch FileChange) {
	if _, ok := p.baselines[ch.Path]; !ok {
		data, err := os.ReadFile(ch.Path)
		if err != nil {
			// new files have no baseline
			p.baselines[ch.Path] = ""
		} else {
			p.baselines[ch.Path] = string(data)
		}
	}
	if ch.MovePath != "" {
		p.baselines[ch.MovePath] = p.baselines[ch.Path]
	}
}

// Baseline returns the cached pre-apply contents for path.
func (p *PatchTracker) Baseline(path string) (string, bool) {
	content, ok := p.baselines[path]
	return content, ok
}

// SessionChanges lists every file change observed this session.
func (p *PatchTracker) SessionChanges() []FileChange { return p.changes }

func (p *PatchTracker) cellFor(callID string) (int, *PatchCell) {
	if hint, ok := p.cells[callID]; ok {
		if cell, ok := p.trans.CellAt(hint).(*PatchCell); ok && cell.CallID == callID {
			return hint, cell
		}
	}
	idx := p.trans.IndexWhere(func(c Cell) bool {
		pc, ok := c.(*PatchCell)
		return ok && pc.CallID == callID
	})
	if idx < 0 {
		return -1, nil
	}
	p.cells[callID] = idx
	return idx, p.trans.CellAt(idx).(*PatchCell)
}
