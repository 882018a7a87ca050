package main

// InterruptManager queues events that must not interleave with an active
// stream (approval requests, some tool events) and replays them in arrival
// order once the streams quiesce.
type InterruptManager struct {
	queued []BackendEvent
}

func (im *InterruptManager) Defer(ev BackendEvent) {
	im.queued = append(im.queued, ev)
}

func (im *InterruptManager) Pending() int { return len(im.queued) }

// FlushAll drains the queue through dispatch in arrival order. Events
// deferred again during the flush are preserved.
func (im *InterruptManager) FlushAll(dispatch func(BackendEvent)) {
	queued := im.queued
	im.queued = nil
	for _, ev := range queued {
		dispatch(ev)
	}
}

// Drop discards queued events; used when the user interrupts the turn.
func (im *InterruptManager) Drop() {
	im.queued = nil
}
