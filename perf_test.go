package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPerfTrackerDropsSamplesWhileDisabled(t *testing.T) {
	p := newPerfTracker()

	p.Observe("view", time.Millisecond)
	require.Contains(t, p.Summary(), "tracing is off")

	p.SetEnabled(true)
	p.Observe("view", time.Millisecond)
	require.Contains(t, p.Summary(), "view")
}

func TestPerfTrackerSummaryAggregates(t *testing.T) {
	p := newPerfTracker()
	p.SetEnabled(true)

	p.Observe("update", 2*time.Millisecond)
	p.Observe("update", 4*time.Millisecond)
	p.Observe("view", time.Millisecond)

	summary := p.Summary()
	require.Contains(t, summary, "update")
	require.Contains(t, summary, "2 calls")
	require.Contains(t, summary, "view")
}

func TestPerfTrackerReset(t *testing.T) {
	p := newPerfTracker()
	p.SetEnabled(true)
	p.Observe("update", time.Millisecond)

	p.Reset()
	require.Contains(t, p.Summary(), "no samples")
}
