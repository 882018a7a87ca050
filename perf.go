package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// perfTracker collects coarse timing spans for the UI loop while tracing is
// enabled via /perf. Observations are dropped when tracing is off, so the
// hot path pays only a mutex check.
type perfTracker struct {
	mu      sync.Mutex
	enabled bool
	since   time.Time
	spans   map[string]*perfSpan
}

type perfSpan struct {
	count int
	total time.Duration
	max   time.Duration
}

var perf = newPerfTracker()

func newPerfTracker() *perfTracker {
	return &perfTracker{spans: map[string]*perfSpan{}}
}

func (p *perfTracker) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *perfTracker) SetEnabled(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = on
	if on && p.since.IsZero() {
		p.since = time.Now()
	}
}

func (p *perfTracker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spans = map[string]*perfSpan{}
	p.since = time.Now()
}

// Observe records one sample under name. No-op while tracing is off.
func (p *perfTracker) Observe(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	span, ok := p.spans[name]
	if !ok {
		span = &perfSpan{}
		p.spans[name] = span
	}
	span.count++
	span.total += d
	if d > span.max {
		span.max = d
	}
}

// Summary renders the collected spans, slowest total first.
func (p *perfTracker) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled && len(p.spans) == 0 {
		return "Performance tracing is off. Enable it with /perf on."
	}
	if len(p.spans) == 0 {
		return "Performance tracing: no samples recorded yet."
	}

	names := make([]string, 0, len(p.spans))
	for name := range p.spans {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return p.spans[names[i]].total > p.spans[names[j]].total
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Performance tracing (since %s)\n", p.since.Format("15:04:05"))
	for _, name := range names {
		span := p.spans[name]
		avg := span.total / time.Duration(span.count)
		fmt.Fprintf(&b, "  %-16s %6d calls  avg %8s  max %8s  total %8s\n",
			name, span.count, avg.Round(time.Microsecond),
			span.max.Round(time.Microsecond), span.total.Round(time.Microsecond))
	}
	return strings.TrimRight(b.String(), "\n")
}
