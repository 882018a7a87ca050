package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// countingCell records how often DisplayLines runs so memoization is
// observable.
type countingCell struct {
	lines []string
	calls int
}

func (c *countingCell) Kind() CellKind        { return KindNotice }
func (c *countingCell) GutterSymbol() rune    { return '>' }
func (c *countingCell) IsAnimating() bool     { return false }
func (c *countingCell) HasCustomRender() bool { return false }
func (c *countingCell) DisplayLines(width int) []string {
	c.calls++
	return c.lines
}

func TestLayoutCacheMemoizesLines(t *testing.T) {
	layout := NewLayoutCache(80)
	trans := NewTranscript(layout)

	cell := &countingCell{lines: []string{"one", "two"}}
	idx := trans.Insert(cell, key(1, 0, 0), "test")

	require.Equal(t, []string{"one", "two"}, layout.LinesFor(trans, idx))
	require.Equal(t, []string{"one", "two"}, layout.LinesFor(trans, idx))
	require.Equal(t, 1, cell.calls)

	layout.InvalidateAt(idx)
	layout.LinesFor(trans, idx)
	require.Equal(t, 2, cell.calls)
}

func TestLayoutCacheWidthChangeDropsEntries(t *testing.T) {
	layout := NewLayoutCache(80)
	trans := NewTranscript(layout)

	cell := &countingCell{lines: []string{"x"}}
	idx := trans.Insert(cell, key(1, 0, 0), "test")
	layout.LinesFor(trans, idx)
	require.Equal(t, 1, cell.calls)

	// Same width is a no-op.
	layout.SetWidth(80)
	layout.LinesFor(trans, idx)
	require.Equal(t, 1, cell.calls)

	layout.SetWidth(60)
	require.Equal(t, 60, layout.Width())
	layout.LinesFor(trans, idx)
	require.Equal(t, 2, cell.calls)
}

func TestLayoutCacheAnimatingCellsBypassCache(t *testing.T) {
	layout := NewLayoutCache(80)
	trans := NewTranscript(layout)

	idx := trans.Insert(&LoadingCell{Label: "working"}, key(1, 0, 0), "loading")

	// LoadingCell animates forever, so every call re-renders.
	first := layout.LinesFor(trans, idx)
	second := layout.LinesFor(trans, idx)
	require.NotEmpty(t, first)
	require.Equal(t, first, second)
}

func TestLayoutCacheTotalHeightWithSpacers(t *testing.T) {
	layout := NewLayoutCache(80)
	trans := NewTranscript(layout)

	trans.Insert(&countingCell{lines: []string{"a"}}, key(1, 0, 0), "test")
	require.Equal(t, 1, layout.TotalHeight(trans))

	// A second visible cell adds a blank separator row.
	trans.Insert(&countingCell{lines: []string{"b", "b2"}}, key(1, 0, 1), "test")
	require.Equal(t, 4, layout.TotalHeight(trans))

	// Zero-height cells contribute nothing, including their spacer.
	trans.Insert(&countingCell{}, key(1, 0, 2), "test")
	require.Equal(t, 4, layout.TotalHeight(trans))
}

func TestLayoutCacheCollapsedReasoningPacksTightly(t *testing.T) {
	layout := NewLayoutCache(80)
	trans := NewTranscript(layout)

	trans.Insert(&ReasoningCell{Text: "first thought", Collapsed: true}, key(1, 0, 0), "reasoning")
	trans.Insert(&ReasoningCell{Text: "second thought", Collapsed: true}, key(1, 0, 1), "reasoning")

	// Two one-line collapsed reasoning cells stack without a spacer row.
	require.Equal(t, 2, layout.TotalHeight(trans))
}

func TestLayoutCacheRenderWindow(t *testing.T) {
	layout := NewLayoutCache(80)
	trans := NewTranscript(layout)

	trans.Insert(&countingCell{lines: []string{"a1", "a2"}}, key(1, 0, 0), "test")
	trans.Insert(&countingCell{lines: []string{"b1"}}, key(1, 0, 1), "test")

	gutter := func(sym rune, first bool) string {
		if first && sym != 0 {
			return string(sym) + " "
		}
		return "  "
	}

	// Full window: a1, a2, spacer, b1.
	rows := layout.RenderWindow(trans, 0, 10, gutter)
	require.Equal(t, []string{"> a1", "  a2", "", "> b1"}, rows)

	// Clipped window starting mid-cell.
	rows = layout.RenderWindow(trans, 1, 2, gutter)
	require.Equal(t, []string{"  a2", ""}, rows)

	// Window past the end is empty.
	rows = layout.RenderWindow(trans, 10, 5, gutter)
	require.Empty(t, rows)
}
