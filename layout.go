package main

// LayoutCache memoizes each cell's wrapped lines at the current width and
// keeps a prefix-sum vector of heights for scrolling. Entries are
// shift-invalidated from the first touched index on any mutation and fully
// dropped on width change.
type LayoutCache struct {
	width   int
	entries []layoutEntry

	prefix      []int // prefix[i] = rows occupied by cells [0, i), spacing included
	prefixDirty bool
}

type layoutEntry struct {
	valid bool
	lines []string
}

func NewLayoutCache(width int) *LayoutCache {
	return &LayoutCache{width: width, prefixDirty: true}
}

func (lc *LayoutCache) Width() int { return lc.width }

func (lc *LayoutCache) SetWidth(width int) {
	if width == lc.width {
		return
	}
	lc.width = width
	lc.entries = nil
	lc.prefixDirty = true
}

func (lc *LayoutCache) InvalidateAt(idx int) {
	if idx >= 0 && idx < len(lc.entries) {
		lc.entries[idx] = layoutEntry{}
	}
	lc.prefixDirty = true
}

func (lc *LayoutCache) InvalidateFrom(idx int) {
	if idx < 0 {
		idx = 0
	}
	for i := idx; i < len(lc.entries); i++ {
		lc.entries[i] = layoutEntry{}
	}
	lc.prefixDirty = true
}

func (lc *LayoutCache) InvalidateAll() {
	lc.entries = nil
	lc.prefixDirty = true
}

// MarkDirty flags the prefix sums without dropping per-cell entries; used on
// animation ticks where only animating cells re-render.
func (lc *LayoutCache) MarkDirty() { lc.prefixDirty = true }

// LinesFor returns cell idx's display lines at the cache width, memoized
// unless the cell opts out via HasCustomRender or is animating.
func (lc *LayoutCache) LinesFor(t *Transcript, idx int) []string {
	cell := t.CellAt(idx)
	if cell == nil {
		return nil
	}
	if cell.HasCustomRender() || cell.IsAnimating() {
		return cell.DisplayLines(lc.width)
	}
	for len(lc.entries) < t.Len() {
		lc.entries = append(lc.entries, layoutEntry{})
	}
	if lc.entries[idx].valid {
		return lc.entries[idx].lines
	}
	lines := cell.DisplayLines(lc.width)
	lc.entries[idx] = layoutEntry{valid: true, lines: lines}
	return lines
}

// spacerBetween reports whether a blank row separates cells a and b. Two
// consecutive collapsed reasoning cells pack tightly.
func spacerBetween(a, b Cell) bool {
	ra, okA := a.(*ReasoningCell)
	rb, okB := b.(*ReasoningCell)
	if okA && okB && ra.Collapsed && rb.Collapsed {
		return false
	}
	return true
}

func (lc *LayoutCache) rebuildPrefix(t *Transcript) {
	n := t.Len()
	lc.prefix = lc.prefix[:0]
	lc.prefix = append(lc.prefix, 0)
	total := 0
	var prevVisible Cell
	for i := 0; i < n; i++ {
		h := len(lc.LinesFor(t, i))
		if h > 0 {
			if prevVisible != nil && spacerBetween(prevVisible, t.CellAt(i)) {
				total++
			}
			prevVisible = t.CellAt(i)
		}
		total += h
		lc.prefix = append(lc.prefix, total)
	}
	lc.prefixDirty = false
}

// TotalHeight is the full transcript height at the current width.
func (lc *LayoutCache) TotalHeight(t *Transcript) int {
	if lc.prefixDirty || len(lc.prefix) != t.Len()+1 {
		lc.rebuildPrefix(t)
	}
	return lc.prefix[len(lc.prefix)-1]
}

// RenderWindow walks the visible rows [top, top+height) measured from the
// transcript start and returns them with the gutter painted. gutterWidth
// columns precede each body row; the glyph appears on a cell's first row.
func (lc *LayoutCache) RenderWindow(t *Transcript, top, height int, gutter func(sym rune, first bool) string) []string {
	totalRows := lc.TotalHeight(t)
	if top < 0 {
		top = 0
	}
	if top > totalRows {
		top = totalRows
	}

	rows := make([]string, 0, height)
	row := 0
	var prevVisible Cell
	for i := 0; i < t.Len() && len(rows) < height; i++ {
		lines := lc.LinesFor(t, i)
		if len(lines) == 0 {
			continue
		}
		if prevVisible != nil && spacerBetween(prevVisible, t.CellAt(i)) {
			if row >= top && len(rows) < height {
				rows = append(rows, "")
			}
			row++
		}
		prevVisible = t.CellAt(i)
		sym := t.CellAt(i).GutterSymbol()
		for j, line := range lines {
			if row >= top && len(rows) < height {
				rows = append(rows, gutter(sym, j == 0)+line)
			}
			row++
			if len(rows) >= height {
				break
			}
		}
	}
	return rows
}
