package main

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// autoscroll keeps following inserts while within this many rows of
	// the bottom
	autoscrollSlack = 3
	lineScrollStep  = 3
	gutterWidth     = 2

	scrollbarHideDelay = 900 * time.Millisecond
)

type scrollbarHideMsg struct{ token int }

// ChatView renders the visible window of the transcript. Scroll offset is
// measured from the bottom: 0 means the newest rows are visible.
type ChatView struct {
	Width  int
	Height int

	conv *Conversation

	offset int // rows scrolled up from the bottom

	scrollbarVisible bool
	scrollbarToken   int

	lastTotal int
}

func NewChatView(conv *Conversation, width, height int) *ChatView {
	conv.layout.SetWidth(width - gutterWidth)
	return &ChatView{conv: conv, Width: width, Height: height}
}

func (v *ChatView) SetSize(width, height int) {
	prevHeight := v.Height
	v.Width = width
	v.Height = height
	v.conv.layout.SetWidth(width - gutterWidth)
	if prevHeight != height && v.offset > 0 {
		v.stabilize(prevHeight, height)
	}
	v.clamp()
}

// stabilize keeps the topmost visible row anchored when the viewport grows
// or shrinks while scrolled up, e.g. when the composer changes height.
func (v *ChatView) stabilize(oldHeight, newHeight int) {
	total := v.conv.layout.TotalHeight(v.conv.trans)
	fromTop := total - oldHeight - v.offset
	if fromTop < 0 {
		fromTop = 0
	}
	v.offset = total - newHeight - fromTop
	if v.offset < 0 {
		v.offset = 0
	}
}

func (v *ChatView) maxScroll() int {
	total := v.conv.layout.TotalHeight(v.conv.trans)
	if total <= v.Height {
		return 0
	}
	return total - v.Height
}

func (v *ChatView) clamp() {
	if max := v.maxScroll(); v.offset > max {
		v.offset = max
	}
	if v.offset < 0 {
		v.offset = 0
	}
}

// Sync applies the autoscroll policy after content changes: stay glued to
// the bottom unless the user has scrolled further up than the slack.
func (v *ChatView) Sync() {
	total := v.conv.layout.TotalHeight(v.conv.trans)
	if total != v.lastTotal {
		if v.offset <= autoscrollSlack {
			v.offset = 0
		} else {
			// keep the same rows on screen as content grows below
			v.offset += total - v.lastTotal
		}
		v.lastTotal = total
	}
	v.clamp()
}

func (v *ChatView) ScrollBy(rows int) tea.Cmd {
	v.offset += rows
	v.clamp()
	return v.flashScrollbar()
}

func (v *ChatView) LineUp() tea.Cmd   { return v.ScrollBy(lineScrollStep) }
func (v *ChatView) LineDown() tea.Cmd { return v.ScrollBy(-lineScrollStep) }

func (v *ChatView) PageUp() tea.Cmd   { return v.ScrollBy(v.Height - 1) }
func (v *ChatView) PageDown() tea.Cmd { return v.ScrollBy(-(v.Height - 1)) }

func (v *ChatView) GotoTop() tea.Cmd {
	v.offset = v.maxScroll()
	return v.flashScrollbar()
}

func (v *ChatView) GotoBottom() tea.Cmd {
	v.offset = 0
	return v.flashScrollbar()
}

func (v *ChatView) AtBottom() bool { return v.offset == 0 }

// flashScrollbar shows the scrollbar and arms the auto-hide timer.
func (v *ChatView) flashScrollbar() tea.Cmd {
	v.scrollbarVisible = true
	v.scrollbarToken++
	token := v.scrollbarToken
	return tea.Tick(scrollbarHideDelay, func(time.Time) tea.Msg {
		return scrollbarHideMsg{token: token}
	})
}

func (v *ChatView) HandleScrollbarHide(msg scrollbarHideMsg) {
	if msg.token == v.scrollbarToken {
		v.scrollbarVisible = false
	}
}

func (v *ChatView) Update(msg tea.Msg) (*ChatView, tea.Cmd) {
	switch m := msg.(type) {
	case tea.MouseMsg:
		switch m.Type {
		case tea.MouseWheelUp:
			return v, v.LineUp()
		case tea.MouseWheelDown:
			return v, v.LineDown()
		}
	case scrollbarHideMsg:
		v.HandleScrollbarHide(m)
	}
	return v, nil
}

// View paints the window: gutter column, body rows, optional scrollbar.
func (v *ChatView) View() string {
	th := activeTheme()
	gutterStyle := lipgloss.NewStyle().Foreground(th.GutterColor)
	gutter := func(sym rune, first bool) string {
		if first && sym != 0 {
			return gutterStyle.Render(string(sym) + " ")
		}
		return strings.Repeat(" ", gutterWidth)
	}

	total := v.conv.layout.TotalHeight(v.conv.trans)
	top := total - v.Height - v.offset
	if top < 0 {
		top = 0
	}
	rows := v.conv.layout.RenderWindow(v.conv.trans, top, v.Height, gutter)

	// the transcript grows downward from the top of the pane
	for len(rows) < v.Height {
		rows = append(rows, "")
	}

	if v.scrollbarVisible && total > v.Height {
		rows = v.overlayScrollbar(rows, total, top)
	}
	return strings.Join(rows, "\n")
}

// overlayScrollbar draws a proportional thumb along the right edge.
func (v *ChatView) overlayScrollbar(rows []string, total, top int) []string {
	th := activeTheme()
	trackStyle := lipgloss.NewStyle().Foreground(th.ScrollbarColor)
	thumbStyle := lipgloss.NewStyle().Foreground(th.AccentColor)

	thumbLen := v.Height * v.Height / total
	if thumbLen < 1 {
		thumbLen = 1
	}
	thumbTop := 0
	if total > v.Height {
		thumbTop = top * (v.Height - thumbLen) / (total - v.Height)
	}
	for i := range rows {
		mark := trackStyle.Render("│")
		if i >= thumbTop && i < thumbTop+thumbLen {
			mark = thumbStyle.Render("█")
		}
		width := lipgloss.Width(rows[i])
		pad := v.Width - 1 - width
		if pad < 0 {
			pad = 0
		}
		rows[i] = rows[i] + strings.Repeat(" ", pad) + mark
	}
	return rows
}
