package main

import (
	"github.com/charmbracelet/lipgloss"
)

// CompletionDialog is the autocompletion pop-up for / commands and @ files.
type CompletionDialog struct {
	Options      []string
	Selected     int
	Visible      bool
	Height       int
	Offset       int
	ScrollMargin int
}

func NewCompletionDialog() CompletionDialog {
	return CompletionDialog{
		Height:       10,
		ScrollMargin: 4,
	}
}

// SetOptions updates the completion options
func (c *CompletionDialog) SetOptions(options []string) {
	c.Options = options
	if c.Selected >= len(options) {
		c.Selected = len(options) - 1
	}
	if c.Selected < 0 {
		c.Selected = 0
	}
	c.Offset = 0
}

func (c *CompletionDialog) Show() { c.Visible = true }
func (c *CompletionDialog) Hide() { c.Visible = false }

// SelectNext moves selection to the next item
func (c *CompletionDialog) SelectNext() {
	if len(c.Options) == 0 {
		return
	}
	next := c.Selected + 1
	if next >= len(c.Options) {
		return
	}
	if next >= c.Offset+c.Height-c.ScrollMargin {
		if c.Offset < len(c.Options)-c.Height {
			c.Offset++
		}
	}
	c.Selected = next
}

// SelectPrev moves selection to the previous item
func (c *CompletionDialog) SelectPrev() {
	if c.Selected > 0 {
		c.Selected--
		if c.Selected < c.Offset+c.ScrollMargin && c.Offset > 0 {
			c.Offset--
		}
	}
}

// GetSelected returns the currently selected option
func (c CompletionDialog) GetSelected() string {
	if c.Selected >= 0 && c.Selected < len(c.Options) {
		return c.Options[c.Selected]
	}
	return ""
}

// View renders the completion dialog
func (c CompletionDialog) View() string {
	if !c.Visible || len(c.Options) == 0 {
		return ""
	}
	th := activeTheme()
	selectedStyle := lipgloss.NewStyle().Foreground(th.AccentColor).Bold(true)

	end := c.Offset + c.Height
	lines := make([]string, 0, c.Height)
	for i := c.Offset; i < end; i++ {
		if i >= len(c.Options) {
			break
		}
		if i == c.Selected {
			lines = append(lines, selectedStyle.Render("> "+c.Options[i]))
		} else {
			lines = append(lines, "  "+c.Options[i])
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	frame := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(th.ComposerBorder).
		Foreground(th.TextColor)
	return frame.Render(content)
}
