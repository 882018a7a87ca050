package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	composerMinLines = 1
	composerMaxLines = 6
)

// Composer is the user input area. It grows with its content up to
// composerMaxLines; the transcript pane above yields the space.
type Composer struct {
	TextArea textarea.Model
	Height   int
	Width    int
}

func NewComposer(width int) Composer {
	ta := textarea.New()
	ta.Placeholder = "Ask anything, /help for commands"
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.Focus()
	ta.SetWidth(width - 2)
	ta.SetHeight(composerMinLines)

	return Composer{
		TextArea: ta,
		Height:   composerMinLines,
		Width:    width,
	}
}

func (p *Composer) SetWidth(width int) {
	p.Width = width
	p.TextArea.SetWidth(width - 2)
}

func (p *Composer) SetHeight(height int) {
	inner := height - 2
	if inner < composerMinLines {
		inner = composerMinLines
	}
	p.Height = height
	p.TextArea.SetHeight(inner)
}

// DesiredHeight is the total rows the composer wants, borders included.
func (p Composer) DesiredHeight() int {
	lines := strings.Count(p.TextArea.Value(), "\n") + 1
	if lines < composerMinLines {
		lines = composerMinLines
	}
	if lines > composerMaxLines {
		lines = composerMaxLines
	}
	return lines + 2
}

func (p *Composer) SetValue(value string) {
	p.TextArea.SetValue(value)
}

func (p Composer) Value() string {
	return p.TextArea.Value()
}

// InsertNewline adds a line break at the cursor (Shift+Enter, Ctrl+J).
func (p *Composer) InsertNewline() {
	p.TextArea.InsertString("\n")
}

func (p *Composer) Focus() { p.TextArea.Focus() }
func (p *Composer) Blur()  { p.TextArea.Blur() }

func (p Composer) Update(msg tea.Msg) (Composer, tea.Cmd) {
	var cmd tea.Cmd
	p.TextArea, cmd = p.TextArea.Update(msg)
	return p, cmd
}

func (p Composer) View() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(activeTheme().ComposerBorder).
		Width(p.Width - 2)
	return style.Render(p.TextArea.View())
}
