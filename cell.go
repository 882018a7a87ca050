package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// CellKind classifies transcript cells for merging and styling decisions.
type CellKind int

const (
	KindUser CellKind = iota
	KindAssistant
	KindReasoning
	KindExec
	KindTool
	KindPatch
	KindPlan
	KindNotice
	KindError
	KindDiff
	KindImage
	KindWelcome
	KindLoading
	KindStreaming
	KindMergedExec
	KindExplore
)

// Cell is a unit of transcript content. DisplayLines must be pure with
// respect to width; mutation happens only through the transcript store.
type Cell interface {
	Kind() CellKind
	DisplayLines(width int) []string
	GutterSymbol() rune // 0 means no gutter glyph
	IsAnimating() bool
	HasCustomRender() bool
}

// identifiedCell is implemented by stream-bearing cells (assistant finals,
// reasoning, streaming content).
type identifiedCell interface {
	StreamID() string
}

// retintable cells cache colored spans and must be re-styled when the
// process-wide theme changes.
type retintable interface {
	Retint(theme *Theme)
}

func wrapPlain(text string, width int) []string {
	if width < 4 {
		width = 4
	}
	wrapped := wordwrap.String(text, width)
	return strings.Split(wrapped, "\n")
}

// ---- User ----

type UserCell struct {
	Text string
}

func (c *UserCell) Kind() CellKind         { return KindUser }
func (c *UserCell) GutterSymbol() rune     { return '›' }
func (c *UserCell) IsAnimating() bool      { return false }
func (c *UserCell) HasCustomRender() bool  { return false }
func (c *UserCell) DisplayLines(width int) []string {
	style := lipgloss.NewStyle().Foreground(activeTheme().UserColor)
	lines := wrapPlain(c.Text, width)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = style.Render(l)
	}
	return out
}

// ---- Assistant (finalized markdown) ----

type AssistantCell struct {
	ID       string
	Markdown string
}

func (c *AssistantCell) Kind() CellKind        { return KindAssistant }
func (c *AssistantCell) GutterSymbol() rune    { return '•' }
func (c *AssistantCell) IsAnimating() bool     { return false }
func (c *AssistantCell) HasCustomRender() bool { return false }
func (c *AssistantCell) StreamID() string      { return c.ID }

func (c *AssistantCell) DisplayLines(width int) []string {
	rendered, err := renderMarkdown(c.Markdown, width)
	if err != nil {
		return wrapPlain(c.Markdown, width)
	}
	return rendered
}

// renderMarkdown renders through glamour with the active theme's style.
func renderMarkdown(md string, width int) ([]string, error) {
	if width < 10 {
		width = 10
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(activeTheme().GlamourStyle),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, err
	}
	out, err := r.Render(md)
	if err != nil {
		return nil, err
	}
	out = strings.TrimRight(out, "\n")
	// glamour pads a leading blank line we don't want inside a cell
	lines := strings.Split(out, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return lines, nil
}

// ---- Reasoning (collapsible) ----

type ReasoningCell struct {
	ID         string
	Text       string
	Collapsed  bool
	InProgress bool
}

func (c *ReasoningCell) Kind() CellKind        { return KindReasoning }
func (c *ReasoningCell) GutterSymbol() rune    { return '∴' }
func (c *ReasoningCell) IsAnimating() bool     { return c.InProgress }
func (c *ReasoningCell) HasCustomRender() bool { return false }
func (c *ReasoningCell) StreamID() string      { return c.ID }

func (c *ReasoningCell) DisplayLines(width int) []string {
	style := lipgloss.NewStyle().Foreground(activeTheme().DimColor).Italic(true)
	if c.Collapsed {
		head := firstNonEmptyLine(c.Text)
		if head == "" {
			return nil
		}
		suffix := " …"
		if c.InProgress {
			suffix = " …thinking"
		}
		lines := wrapPlain(head+suffix, width)
		out := make([]string, len(lines))
		for i, l := range lines {
			out[i] = style.Render(l)
		}
		return out
	}
	lines := wrapPlain(c.Text, width)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = style.Render(l)
	}
	return out
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// ---- Streaming content (in-flight answer or reasoning) ----

type StreamingCell struct {
	StreamKind StreamKind
	ID         string
	Lines      []string
}

func (c *StreamingCell) Kind() CellKind        { return KindStreaming }
func (c *StreamingCell) IsAnimating() bool     { return true }
func (c *StreamingCell) HasCustomRender() bool { return false }
func (c *StreamingCell) StreamID() string      { return c.ID }

func (c *StreamingCell) GutterSymbol() rune {
	if c.StreamKind == StreamReasoning {
		return '∴'
	}
	return '•'
}

func (c *StreamingCell) DisplayLines(width int) []string {
	var style lipgloss.Style
	if c.StreamKind == StreamReasoning {
		style = lipgloss.NewStyle().Foreground(activeTheme().DimColor).Italic(true)
	} else {
		style = lipgloss.NewStyle().Foreground(activeTheme().TextColor)
	}
	var out []string
	for _, raw := range c.Lines {
		for _, l := range wrapPlain(raw, width) {
			out = append(out, style.Render(l))
		}
	}
	return out
}

// ---- Exec ----

type ExecStatus int

const (
	ExecRunning ExecStatus = iota
	ExecComplete
	ExecInterrupted
)

type ExecCell struct {
	CallID   string
	Command  []string
	Status   ExecStatus
	ExitCode int
	Preview  []string // tail of combined output while running or after completion
	Duration time.Duration
	started  time.Time
}

func (c *ExecCell) Kind() CellKind        { return KindExec }
func (c *ExecCell) GutterSymbol() rune    { return '$' }
func (c *ExecCell) IsAnimating() bool     { return c.Status == ExecRunning }
func (c *ExecCell) HasCustomRender() bool { return false }

// header is the command line shown first; merging compares headers.
func (c *ExecCell) header() string {
	return strings.Join(c.Command, " ")
}

func (c *ExecCell) DisplayLines(width int) []string {
	th := activeTheme()
	cmdStyle := lipgloss.NewStyle().Foreground(th.AccentColor).Bold(true)
	outStyle := lipgloss.NewStyle().Foreground(th.DimColor)

	var out []string
	head := c.header()
	switch c.Status {
	case ExecRunning:
		head += "  (running)"
	case ExecInterrupted:
		head += "  (interrupted)"
	default:
		if c.ExitCode != 0 {
			head += fmt.Sprintf("  (exit %d)", c.ExitCode)
		}
	}
	for _, l := range wrapPlain(head, width) {
		out = append(out, cmdStyle.Render(l))
	}
	for _, p := range c.Preview {
		for _, l := range wrapPlain(p, width-2) {
			out = append(out, outStyle.Render("  "+l))
		}
	}
	return out
}

// MergedExecCell groups consecutive completed execs that share a header.
type MergedExecCell struct {
	Entries []*ExecCell
}

func (c *MergedExecCell) Kind() CellKind        { return KindMergedExec }
func (c *MergedExecCell) GutterSymbol() rune    { return '$' }
func (c *MergedExecCell) IsAnimating() bool     { return false }
func (c *MergedExecCell) HasCustomRender() bool { return false }

func (c *MergedExecCell) DisplayLines(width int) []string {
	var out []string
	for i, e := range c.Entries {
		lines := e.DisplayLines(width)
		if i > 0 && len(lines) > 0 {
			// drop the repeated header on merged entries
			lines = lines[1:]
		}
		out = append(out, lines...)
	}
	return out
}

// ---- Tool ----

type ToolStatus int

const (
	ToolRunning ToolStatus = iota
	ToolSuccess
	ToolFailed
)

type ToolCell struct {
	CallID string
	Title  string
	Body   string
	Status ToolStatus
}

func (c *ToolCell) Kind() CellKind        { return KindTool }
func (c *ToolCell) GutterSymbol() rune    { return '⚙' }
func (c *ToolCell) IsAnimating() bool     { return c.Status == ToolRunning }
func (c *ToolCell) HasCustomRender() bool { return false }

func (c *ToolCell) DisplayLines(width int) []string {
	th := activeTheme()
	titleStyle := lipgloss.NewStyle().Foreground(th.AccentColor)
	bodyStyle := lipgloss.NewStyle().Foreground(th.DimColor)

	marker := "○"
	switch c.Status {
	case ToolSuccess:
		marker = "●"
	case ToolFailed:
		marker = "✗"
	}
	var out []string
	for _, l := range wrapPlain(marker+" "+c.Title, width) {
		out = append(out, titleStyle.Render(l))
	}
	if c.Body != "" {
		for _, bodyLine := range strings.Split(c.Body, "\n") {
			for _, l := range wrapPlain(bodyLine, width-4) {
				out = append(out, bodyStyle.Render("  ⎿ "+l))
			}
		}
	}
	return out
}

// ---- Patch ----

type PatchStatus int

const (
	PatchProposed PatchStatus = iota
	PatchApplying
	PatchApplied
	PatchFailed
)

type PatchCell struct {
	CallID  string
	Status  PatchStatus
	Changes []FileChange
	Detail  string
}

func (c *PatchCell) Kind() CellKind        { return KindPatch }
func (c *PatchCell) GutterSymbol() rune    { return '±' }
func (c *PatchCell) IsAnimating() bool     { return c.Status == PatchApplying }
func (c *PatchCell) HasCustomRender() bool { return false }

func (c *PatchCell) DisplayLines(width int) []string {
	th := activeTheme()
	headStyle := lipgloss.NewStyle().Foreground(th.AccentColor).Bold(true)
	okStyle := lipgloss.NewStyle().Foreground(th.SuccessColor)
	errStyle := lipgloss.NewStyle().Foreground(th.ErrorColor)
	fileStyle := lipgloss.NewStyle().Foreground(th.TextColor)

	var head string
	switch c.Status {
	case PatchProposed:
		head = headStyle.Render("Proposed changes")
	case PatchApplying:
		head = headStyle.Render("Applying changes…")
	case PatchApplied:
		head = okStyle.Render("Updated")
	case PatchFailed:
		head = errStyle.Render("Patch failed")
	}
	out := []string{head}
	for _, ch := range c.Changes {
		label := ch.Path
		if ch.MovePath != "" {
			label = ch.Path + " → " + ch.MovePath
		}
		var tag string
		switch ch.Kind {
		case FileChangeAdd:
			tag = "A"
		case FileChangeDelete:
			tag = "D"
		default:
			tag = "M"
		}
		for _, l := range wrapPlain(tag+" "+label, width-2) {
			out = append(out, fileStyle.Render("  "+l))
		}
	}
	if c.Detail != "" {
		for _, l := range wrapPlain(c.Detail, width-2) {
			out = append(out, errStyle.Render("  "+l))
		}
	}
	return out
}

// ---- Plan ----

type PlanCell struct {
	Name  string
	Steps []PlanStep
}

func (c *PlanCell) Kind() CellKind        { return KindPlan }
func (c *PlanCell) GutterSymbol() rune    { return '☰' }
func (c *PlanCell) IsAnimating() bool     { return false }
func (c *PlanCell) HasCustomRender() bool { return false }

func (c *PlanCell) DisplayLines(width int) []string {
	th := activeTheme()
	var out []string
	title := "Plan"
	if c.Name != "" {
		title = "Plan: " + c.Name
	}
	out = append(out, lipgloss.NewStyle().Foreground(th.AccentColor).Bold(true).Render(title))
	for _, s := range c.Steps {
		box := "[ ]"
		style := lipgloss.NewStyle().Foreground(th.DimColor)
		switch s.Status {
		case PlanStepInProgress:
			box = "[~]"
			style = lipgloss.NewStyle().Foreground(th.AccentColor)
		case PlanStepCompleted:
			box = "[x]"
			style = lipgloss.NewStyle().Foreground(th.SuccessColor)
		}
		for _, l := range wrapPlain(box+" "+s.Step, width-2) {
			out = append(out, style.Render("  "+l))
		}
	}
	return out
}

// ---- Notices and errors ----

type NoticeCell struct {
	NoticeID string
	Text     string
	Dim      bool
}

func (c *NoticeCell) Kind() CellKind        { return KindNotice }
func (c *NoticeCell) GutterSymbol() rune    { return 0 }
func (c *NoticeCell) IsAnimating() bool     { return false }
func (c *NoticeCell) HasCustomRender() bool { return false }

func (c *NoticeCell) DisplayLines(width int) []string {
	th := activeTheme()
	style := lipgloss.NewStyle().Foreground(th.TextColor)
	if c.Dim {
		style = lipgloss.NewStyle().Foreground(th.DimColor).Italic(true)
	}
	var out []string
	for _, l := range wrapPlain(c.Text, width) {
		out = append(out, style.Render(l))
	}
	return out
}

type ErrorCell struct {
	Text string
	Hint string
}

func (c *ErrorCell) Kind() CellKind        { return KindError }
func (c *ErrorCell) GutterSymbol() rune    { return '✖' }
func (c *ErrorCell) IsAnimating() bool     { return false }
func (c *ErrorCell) HasCustomRender() bool { return false }

func (c *ErrorCell) DisplayLines(width int) []string {
	th := activeTheme()
	out := []string{}
	for _, l := range wrapPlain(c.Text, width) {
		out = append(out, lipgloss.NewStyle().Foreground(th.ErrorColor).Render(l))
	}
	if c.Hint != "" {
		for _, l := range wrapPlain(c.Hint, width-2) {
			out = append(out, lipgloss.NewStyle().Foreground(th.DimColor).Render("  "+l))
		}
	}
	return out
}

// ---- Diff ----

type DiffCell struct {
	Title string
	Diff  string
	tint  []string // cached colored lines, rebuilt on retint
}

func (c *DiffCell) Kind() CellKind        { return KindDiff }
func (c *DiffCell) GutterSymbol() rune    { return '±' }
func (c *DiffCell) IsAnimating() bool     { return false }
func (c *DiffCell) HasCustomRender() bool { return false }

func (c *DiffCell) Retint(theme *Theme) { c.tint = nil }

func (c *DiffCell) DisplayLines(width int) []string {
	if c.tint == nil {
		th := activeTheme()
		addStyle := lipgloss.NewStyle().Foreground(th.SuccessColor)
		delStyle := lipgloss.NewStyle().Foreground(th.ErrorColor)
		ctxStyle := lipgloss.NewStyle().Foreground(th.DimColor)
		if c.Title != "" {
			c.tint = append(c.tint, lipgloss.NewStyle().Bold(true).Render(c.Title))
		}
		for _, line := range strings.Split(c.Diff, "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				c.tint = append(c.tint, addStyle.Render(line))
			case strings.HasPrefix(line, "-"):
				c.tint = append(c.tint, delStyle.Render(line))
			default:
				c.tint = append(c.tint, ctxStyle.Render(line))
			}
		}
	}
	return c.tint
}

// ---- Image ----

type ImageCell struct {
	Path string
}

func (c *ImageCell) Kind() CellKind        { return KindImage }
func (c *ImageCell) GutterSymbol() rune    { return 0 }
func (c *ImageCell) IsAnimating() bool     { return false }
func (c *ImageCell) HasCustomRender() bool { return false }

func (c *ImageCell) DisplayLines(width int) []string {
	style := lipgloss.NewStyle().Foreground(activeTheme().DimColor).Italic(true)
	return []string{style.Render("[image: " + c.Path + "]")}
}

// ---- Welcome / loading ----

type WelcomeCell struct {
	frame int
}

func (c *WelcomeCell) Kind() CellKind        { return KindWelcome }
func (c *WelcomeCell) GutterSymbol() rune    { return 0 }
func (c *WelcomeCell) IsAnimating() bool     { return c.frame < welcomeFrames }
func (c *WelcomeCell) HasCustomRender() bool { return true }

const (
	welcomeFrames        = 12
	welcomeFrameInterval = 100 * time.Millisecond
)

func (c *WelcomeCell) Tick() { c.frame++ }

func (c *WelcomeCell) DisplayLines(width int) []string {
	th := activeTheme()
	title := lipgloss.NewStyle().Bold(true).Foreground(th.AccentColor).Render("quill")
	sub := lipgloss.NewStyle().Foreground(th.DimColor).Render("terminal coding agent — /help for commands")
	return []string{title, sub}
}

type LoadingCell struct {
	Label string
}

func (c *LoadingCell) Kind() CellKind        { return KindLoading }
func (c *LoadingCell) GutterSymbol() rune    { return 0 }
func (c *LoadingCell) IsAnimating() bool     { return true }
func (c *LoadingCell) HasCustomRender() bool { return false }

func (c *LoadingCell) DisplayLines(width int) []string {
	label := c.Label
	if label == "" {
		label = "connecting…"
	}
	return []string{lipgloss.NewStyle().Foreground(activeTheme().DimColor).Render(label)}
}

// ---- Explore aggregation ----

// ExploreEntry is one read-only probe (file read, search) grouped under a
// single "exploring" header while the agent scans the workspace.
type ExploreEntry struct {
	Summary string
	Done    bool
}

type ExploreAggCell struct {
	Entries  []ExploreEntry
	Trailing bool // true while this is the last cell and may still grow
}

func (c *ExploreAggCell) Kind() CellKind        { return KindExplore }
func (c *ExploreAggCell) GutterSymbol() rune    { return '…' }
func (c *ExploreAggCell) IsAnimating() bool     { return c.Trailing }
func (c *ExploreAggCell) HasCustomRender() bool { return false }

func (c *ExploreAggCell) DisplayLines(width int) []string {
	th := activeTheme()
	head := "Exploring"
	if !c.Trailing {
		head = "Explored"
	}
	out := []string{lipgloss.NewStyle().Foreground(th.AccentColor).Render(head)}
	style := lipgloss.NewStyle().Foreground(th.DimColor)
	for _, e := range c.Entries {
		for _, l := range wrapPlain(e.Summary, width-2) {
			out = append(out, style.Render("  "+l))
		}
	}
	return out
}
