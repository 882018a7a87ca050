package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// toastMsg asks the model to show a transient notification.
type toastMsg struct {
	text    string
	kind    string
	timeout time.Duration
}

// Overlay is a full-screen panel stacked above the transcript. HandleKey
// returns false when the overlay should close.
type Overlay interface {
	Render() string
	HandleKey(msg tea.KeyMsg) bool
}

func overlayFrame(width, height int) lipgloss.Style {
	th := activeTheme()
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(th.AccentColor).
		Width(width).
		Height(height).
		Padding(0, 1)
}

func overlayTitle(text string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(activeTheme().AccentColor).Render(text)
}

// ---- Approval modal ----

type approvalDecidedMsg struct {
	CallID   string
	Decision ApprovalDecision
	Command  []string
}

// ApprovalModal asks the user to approve a command or patch before the
// backend runs it.
type ApprovalModal struct {
	req      approvalRequestMsg
	selected int
	width    int
}

var approvalOptions = []struct {
	label    string
	decision ApprovalDecision
}{
	{"Yes", ApprovalApproved},
	{"Yes, for this session", ApprovalApprovedForSession},
	{"No", ApprovalDenied},
}

func NewApprovalModal(req approvalRequestMsg, width int) *ApprovalModal {
	w := width - 10
	if w > 80 {
		w = 80
	}
	if w < 40 {
		w = 40
	}
	return &ApprovalModal{req: req, width: w}
}

func (a *ApprovalModal) Update(msg tea.KeyMsg) (*ApprovalModal, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if a.selected > 0 {
			a.selected--
		}
	case "down", "j", "tab":
		if a.selected < len(approvalOptions)-1 {
			a.selected++
		}
	case "y":
		return nil, a.decide(ApprovalApproved)
	case "a":
		return nil, a.decide(ApprovalApprovedForSession)
	case "n", "esc":
		return nil, a.decide(ApprovalDenied)
	case "enter":
		return nil, a.decide(approvalOptions[a.selected].decision)
	}
	return a, nil
}

func (a *ApprovalModal) decide(decision ApprovalDecision) tea.Cmd {
	req := a.req
	return func() tea.Msg {
		return approvalDecidedMsg{CallID: req.CallID, Decision: decision, Command: req.Command}
	}
}

func (a *ApprovalModal) Render() string {
	th := activeTheme()
	var body []string

	if a.req.Patch {
		body = append(body, overlayTitle("Apply changes?"))
		for _, ch := range a.req.Changes {
			line := ch.Path
			if ch.MovePath != "" {
				line += " → " + ch.MovePath
			}
			body = append(body, lipgloss.NewStyle().Foreground(th.TextColor).Render("  "+line))
		}
	} else {
		body = append(body, overlayTitle("Run command?"))
		cmd := strings.Join(a.req.Command, " ")
		body = append(body, lipgloss.NewStyle().Foreground(th.WarningColor).Render("  $ "+cmd))
	}
	if a.req.Reason != "" {
		body = append(body, lipgloss.NewStyle().Foreground(th.DimColor).Italic(true).Render(a.req.Reason))
	}
	body = append(body, "")

	for i, opt := range approvalOptions {
		style := lipgloss.NewStyle().Foreground(th.TextColor)
		marker := "  "
		if i == a.selected {
			style = style.Foreground(th.AccentColor).Bold(true)
			marker = "> "
		}
		body = append(body, style.Render(marker+opt.label))
	}
	body = append(body, "", lipgloss.NewStyle().Foreground(th.DimColor).Render("y approve · a approve for session · n deny"))

	return overlayFrame(a.width, len(body)+2).Render(strings.Join(body, "\n"))
}

// ---- Diff overlay ----

// DiffOverlay shows every file changed this session, one tab per file.
type DiffOverlay struct {
	changes []FileChange
	tab     int
	scroll  int
	width   int
	height  int
}

func NewDiffOverlay(patches *PatchTracker, width, height int) *DiffOverlay {
	// collapse to one entry per path, newest change wins
	byPath := map[string]int{}
	var changes []FileChange
	for _, ch := range patches.SessionChanges() {
		if idx, ok := byPath[ch.Path]; ok {
			changes[idx] = ch
			continue
		}
		byPath[ch.Path] = len(changes)
		changes = append(changes, ch)
	}
	return &DiffOverlay{changes: changes, width: width - 4, height: height - 4}
}

func (d *DiffOverlay) HandleKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "esc", "q", "ctrl+d":
		return false
	case "left", "h":
		if d.tab > 0 {
			d.tab--
			d.scroll = 0
		}
	case "right", "l", "tab":
		if d.tab < len(d.changes)-1 {
			d.tab++
			d.scroll = 0
		}
	case "up", "k":
		if d.scroll > 0 {
			d.scroll--
		}
	case "down", "j":
		d.scroll++
	}
	return true
}

func (d *DiffOverlay) Render() string {
	th := activeTheme()
	if len(d.changes) == 0 {
		return overlayFrame(40, 3).Render("No changes this session.")
	}

	var tabs []string
	for i, ch := range d.changes {
		style := lipgloss.NewStyle().Foreground(th.DimColor)
		if i == d.tab {
			style = lipgloss.NewStyle().Foreground(th.AccentColor).Bold(true).Underline(true)
		}
		tabs = append(tabs, style.Render(shortPath(ch.Path)))
	}
	header := strings.Join(tabs, "  ")

	diffLines := strings.Split(d.changes[d.tab].Diff, "\n")
	if d.scroll > len(diffLines)-1 {
		d.scroll = len(diffLines) - 1
	}
	visible := d.height - 3
	if visible < 1 {
		visible = 1
	}
	end := d.scroll + visible
	if end > len(diffLines) {
		end = len(diffLines)
	}

	var body []string
	for _, line := range diffLines[d.scroll:end] {
		body = append(body, tintDiffLine(line, th))
	}

	content := header + "\n\n" + strings.Join(body, "\n")
	return overlayFrame(d.width, d.height).Render(content)
}

func tintDiffLine(line string, th *Theme) string {
	switch {
	case strings.HasPrefix(line, "+"):
		return lipgloss.NewStyle().Foreground(th.SuccessColor).Render(line)
	case strings.HasPrefix(line, "-"):
		return lipgloss.NewStyle().Foreground(th.ErrorColor).Render(line)
	case strings.HasPrefix(line, "@@"):
		return lipgloss.NewStyle().Foreground(th.AccentColor).Render(line)
	default:
		return line
	}
}

func shortPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) <= 2 {
		return path
	}
	return "…/" + strings.Join(parts[len(parts)-2:], "/")
}

// ---- Limits overlay ----

// LimitsOverlay shows token usage for the current session and the provider
// rate-limit windows.
type LimitsOverlay struct {
	tokens TokenCountEvent
	rates  RateLimitEvent
	width  int
}

func NewLimitsOverlay(tokens TokenCountEvent, rates RateLimitEvent, width, height int) *LimitsOverlay {
	w := width - 10
	if w > 60 {
		w = 60
	}
	return &LimitsOverlay{tokens: tokens, rates: rates, width: w}
}

func (l *LimitsOverlay) HandleKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "esc", "q", "ctrl+l", "enter":
		return false
	}
	return true
}

func (l *LimitsOverlay) Render() string {
	th := activeTheme()
	dim := lipgloss.NewStyle().Foreground(th.DimColor)

	var body []string
	body = append(body, overlayTitle("Usage & limits"), "")
	body = append(body, fmt.Sprintf("input tokens   %d (%d cached)", l.tokens.InputTokens, l.tokens.CachedTokens))
	body = append(body, fmt.Sprintf("output tokens  %d", l.tokens.OutputTokens))
	if l.tokens.ContextLimit > 0 {
		pct := 100 * l.tokens.ContextUsed / l.tokens.ContextLimit
		body = append(body, fmt.Sprintf("context        %d%% of %d", pct, l.tokens.ContextLimit))
	}

	if len(l.rates.Windows) > 0 {
		body = append(body, "", overlayTitle("Rate limits"))
		for _, w := range l.rates.Windows {
			bar := usageBar(w.UsedPercent, 20)
			body = append(body, fmt.Sprintf("%-10s %s %3.0f%%  resets %s",
				w.Label, bar, w.UsedPercent, w.ResetsAt.Format("15:04")))
		}
	} else {
		body = append(body, "", dim.Render("No rate limit data yet."))
	}
	body = append(body, "", dim.Render("esc to close"))

	return overlayFrame(l.width, len(body)+2).Render(strings.Join(body, "\n"))
}

func usageBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent) * width / 100
	th := activeTheme()
	color := th.SuccessColor
	if percent >= 90 {
		color = th.ErrorColor
	} else if percent >= 75 {
		color = th.WarningColor
	}
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(th.DimColor).Render(strings.Repeat("░", width-filled))
}

// ---- Agents overlay ----

// AgentsOverlay lists the delegated agents of the current task.
type AgentsOverlay struct {
	agents []AgentStatusInfo
	width  int
}

func NewAgentsOverlay(agents []AgentStatusInfo, width, height int) *AgentsOverlay {
	w := width - 10
	if w > 70 {
		w = 70
	}
	return &AgentsOverlay{agents: agents, width: w}
}

func (a *AgentsOverlay) HandleKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "esc", "q", "ctrl+a", "enter":
		return false
	}
	return true
}

func (a *AgentsOverlay) Render() string {
	th := activeTheme()
	var body []string
	body = append(body, overlayTitle("Agents"), "")

	if len(a.agents) == 0 {
		body = append(body, lipgloss.NewStyle().Foreground(th.DimColor).Render("No agents in this task."))
	}
	for _, ag := range a.agents {
		glyph, color := "·", th.DimColor
		switch ag.Status {
		case AgentRunning:
			glyph, color = "●", th.AccentColor
		case AgentCompleted:
			glyph, color = "●", th.SuccessColor
		case AgentFailed:
			glyph, color = "✗", th.ErrorColor
		case AgentCancelled:
			glyph, color = "○", th.WarningColor
		}
		line := fmt.Sprintf("%s %s", glyph, ag.Name)
		if !ag.StartedAt.IsZero() {
			end := ag.EndedAt
			if end.IsZero() {
				end = time.Now()
			}
			line += fmt.Sprintf("  %s", end.Sub(ag.StartedAt).Round(time.Second))
		}
		body = append(body, lipgloss.NewStyle().Foreground(color).Render(line))
		if ag.Detail != "" {
			body = append(body, lipgloss.NewStyle().Foreground(th.DimColor).Render("  "+ag.Detail))
		}
	}
	body = append(body, "", lipgloss.NewStyle().Foreground(th.DimColor).Render("esc to close"))

	return overlayFrame(a.width, len(body)+2).Render(strings.Join(body, "\n"))
}

// ---- Help overlay ----

type HelpOverlay struct {
	registry CommandRegistry
	width    int
	height   int
}

func NewHelpOverlay(registry CommandRegistry, width, height int) *HelpOverlay {
	w := width - 10
	if w > 70 {
		w = 70
	}
	return &HelpOverlay{registry: registry, width: w, height: height - 4}
}

func (h *HelpOverlay) HandleKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "esc", "q", "enter":
		return false
	}
	return true
}

var helpKeys = [][2]string{
	{"Enter", "send message"},
	{"Shift+Enter / Ctrl+J", "new line"},
	{"Shift+Up/Down", "prompt history"},
	{"Esc", "interrupt, or Esc-Esc to edit last prompt"},
	{"Ctrl+C", "clear input / interrupt / quit"},
	{"PgUp/PgDn", "scroll transcript"},
	{"Shift+Tab", "cycle access mode"},
	{"Ctrl+D", "diff overlay"},
	{"Ctrl+R", "show/hide reasoning"},
	{"Ctrl+L", "usage & limits"},
	{"Ctrl+A", "agents"},
	{"Ctrl+T", "standard terminal mode"},
	{"Ctrl+H", "this help"},
}

func (h *HelpOverlay) Render() string {
	th := activeTheme()
	dim := lipgloss.NewStyle().Foreground(th.DimColor)

	var body []string
	body = append(body, overlayTitle("Keys"), "")
	for _, k := range helpKeys {
		body = append(body, fmt.Sprintf("%-22s %s", k[0], dim.Render(k[1])))
	}
	body = append(body, "", overlayTitle("Commands"), "")
	for _, cmd := range h.registry.GetAllCommands() {
		body = append(body, fmt.Sprintf("%-14s %s", cmd.Name, dim.Render(cmd.Description)))
	}
	body = append(body, "", dim.Render("esc to close"))

	return overlayFrame(h.width, len(body)+2).Render(strings.Join(body, "\n"))
}
