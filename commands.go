package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Command represents a slash command
type Command struct {
	Name        string
	Description string
	Handler     func(*TUIModel, []string) tea.Cmd
}

// CommandRegistry holds all available commands
type CommandRegistry struct {
	Commands map[string]Command
	order    []string
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() CommandRegistry {
	registry := CommandRegistry{
		Commands: make(map[string]Command),
	}

	registry.RegisterCommand("/help", "Show keys and commands", handleHelpCommand)
	registry.RegisterCommand("/new", "Start a fresh conversation", handleNewSessionCommand)
	registry.RegisterCommand("/model", "Select the model", handleModelCommand)
	registry.RegisterCommand("/reasoning", "Set reasoning effort (minimal|low|medium|high)", handleReasoningCommand)
	registry.RegisterCommand("/verbosity", "Set response verbosity (low|medium|high)", handleVerbosityCommand)
	registry.RegisterCommand("/theme", "Switch color theme", handleThemeCommand)
	registry.RegisterCommand("/diffs", "Show files changed this session", handleDiffsCommand)
	registry.RegisterCommand("/limits", "Show token usage and rate limits", handleLimitsCommand)
	registry.RegisterCommand("/agents", "Show agents of the current task", handleAgentsCommand)
	registry.RegisterCommand("/undo", "Restore cells removed by jump-back", handleUndoCommand)
	registry.RegisterCommand("/export", "Export the conversation to markdown", handleExportCommand)
	registry.RegisterCommand("/resume", "Resume a stored session", handleResumeCommand)
	registry.RegisterCommand("/context", "Show context usage details", handleContextCommand)
	registry.RegisterCommand("/cmd", "Run a configured project command", handleProjectCmdCommand)
	registry.RegisterCommand("/validation", "Enable or disable a validation tool", handleValidationCommand)
	registry.RegisterCommand("/perf", "Performance tracing (on/off/show/reset)", handlePerfCommand)
	registry.RegisterCommand("/mcp", "Manage MCP servers (status/on/off/add)", handleMCPCommand)
	registry.RegisterCommand("/github", "GitHub Actions watcher (status/on/off)", handleGithubCommand)
	registry.RegisterCommand("/branch", "Work in an isolated branch, /merge when done", handleBranchCommand)
	registry.RegisterCommand("/merge", "Merge the work branch back to the default branch", handleMergeCommand)
	registry.RegisterCommand("/update", "Check for a newer release", handleUpdateCommand)
	registry.RegisterCommand("/login", "Login with OAuth provider selection", handleLoginCommand)
	registry.RegisterCommand("/auth", "Auth status (status/login/logout)", handleAuthCommand)
	registry.RegisterCommand("/quit", "Quit the application", handleQuitCommand)

	return registry
}

// RegisterCommand registers a new command
func (cr *CommandRegistry) RegisterCommand(name, description string, handler func(*TUIModel, []string) tea.Cmd) {
	if _, exists := cr.Commands[name]; !exists {
		cr.order = append(cr.order, name)
	}
	cr.Commands[name] = Command{
		Name:        name,
		Description: description,
		Handler:     handler,
	}
}

// GetCommand gets a command by name
func (cr CommandRegistry) GetCommand(name string) (Command, bool) {
	cmd, exists := cr.Commands[name]
	return cmd, exists
}

// GetAllCommands returns all registered commands
func (cr CommandRegistry) GetAllCommands() []Command {
	var commands []Command
	for _, name := range cr.order {
		if cmd, ok := cr.Commands[name]; ok {
			commands = append(commands, cmd)
		}
	}
	return commands
}

// Command handlers

type showHelpMsg struct{}
type showContextMsg struct{ content string }
type showModelSelectionMsg struct{}

func handleHelpCommand(model *TUIModel, args []string) tea.Cmd {
	return func() tea.Msg { return showHelpMsg{} }
}

func handleNewSessionCommand(model *TUIModel, args []string) tea.Cmd {
	model.conv.Reset()
	model.jumpStash = nil
	if model.session != nil {
		model.session.ClearHistory()
	}
	model.chat.Sync()
	return model.chat.GotoBottom()
}

func handleQuitCommand(model *TUIModel, args []string) tea.Cmd {
	model.conv.submit(ShutdownOp{})
	model.shutdown()
	return tea.Quit
}

func handleModelCommand(model *TUIModel, args []string) tea.Cmd {
	return func() tea.Msg { return showModelSelectionMsg{} }
}

var reasoningEfforts = map[string]bool{"minimal": true, "low": true, "medium": true, "high": true}

func handleReasoningCommand(model *TUIModel, args []string) tea.Cmd {
	if len(args) != 1 || !reasoningEfforts[args[0]] {
		model.conv.insertError("Usage: /reasoning <minimal|low|medium|high>", "")
		return nil
	}
	model.conv.submit(ConfigureSessionOp{Effort: args[0]})
	model.conv.insertInternalNotice("Reasoning effort set to " + args[0])
	return nil
}

var verbosityLevels = map[string]bool{"low": true, "medium": true, "high": true}

func handleVerbosityCommand(model *TUIModel, args []string) tea.Cmd {
	if len(args) != 1 || !verbosityLevels[args[0]] {
		model.conv.insertError("Usage: /verbosity <low|medium|high>", "")
		return nil
	}
	model.conv.submit(ConfigureSessionOp{Verbosity: args[0]})
	model.conv.insertInternalNotice("Verbosity set to " + args[0])
	return nil
}

func handleThemeCommand(model *TUIModel, args []string) tea.Cmd {
	var name string
	if len(args) == 0 {
		name = NextTheme()
	} else {
		name = args[0]
		if !SetTheme(name) {
			model.conv.insertError(fmt.Sprintf("Unknown theme: %s", name),
				"Available: "+strings.Join(ThemeNames(), ", "))
			return nil
		}
	}
	model.config.UI.Theme = name
	SaveConfig(model.config)
	RetintAll(model.conv.trans)
	return func() tea.Msg {
		return toastMsg{text: "Theme: " + name, kind: "info", timeout: 2 * time.Second}
	}
}

func handleDiffsCommand(model *TUIModel, args []string) tea.Cmd {
	model.overlay = NewDiffOverlay(model.conv.patches, model.width, model.height)
	return nil
}

func handleLimitsCommand(model *TUIModel, args []string) tea.Cmd {
	model.overlay = NewLimitsOverlay(model.conv.tokens, model.conv.rateLimits, model.width, model.height)
	return nil
}

func handleAgentsCommand(model *TUIModel, args []string) tea.Cmd {
	model.overlay = NewAgentsOverlay(model.conv.agents, model.width, model.height)
	return nil
}

func handleUndoCommand(model *TUIModel, args []string) tea.Cmd {
	if !model.UndoJumpBack() {
		model.conv.insertInternalNotice("Nothing to undo.")
		return nil
	}
	return model.chat.GotoBottom()
}

func handleExportCommand(model *TUIModel, args []string) tea.Cmd {
	exportType := ExportTypeConversation
	if len(args) > 0 && args[0] == "full" {
		exportType = ExportTypeFull
	}
	if model.session == nil {
		model.conv.insertError("No active session to export.", "")
		return nil
	}
	path, err := exportTranscript(model.conv.trans, model.session, exportType)
	if err != nil {
		model.conv.insertError(fmt.Sprintf("Export failed: %v", err), "")
		return nil
	}
	model.conv.insertInternalNotice("Exported to " + path)
	return nil
}

func handleResumeCommand(model *TUIModel, args []string) tea.Cmd {
	if model.sessionStore == nil {
		model.conv.insertError("Session persistence is disabled.", "Enable it in the config under [session].")
		return nil
	}
	return loadSessionsCommand(model.sessionStore)
}

func handleContextCommand(model *TUIModel, args []string) tea.Cmd {
	return func() tea.Msg {
		if model.session == nil {
			return showContextMsg{content: "No active session. Use /login to configure a provider."}
		}
		info := model.session.GetContextInfo()
		return showContextMsg{content: renderContextInfo(info)}
	}
}

// handleProjectCmdCommand runs a command configured under [commands] in the
// project config, through the backend so its output lands in the transcript.
func handleProjectCmdCommand(model *TUIModel, args []string) tea.Cmd {
	if len(args) == 0 {
		var names []string
		for name := range model.config.Commands {
			names = append(names, name)
		}
		if len(names) == 0 {
			model.conv.insertError("No project commands configured.", "Add them under [commands] in the config.")
			return nil
		}
		model.conv.insertInternalNotice("Project commands: " + strings.Join(names, ", "))
		return nil
	}
	name := args[0]
	command, ok := model.config.Commands[name]
	if !ok {
		model.conv.insertError(fmt.Sprintf("Unknown project command: %s", name), "Run /cmd to list them.")
		return nil
	}
	model.conv.submit(RunProjectCommandOp{Name: name, Command: command, Display: strings.Join(command, " ")})
	return nil
}

func handleValidationCommand(model *TUIModel, args []string) tea.Cmd {
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		model.conv.insertError("Usage: /validation <tool> <on|off>", "")
		return nil
	}
	model.conv.submit(UpdateValidationToolOp{Name: args[0], Enable: args[1] == "on"})
	model.conv.insertInternalNotice(fmt.Sprintf("Validation tool %s turned %s", args[0], args[1]))
	return nil
}

func handlePerfCommand(model *TUIModel, args []string) tea.Cmd {
	mode := "show"
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "on":
		perf.SetEnabled(true)
		model.conv.insertInternalNotice("Performance tracing on.")
	case "off":
		perf.SetEnabled(false)
		model.conv.insertInternalNotice("Performance tracing off.")
	case "reset":
		perf.Reset()
		model.conv.insertInternalNotice("Performance counters reset.")
	case "show":
		model.conv.insertInternalNotice(perf.Summary())
	default:
		model.conv.insertError("Usage: /perf <on|off|show|reset>", "")
	}
	return nil
}

// handleMCPCommand manages the MCP server registry in the project config.
func handleMCPCommand(model *TUIModel, args []string) tea.Cmd {
	if len(args) == 0 {
		args = []string{"status"}
	}
	switch args[0] {
	case "status":
		if len(model.config.MCP) == 0 {
			model.conv.insertInternalNotice("No MCP servers configured. Add one with /mcp add <name> <command...>.")
			return nil
		}
		names := make([]string, 0, len(model.config.MCP))
		for name := range model.config.MCP {
			names = append(names, name)
		}
		sort.Strings(names)
		lines := []string{"MCP servers:"}
		for _, name := range names {
			server := model.config.MCP[name]
			state := "disabled"
			if server.Enabled {
				state = "enabled"
			}
			lines = append(lines, fmt.Sprintf("  %s (%s): %s", name, state, strings.Join(server.Command, " ")))
		}
		model.conv.insertInternalNotice(strings.Join(lines, "\n"))
	case "on", "off":
		if len(args) != 2 {
			model.conv.insertError(fmt.Sprintf("Usage: /mcp %s <name>", args[0]), "")
			return nil
		}
		name := args[1]
		server, ok := model.config.MCP[name]
		if !ok {
			model.conv.insertError("Unknown MCP server: "+name, "Run /mcp to list them.")
			return nil
		}
		server.Enabled = args[0] == "on"
		model.config.MCP[name] = server
		if err := SaveMCPServers(model.config); err != nil {
			slog.Warn("mcp config not persisted", "error", err)
		}
		model.conv.insertInternalNotice(fmt.Sprintf("MCP server %s turned %s", name, args[0]))
	case "add":
		if len(args) < 3 {
			model.conv.insertError("Usage: /mcp add <name> <command...>", "")
			return nil
		}
		if model.config.MCP == nil {
			model.config.MCP = map[string]MCPServerConfig{}
		}
		model.config.MCP[args[1]] = MCPServerConfig{Command: args[2:], Enabled: true}
		if err := SaveMCPServers(model.config); err != nil {
			slog.Warn("mcp config not persisted", "error", err)
		}
		model.conv.insertInternalNotice("MCP server " + args[1] + " added.")
	default:
		model.conv.insertError("Usage: /mcp <status|on|off|add>", "")
	}
	return nil
}

type githubPollMsg struct{}

func githubPollTick() tea.Cmd {
	return tea.Tick(time.Minute, func(time.Time) tea.Msg { return githubPollMsg{} })
}

// checkGithubActions fetches the latest workflow run for the origin remote.
// In verbose mode the result always surfaces; the background watcher only
// reports failures.
func checkGithubActions(verbose bool) tea.Cmd {
	return func() tea.Msg {
		owner, repo, err := githubRemote()
		if err != nil {
			if verbose {
				return toastMsg{text: fmt.Sprintf("GitHub: %v", err), kind: "error", timeout: 4 * time.Second}
			}
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		run, err := latestWorkflowRun(ctx, owner, repo)
		if err != nil {
			if verbose {
				return toastMsg{text: fmt.Sprintf("GitHub: %v", err), kind: "error", timeout: 4 * time.Second}
			}
			return nil
		}
		if verbose {
			return showContextMsg{content: describeRun(run)}
		}
		if run.Conclusion == "failure" {
			return toastMsg{
				text:    fmt.Sprintf("GitHub Actions failed: %s on %s", run.Name, run.HeadBranch),
				kind:    "error",
				timeout: 6 * time.Second,
			}
		}
		return nil
	}
}

func handleGithubCommand(model *TUIModel, args []string) tea.Cmd {
	mode := "status"
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "status":
		return checkGithubActions(true)
	case "on":
		if model.githubWatch {
			model.conv.insertInternalNotice("GitHub Actions watcher is already on.")
			return nil
		}
		model.githubWatch = true
		model.conv.insertInternalNotice("GitHub Actions watcher on. Failed runs will surface as toasts.")
		return githubPollTick()
	case "off":
		model.githubWatch = false
		model.conv.insertInternalNotice("GitHub Actions watcher off.")
	default:
		model.conv.insertError("Usage: /github <status|on|off>", "")
	}
	return nil
}

func handleBranchCommand(model *TUIModel, args []string) tea.Cmd {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	created, err := createWorkBranch(name)
	if err != nil {
		model.conv.insertError(fmt.Sprintf("Branch failed: %v", err), "")
		return nil
	}
	model.conv.insertInternalNotice("Switched to new branch " + created + ". Use /merge to fold it back.")
	return nil
}

// handleMergeCommand merges the current work branch back into the default
// branch, through the backend so the git output lands in the transcript.
func handleMergeCommand(model *TUIModel, args []string) tea.Cmd {
	repo, err := openRepo()
	if err != nil {
		model.conv.insertError(fmt.Sprintf("Not a git repository: %v", err), "")
		return nil
	}
	branch, err := repoCurrentBranch(repo)
	if err != nil {
		model.conv.insertError(fmt.Sprintf("Merge failed: %v", err), "")
		return nil
	}
	target := repoDefaultBranch(repo)
	if branch == target {
		model.conv.insertError("Already on "+target+"; nothing to merge.", "Create a work branch with /branch first.")
		return nil
	}
	script := fmt.Sprintf("git checkout %s && git merge %s", target, branch)
	model.conv.submit(RunProjectCommandOp{Name: "merge", Command: []string{"sh", "-c", script}, Display: script})
	return nil
}

func handleUpdateCommand(model *TUIModel, args []string) tea.Cmd {
	current := quillVersion()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		release, err := latestRelease(ctx)
		if err != nil {
			return toastMsg{text: fmt.Sprintf("Update check failed: %v", err), kind: "error", timeout: 4 * time.Second}
		}
		if !newerVersion(release.Tag, current) {
			return toastMsg{
				text:    fmt.Sprintf("quill %s is up to date (latest release: %s)", current, release.Tag),
				kind:    "info",
				timeout: 4 * time.Second,
			}
		}
		return showContextMsg{content: fmt.Sprintf("Update available: %s → %s\n%s", current, release.Tag, release.URL)}
	}
}

func handleAuthCommand(model *TUIModel, args []string) tea.Cmd {
	mode := "status"
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "status":
		model.conv.insertInternalNotice(authStatus(model.config))
	case "login":
		return handleLoginCommand(model, nil)
	case "logout":
		provider := model.config.LLM.Provider
		if len(args) > 1 {
			provider = args[1]
		}
		if provider == "" {
			model.conv.insertError("No provider to log out of.", "Usage: /auth logout <provider>")
			return nil
		}
		if err := DeleteTokenFromKeyring(provider); err != nil {
			slog.Warn("token removal failed", "provider", provider, "error", err)
		}
		if err := DeleteAPIKeyFromKeyring(provider); err != nil {
			slog.Warn("api key removal failed", "provider", provider, "error", err)
		}
		model.config.LLM.AuthToken = ""
		model.config.LLM.RefreshToken = ""
		model.conv.insertInternalNotice("Logged out of " + provider + ".")
	default:
		model.conv.insertError("Usage: /auth <status|login|logout [provider]>", "")
	}
	return nil
}

// authStatus summarizes where the active provider's credentials come from.
func authStatus(config *Config) string {
	provider := config.LLM.Provider
	if provider == "" {
		return "Not logged in. Use /auth login to pick a provider."
	}
	source := "no stored credentials"
	if tok, err := GetTokenFromKeyring(provider); err == nil && tok != nil {
		if IsTokenExpired(tok) {
			source = "OAuth tokens in keyring (expired; refreshed on next request)"
		} else {
			source = fmt.Sprintf("OAuth tokens in keyring (valid until %s)", tok.Expiry.Format(time.RFC822))
		}
	} else if key, err := GetAPIKeyFromKeyring(provider); err == nil && key != "" {
		source = "API key in keyring"
	} else if config.LLM.APIKey != "" {
		source = "API key from config or environment"
	} else if config.LLM.AuthToken != "" {
		source = "OAuth token from config"
	}
	return fmt.Sprintf("Provider: %s\nModel: %s\nCredentials: %s", provider, config.LLM.Model, source)
}
