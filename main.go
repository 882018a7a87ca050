package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

type runCmd struct{}

type versionCmd struct{}

// version is stamped at build time via -ldflags.
var version = ""

var program *tea.Program

var cli struct {
	Version versionCmd `cmd:"version" help:"Print version information"`
	Prompt  string     `short:"p" help:"Prompt to send to the agent"`
	Run     runCmd     `cmd:"" default:"1" help:"Run the interactive application"`
}

func initLogger(cfg LoggingConfig) {
	logPath := cfg.File
	if logPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(fmt.Errorf("failed to get user home directory: %w", err))
		}
		logDir := filepath.Join(homeDir, ".local", "share", "quill")
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			panic(fmt.Errorf("failed to create log directory %s: %w", logDir, err))
		}
		logPath = filepath.Join(logDir, "quill.log")
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}

	logFile := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     28,
		Compress:   true,
	}

	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level})))
}

func (v versionCmd) Run() error {
	fmt.Printf("quill %s\n", quillVersion())
	return nil
}

func (r *runCmd) Run() error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Println("This program requires a terminal to run.")
		fmt.Println("Please run it in a terminal emulator.")
		return nil
	}

	config, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Using defaults due to config load failure: %v\n", err)
		fallback := defaultConfig()
		config = &fallback
	}

	tuiModel := NewTUIModel(config)
	program = tea.NewProgram(tuiModel, tea.WithAltScreen(), tea.WithMouseCellMotion())

	llm, err := getLLMClient(config)
	if err != nil {
		slog.Warn("failed to get LLM client, running without AI capabilities", "error", err)
		fmt.Fprintf(os.Stderr, "Warning: Running without AI capabilities: %v\n", err)
	} else {
		sess, sessErr := NewSession(llm, config, func(m any) {
			program.Send(m)
		})
		if sessErr != nil {
			return fmt.Errorf("failed to create a new session: %w", sessErr)
		}
		tuiModel.SetSession(sess)
		sess.Submit(ConfigureSessionOp{
			Model:          config.LLM.Model,
			Provider:       config.LLM.Provider,
			Cwd:            sess.WorkingDir,
			ApprovalPolicy: config.Approval.AccessMode,
		})
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	return nil
}

func main() {
	cfg, cfgErr := LoadConfig()
	if cfgErr != nil {
		fallback := defaultConfig()
		cfg = &fallback
	}
	initLogger(cfg.Logging)

	ctx := kong.Parse(&cli)

	if cli.Prompt != "" {
		if err := runOneShot(cfg, cli.Prompt); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := ctx.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// runOneShot sends a single prompt through the session and prints the
// streamed response and tool activity to stdout.
func runOneShot(config *Config, prompt string) error {
	llm, err := getLLMClient(config)
	if err != nil {
		return fmt.Errorf("creating LLM client: %w (configure authentication with '/login' in interactive mode)", err)
	}

	done := make(chan struct{})
	var sess *Session
	sess, err = NewSession(llm, config, consoleNotify(done, func(op Op) {
		if sess != nil {
			sess.Submit(op)
		}
	}))
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	sess.Submit(UserInputOp{Items: []InputItem{TextItem{Text: prompt}}})
	<-done
	return nil
}

// consoleNotify renders backend events and scheduler updates for
// non-interactive mode. Approval requests are auto-approved: a one-shot
// invocation has no one to ask.
func consoleNotify(done chan struct{}, submit func(Op)) NotifyFunc {
	activeToolCalls := make(map[string]*toolCallDisplay)

	return func(m any) {
		switch v := m.(type) {
		case ToolCallScheduledMsg:
			display := &toolCallDisplay{
				toolName: v.Call.Tool.Name(),
				input:    v.Call.Input,
				status:   "scheduled",
			}
			activeToolCalls[v.Call.ID] = display
			display.show()
		case ToolCallExecutingMsg:
			if display, exists := activeToolCalls[v.Call.ID]; exists {
				display.status = "executing"
				display.update()
			}
		case ToolCallSuccessMsg:
			if display, exists := activeToolCalls[v.Call.ID]; exists {
				display.status = "success"
				display.result = v.Call.Result
				display.complete()
				delete(activeToolCalls, v.Call.ID)
			}
		case ToolCallErrorMsg:
			if display, exists := activeToolCalls[v.Call.ID]; exists {
				display.status = "error"
				display.err = v.Call.Error
				display.complete()
				delete(activeToolCalls, v.Call.ID)
			}

		case BackendEvent:
			switch msg := v.Msg.(type) {
			case AgentMessageDeltaEvent:
				fmt.Print(msg.Delta)
			case AgentMessageEvent:
				fmt.Println()
			case ExecApprovalRequestEvent:
				fmt.Printf("\n[auto-approving: %s]\n", strings.Join(msg.Command, " "))
				submit(ApprovalResponseOp{CallID: msg.CallID, Decision: ApprovalApproved})
			case ApplyPatchApprovalRequestEvent:
				fmt.Println("\n[auto-approving patch]")
				submit(ApprovalResponseOp{CallID: msg.CallID, Decision: ApprovalApproved})
			case BackgroundNoticeEvent:
				fmt.Printf("\n[%s]\n", msg.Message)
			case ErrorEvent:
				fmt.Printf("\nError: %s\n", msg.Message)
			case TaskCompleteEvent:
				close(done)
			}
		}
	}
}

// formatToolCall renders a tool call as two lines with status and summary
// markers.
func formatToolCall(toolName, input, result string, err error) string {
	for _, tool := range availableTools {
		if tool.Name() == toolName {
			return tool.Format(input, result, err)
		}
	}
	return fmt.Sprintf("Unknown tool: %s", toolName)
}

// toolCallDisplay manages the display of a tool call with in-place status
// updates via ANSI cursor movement.
type toolCallDisplay struct {
	toolName string
	input    string
	result   string
	err      error
	status   string // "scheduled", "executing", "success", "error"
	linePos  int
}

func (d *toolCallDisplay) show() {
	formatted := d.formatWithStatus()
	lines := strings.Split(formatted, "\n")

	fmt.Print(lines[0])
	if len(lines) > 1 {
		fmt.Printf("\n%s", lines[1])
	}
	fmt.Print("\n")

	d.linePos = 2
}

func (d *toolCallDisplay) update() {
	d.redraw()
}

func (d *toolCallDisplay) complete() {
	d.redraw()
}

func (d *toolCallDisplay) redraw() {
	formatted := d.formatWithStatus()
	lines := strings.Split(formatted, "\n")

	fmt.Printf("\033[%dA", d.linePos)
	fmt.Print("\033[2K")
	fmt.Print(lines[0])

	if len(lines) > 1 {
		fmt.Print("\n\033[2K")
		fmt.Print(lines[1])
	}
	fmt.Print("\n")
}

func (d *toolCallDisplay) formatWithStatus() string {
	baseFormat := formatToolCall(d.toolName, d.input, d.result, d.err)

	var statusCircle string
	switch d.status {
	case "scheduled":
		statusCircle = "○"
	case "executing":
		statusCircle = "◐"
	case "success":
		statusCircle = "●"
	case "error":
		statusCircle = "✗"
	default:
		statusCircle = "○"
	}
	return strings.Replace(baseFormat, "○", statusCircle, 1)
}
