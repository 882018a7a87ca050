package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ExportType represents the type of export to generate
type ExportType string

const (
	ExportTypeFull         ExportType = "full"
	ExportTypeConversation ExportType = "conversation"
)

// exportTranscript renders the ordered transcript to a markdown file in the
// temp directory and returns the filepath. The full export includes the
// session preamble (system prompt, context files) and every cell kind; the
// conversation export keeps only the user/assistant exchange.
func exportTranscript(trans *Transcript, session *Session, exportType ExportType) (string, error) {
	if session == nil {
		return "", fmt.Errorf("no session to export")
	}
	if trans == nil {
		return "", fmt.Errorf("no transcript to export")
	}

	var content string
	switch exportType {
	case ExportTypeFull:
		content = generateFullExportContent(trans, session)
	case ExportTypeConversation:
		content = generateConversationExportContent(trans, session)
	default:
		return "", fmt.Errorf("unknown export type: %s", exportType)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("quill-export-%s-%s-%s.md", string(exportType), session.ID, timestamp)
	filepath := filepath.Join(os.TempDir(), filename)

	if err := os.WriteFile(filepath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return filepath, nil
}

// generateFullExportContent renders the session preamble followed by every
// transcript cell in display order.
func generateFullExportContent(trans *Transcript, session *Session) string {
	var b strings.Builder

	b.WriteString("# Quill Conversation Export\n\n")
	b.WriteString(session.formatMetadata(ExportTypeFull, time.Now()))
	b.WriteString("\n---\n\n")

	if sys := session.SystemPrompt(); sys != "" {
		b.WriteString("## System Prompt\n\n")
		b.WriteString(sys)
		b.WriteString("\n\n---\n\n")
	}

	if len(session.ContextFiles) > 0 {
		b.WriteString("## Context Files\n\n")
		for path, content := range session.ContextFiles {
			b.WriteString(fmt.Sprintf("### %s\n\n", path))
			b.WriteString("```\n")
			b.WriteString(content)
			b.WriteString("\n```\n\n")
		}
		b.WriteString("---\n\n")
	}

	b.WriteString("## Conversation\n\n")
	for i := 0; i < trans.Len(); i++ {
		formatCellFull(&b, trans.CellAt(i))
	}
	return b.String()
}

// generateConversationExportContent renders a slimmer export with just the
// user/assistant exchange, excluding the preamble and all activity cells.
func generateConversationExportContent(trans *Transcript, session *Session) string {
	var b strings.Builder

	b.WriteString("# Quill Conversation\n\n")
	b.WriteString(session.formatMetadata(ExportTypeConversation, time.Now()))
	b.WriteString("\n---\n\n")

	for i := 0; i < trans.Len(); i++ {
		switch c := trans.CellAt(i).(type) {
		case *UserCell:
			b.WriteString("### User\n\n")
			b.WriteString(c.Text)
			b.WriteString("\n\n")
		case *AssistantCell:
			b.WriteString("### Assistant\n\n")
			b.WriteString(c.Markdown)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// formatCellFull renders one transcript cell for the full export.
func formatCellFull(b *strings.Builder, cell Cell) {
	switch c := cell.(type) {
	case *UserCell:
		b.WriteString("### User\n\n")
		b.WriteString(c.Text)
		b.WriteString("\n\n")

	case *AssistantCell:
		b.WriteString("### Assistant\n\n")
		b.WriteString(c.Markdown)
		b.WriteString("\n\n")

	case *ReasoningCell:
		b.WriteString("### Reasoning\n\n")
		for _, line := range strings.Split(c.Text, "\n") {
			b.WriteString("> " + line + "\n")
		}
		b.WriteString("\n")

	case *ExecCell:
		formatExecExport(b, c)

	case *MergedExecCell:
		for _, e := range c.Entries {
			formatExecExport(b, e)
		}

	case *ToolCell:
		b.WriteString(fmt.Sprintf("**Tool:** %s\n\n", c.Title))
		if c.Body != "" {
			b.WriteString("```\n")
			b.WriteString(c.Body)
			b.WriteString("\n```\n\n")
		}

	case *PatchCell:
		b.WriteString("**File changes:**\n\n")
		for _, ch := range c.Changes {
			label := ch.Path
			if ch.MovePath != "" {
				label = ch.Path + " -> " + ch.MovePath
			}
			b.WriteString(fmt.Sprintf("- %s\n", label))
		}
		b.WriteString("\n")
		for _, ch := range c.Changes {
			if ch.Diff == "" {
				continue
			}
			b.WriteString("```diff\n")
			b.WriteString(ch.Diff)
			b.WriteString("\n```\n\n")
		}

	case *DiffCell:
		if c.Title != "" {
			b.WriteString(fmt.Sprintf("**%s**\n\n", c.Title))
		}
		b.WriteString("```diff\n")
		b.WriteString(c.Diff)
		b.WriteString("\n```\n\n")

	case *PlanCell:
		title := "Plan"
		if c.Name != "" {
			title = "Plan: " + c.Name
		}
		b.WriteString(fmt.Sprintf("**%s**\n\n", title))
		for _, s := range c.Steps {
			box := "[ ]"
			switch s.Status {
			case PlanStepInProgress:
				box = "[~]"
			case PlanStepCompleted:
				box = "[x]"
			}
			b.WriteString(fmt.Sprintf("- %s %s\n", box, s.Step))
		}
		b.WriteString("\n")

	case *NoticeCell:
		b.WriteString(fmt.Sprintf("_%s_\n\n", c.Text))

	case *ErrorCell:
		b.WriteString(fmt.Sprintf("**Error:** %s\n\n", c.Text))
		if c.Hint != "" {
			b.WriteString(fmt.Sprintf("_%s_\n\n", c.Hint))
		}

	case *ImageCell:
		b.WriteString(fmt.Sprintf("![image](%s)\n\n", c.Path))
	}
	// welcome, loading, streaming, and explore cells are transient UI state
}

// formatExecExport renders one command run for the full export.
func formatExecExport(b *strings.Builder, c *ExecCell) {
	head := strings.Join(c.Command, " ")
	switch c.Status {
	case ExecInterrupted:
		head += "  (interrupted)"
	case ExecComplete:
		if c.ExitCode != 0 {
			head += fmt.Sprintf("  (exit %d)", c.ExitCode)
		}
	}
	b.WriteString(fmt.Sprintf("**Command:** `%s`\n\n", head))
	if len(c.Preview) > 0 {
		b.WriteString("```\n")
		b.WriteString(strings.Join(c.Preview, "\n"))
		b.WriteString("\n```\n\n")
	}
}

// openInEditor creates a command to open the specified file in the user's preferred editor
func openInEditor(filepath string) *exec.Cmd {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	return exec.Command(editor, filepath)
}
