package main

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"
)

func setTestVersion(t *testing.T) {
	t.Helper()
	t.Setenv("QUILL_VERSION", "test-version")
	originalVersion := version
	version = ""
	t.Cleanup(func() {
		version = originalVersion
	})
}

func exportTestSession() *Session {
	return &Session{
		ID:          "test-session-123",
		CreatedAt:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		LastUpdated: time.Date(2024, 1, 15, 11, 45, 0, 0, time.UTC),
		Provider:    "anthropic",
		Model:       "claude-3-5-sonnet-latest",
		WorkingDir:  "/home/user/project",
		Messages: []llms.MessageContent{
			{
				Role:  llms.ChatMessageTypeSystem,
				Parts: []llms.ContentPart{llms.TextPart("You are a helpful assistant.")},
			},
		},
		ContextFiles: map[string]string{},
	}
}

// exportTestTranscript builds a transcript with one full exchange: prompt,
// reasoning, a command run, a tool call, a patch, and the final answer.
func exportTestTranscript() *Transcript {
	trans := NewTranscript(nil)
	trans.Insert(&UserCell{Text: "Hello, how are you?"}, key(1, outUserPrompt, 0), "prompt")
	trans.Insert(&ReasoningCell{ID: "r1", Text: "The user greets me."}, key(1, 0, 0), "reasoning")
	trans.Insert(&ExecCell{
		CallID:  "e1",
		Command: []string{"ls", "-la"},
		Status:  ExecComplete,
		Preview: []string{"total 4", "README.md"},
	}, key(1, 1, 0), "exec")
	trans.Insert(&ToolCell{
		CallID: "t1",
		Title:  "read_file(test.txt)",
		Body:   "File contents here",
		Status: ToolSuccess,
	}, key(1, 2, 0), "tool")
	trans.Insert(&PatchCell{
		CallID: "p1",
		Status: PatchApplied,
		Changes: []FileChange{
			{Path: "main.go", Kind: FileChangeUpdate, Diff: "-old line\n+new line"},
		},
	}, key(1, 3, 0), "patch")
	trans.Insert(&AssistantCell{ID: "a1", Markdown: "I'm doing well, thank you!"}, key(1, 4, 0), "answer")
	return trans
}

func TestGenerateFullExportContent(t *testing.T) {
	setTestVersion(t)
	session := exportTestSession()
	session.ContextFiles["AGENTS.md"] = "# Project Context\nThis is a test project."

	content := generateFullExportContent(exportTestTranscript(), session)

	expectedSections := []string{
		"# Quill Conversation Export",
		"**Quill Version:** test-version",
		"**Session ID:** test-session-123",
		"**Provider:** anthropic",
		"**Model:** claude-3-5-sonnet-latest",
		"**Working Directory:** /home/user/project",
		"**Created:** 2024-01-15 10:30:00",
		"**Last Updated:** 2024-01-15 11:45:00",
		"**Exported:**",
		"## System Prompt",
		"You are a helpful assistant.",
		"## Context Files",
		"### AGENTS.md",
		"# Project Context",
		"## Conversation",
		"### User",
		"Hello, how are you?",
		"### Reasoning",
		"> The user greets me.",
		"**Command:** `ls -la`",
		"README.md",
		"**Tool:** read_file(test.txt)",
		"File contents here",
		"**File changes:**",
		"- main.go",
		"+new line",
		"### Assistant",
		"I'm doing well, thank you!",
	}

	for _, expected := range expectedSections {
		if !strings.Contains(content, expected) {
			t.Errorf("Export content missing expected section: %s", expected)
		}
	}
}

func TestGenerateFullExportContentCellOrder(t *testing.T) {
	setTestVersion(t)
	content := generateFullExportContent(exportTestTranscript(), exportTestSession())

	// Cells appear in transcript order: prompt before activity before answer.
	userIdx := strings.Index(content, "### User")
	execIdx := strings.Index(content, "**Command:**")
	answerIdx := strings.Index(content, "### Assistant")
	if userIdx < 0 || execIdx < 0 || answerIdx < 0 {
		t.Fatalf("missing sections in:\n%s", content)
	}
	if !(userIdx < execIdx && execIdx < answerIdx) {
		t.Errorf("sections out of order: user=%d exec=%d answer=%d", userIdx, execIdx, answerIdx)
	}
}

func TestGenerateConversationExportContent(t *testing.T) {
	setTestVersion(t)
	session := exportTestSession()
	session.ContextFiles["AGENTS.md"] = "# Project Context\nThis is a test project."

	trans := exportTestTranscript()
	trans.Insert(&UserCell{Text: "What's the weather like?"}, key(2, outUserPrompt, 0), "prompt")
	trans.Insert(&AssistantCell{ID: "a2", Markdown: "I don't have access to real-time weather data."}, key(2, 0, 0), "answer")

	content := generateConversationExportContent(trans, session)

	expectedSections := []string{
		"# Quill Conversation",
		"**Quill Version:** test-version",
		"**Session ID:** test-session-123 | **Working Directory:** /home/user/project",
		"**Provider:** anthropic | **Model:** claude-3-5-sonnet-latest",
		"**Created:** 2024-01-15 10:30:00 | **Last Updated:** 2024-01-15 11:45:00 | **Exported:**",
		"### User",
		"Hello, how are you?",
		"### Assistant",
		"I'm doing well, thank you!",
		"What's the weather like?",
		"I don't have access to real-time weather data.",
	}

	for _, expected := range expectedSections {
		if !strings.Contains(content, expected) {
			t.Errorf("Conversation export content missing expected section: %s", expected)
		}
	}

	// The slim export keeps the exchange only.
	unexpectedSections := []string{
		"## System Prompt",
		"You are a helpful assistant.",
		"## Context Files",
		"### AGENTS.md",
		"### Reasoning",
		"**Command:**",
		"**Tool:**",
		"**File changes:**",
	}

	for _, unexpected := range unexpectedSections {
		if strings.Contains(content, unexpected) {
			t.Errorf("Conversation export content should not include: %s", unexpected)
		}
	}
}

func TestGenerateFullExportContentEmptyTranscript(t *testing.T) {
	setTestVersion(t)
	content := generateFullExportContent(NewTranscript(nil), exportTestSession())

	if !strings.Contains(content, "# Quill Conversation Export") {
		t.Error("Export content missing header")
	}
	if !strings.Contains(content, "## System Prompt") {
		t.Error("Export content missing system prompt section")
	}
	if !strings.Contains(content, "## Conversation") {
		t.Error("Export content missing conversation section")
	}
}

func TestGenerateFullExportContentNoContextFiles(t *testing.T) {
	setTestVersion(t)
	content := generateFullExportContent(exportTestTranscript(), exportTestSession())

	if strings.Contains(content, "## Context Files") {
		t.Error("Export content should not include Context Files section when there are no files")
	}
}

func TestExportTranscriptWithType(t *testing.T) {
	setTestVersion(t)
	session := exportTestSession()
	trans := exportTestTranscript()

	fullPath, err := exportTranscript(trans, session, ExportTypeFull)
	if err != nil {
		t.Fatalf("Full export failed: %v", err)
	}
	defer os.Remove(fullPath)

	if !strings.Contains(fullPath, "quill-export-full-") {
		t.Errorf("Full export filename should contain 'full', got: %s", fullPath)
	}

	convPath, err := exportTranscript(trans, session, ExportTypeConversation)
	if err != nil {
		t.Fatalf("Conversation export failed: %v", err)
	}
	defer os.Remove(convPath)

	if !strings.Contains(convPath, "quill-export-conversation-") {
		t.Errorf("Conversation export filename should contain 'conversation', got: %s", convPath)
	}

	fullContent, err := os.ReadFile(fullPath)
	if err != nil {
		t.Fatalf("Failed to read full export file: %v", err)
	}
	if len(fullContent) == 0 {
		t.Error("Full export file is empty")
	}

	convContent, err := os.ReadFile(convPath)
	if err != nil {
		t.Fatalf("Failed to read conversation export file: %v", err)
	}
	if len(convContent) == 0 {
		t.Error("Conversation export file is empty")
	}

	if len(convContent) >= len(fullContent) {
		t.Error("Conversation export should be shorter than full export")
	}
}

func TestExportTranscriptInvalidType(t *testing.T) {
	setTestVersion(t)
	_, err := exportTranscript(NewTranscript(nil), exportTestSession(), ExportType("invalid"))
	if err == nil {
		t.Error("Expected error for invalid export type")
	}
	if !strings.Contains(err.Error(), "unknown export type") {
		t.Errorf("Expected 'unknown export type' error, got: %v", err)
	}
}

func TestExportTranscriptNilSession(t *testing.T) {
	_, err := exportTranscript(NewTranscript(nil), nil, ExportTypeFull)
	if err == nil {
		t.Error("Expected error for nil session")
	}
}

func TestOpenInEditorFallsBackToVi(t *testing.T) {
	t.Setenv("EDITOR", "")
	cmd := openInEditor("/tmp/somefile.md")
	if len(cmd.Args) != 2 || cmd.Args[0] != "vi" {
		t.Errorf("Expected fallback to vi, got args: %v", cmd.Args)
	}
}

func TestOpenInEditorRespectsEnv(t *testing.T) {
	t.Setenv("EDITOR", "nano")
	cmd := openInEditor("/tmp/somefile.md")
	if len(cmd.Args) != 2 || cmd.Args[0] != "nano" || cmd.Args[1] != "/tmp/somefile.md" {
		t.Errorf("Expected nano invocation, got args: %v", cmd.Args)
	}
}
