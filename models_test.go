package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestListAnthropicModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("Expected GET request, got %s", r.Method)
		}
		if r.URL.Path != "/models" {
			t.Errorf("Expected /models path, got %s", r.URL.Path)
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Expected anthropic-version header 2023-06-01, got %s", r.Header.Get("anthropic-version"))
		}
		if r.Header.Get("x-api-key") != "test-api-key" {
			t.Errorf("Expected x-api-key header, got %s", r.Header.Get("x-api-key"))
		}

		response := map[string]any{
			"data": []map[string]string{
				{"id": "claude-3-5-sonnet-20241022", "display_name": "Claude 3.5 Sonnet"},
				{"id": "claude-3-haiku-20240307", "display_name": "Claude 3 Haiku"},
			},
			"has_more": "false",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	models, err := listAnthropicModels(server.URL, "test-api-key")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(models))
	}
	if models[0].ID != "claude-3-5-sonnet-20241022" {
		t.Errorf("Expected first model ID claude-3-5-sonnet-20241022, got %s", models[0].ID)
	}
	if models[0].DisplayName != "Claude 3.5 Sonnet" {
		t.Errorf("Expected first model DisplayName 'Claude 3.5 Sonnet', got %s", models[0].DisplayName)
	}
	if models[1].ID != "claude-3-haiku-20240307" {
		t.Errorf("Expected second model ID claude-3-haiku-20240307, got %s", models[1].ID)
	}
}

func TestListAnthropicModelsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := listAnthropicModels(server.URL, "test-api-key"); err == nil {
		t.Error("Expected error when server returns 500")
	}
}

func TestListOpenAIModelsSorted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer auth header, got %q", got)
		}
		response := map[string]any{
			"data": []map[string]string{
				{"id": "gpt-4o-mini"},
				{"id": "gpt-4o"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	models, err := listOpenAIModels(server.URL, "test-key")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(models))
	}
	if models[0].ID != "gpt-4o" || models[1].ID != "gpt-4o-mini" {
		t.Errorf("Expected lexicographic order, got %s, %s", models[0].ID, models[1].ID)
	}
}

func TestListOllamaModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Expected /api/tags path, got %s", r.URL.Path)
		}
		response := map[string]any{
			"models": []map[string]string{
				{"name": "llama3:8b"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	models, err := listOllamaModels(server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(models) != 1 || models[0].ID != "llama3:8b" {
		t.Fatalf("Expected llama3:8b, got %+v", models)
	}
}

func TestListModelsUnsupportedProvider(t *testing.T) {
	if _, err := listModels("fake", "", ""); err == nil {
		t.Error("Expected error for unsupported provider")
	}
}

func TestNewModelSelectionModal(t *testing.T) {
	modal := NewModelSelectionModal("claude-3-5-sonnet-20241022")

	if modal == nil {
		t.Fatal("Expected modal to be created")
	}
	if modal.current != "claude-3-5-sonnet-20241022" {
		t.Errorf("Expected current model to be kept, got %s", modal.current)
	}
	if !modal.loading {
		t.Error("Expected modal to start in loading state")
	}
	if modal.selected != 0 {
		t.Errorf("Expected selected to be 0, got %d", modal.selected)
	}
	if len(modal.models) != 0 {
		t.Errorf("Expected models to be empty initially, got %d", len(modal.models))
	}
}

func TestModelSelectionModalSetModels(t *testing.T) {
	modal := NewModelSelectionModal("claude-3-haiku-20240307")

	modal.SetModels([]ModelInfo{
		{ID: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.5 Sonnet"},
		{ID: "claude-3-haiku-20240307", DisplayName: "Claude 3 Haiku"},
	})

	if modal.loading {
		t.Error("Expected loading to be false after setting models")
	}
	if len(modal.models) != 2 {
		t.Errorf("Expected 2 models, got %d", len(modal.models))
	}
	// The cursor starts on the current model
	if modal.selected != 1 {
		t.Errorf("Expected selected to be 1 (current model), got %d", modal.selected)
	}
}

func TestModelSelectionModalSetError(t *testing.T) {
	modal := NewModelSelectionModal("claude-3-5-sonnet-20241022")

	modal.SetError("Failed to fetch models")

	if modal.loading {
		t.Error("Expected loading to be false after setting error")
	}
	if modal.err != "Failed to fetch models" {
		t.Errorf("Expected error message, got %s", modal.err)
	}
}

func TestModelSelectionModalKeyHandling(t *testing.T) {
	modal := NewModelSelectionModal("claude-3-5-sonnet-20241022")
	modal.SetModels([]ModelInfo{
		{ID: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.5 Sonnet"},
		{ID: "claude-3-haiku-20240307", DisplayName: "Claude 3 Haiku"},
		{ID: "claude-3-opus-20240229", DisplayName: "Claude 3 Opus"},
	})

	updated, cmd := modal.Update(tea.KeyMsg{Type: tea.KeyDown})
	if updated.selected != 1 {
		t.Errorf("Expected selected 1 after down arrow, got %d", updated.selected)
	}
	if cmd != nil {
		t.Error("Expected no command for navigation")
	}

	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyUp})
	if updated.selected != 0 {
		t.Errorf("Expected selected 0 after up arrow, got %d", updated.selected)
	}

	// Enter closes the modal and reports the selection
	closed, cmd := updated.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if closed != nil {
		t.Error("Expected modal to close on enter")
	}
	if cmd == nil {
		t.Fatal("Expected command when pressing enter")
	}
	selectedMsg, ok := cmd().(modelSelectedMsg)
	if !ok {
		t.Fatalf("Expected modelSelectedMsg, got %T", cmd())
	}
	if selectedMsg.model.ID != "claude-3-5-sonnet-20241022" {
		t.Errorf("Expected selected model claude-3-5-sonnet-20241022, got %s", selectedMsg.model.ID)
	}

	// Escape closes the modal and cancels
	closed, cmd = modal.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if closed != nil {
		t.Error("Expected modal to close on escape")
	}
	if cmd == nil {
		t.Fatal("Expected command when pressing escape")
	}
	if _, ok := cmd().(modalCancelledMsg); !ok {
		t.Errorf("Expected modalCancelledMsg, got %T", cmd())
	}
}

func TestModelSelectionModalRender(t *testing.T) {
	modal := NewModelSelectionModal("claude-3-5-sonnet-20241022")

	if modal.Render() == "" {
		t.Error("Expected non-empty output while loading")
	}

	modal.SetModels([]ModelInfo{
		{ID: "claude-3-5-sonnet-20241022", DisplayName: "Claude 3.5 Sonnet"},
		{ID: "claude-3-haiku-20240307", DisplayName: "Claude 3 Haiku"},
	})
	if modal.Render() == "" {
		t.Error("Expected non-empty output with models")
	}

	modal.SetError("Test error")
	if modal.Render() == "" {
		t.Error("Expected non-empty output with error")
	}
}
