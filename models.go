package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID          string
	DisplayName string
}

type modelSelectedMsg struct{ model ModelInfo }
type modelsLoadedMsg struct{ models []ModelInfo }
type modelsLoadErrorMsg struct{ error string }

// fetchModelsCommand lists the models the configured provider offers.
func (m *TUIModel) fetchModelsCommand() tea.Cmd {
	provider := m.config.LLM.Provider
	baseURL := m.config.LLM.BaseURL
	apiKey := m.config.LLM.APIKey
	return func() tea.Msg {
		models, err := listModels(provider, baseURL, apiKey)
		if err != nil {
			return modelsLoadErrorMsg{error: err.Error()}
		}
		return modelsLoadedMsg{models: models}
	}
}

func listModels(provider, baseURL, apiKey string) ([]ModelInfo, error) {
	switch provider {
	case "openai":
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return listOpenAIModels(baseURL, apiKey)
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return listOllamaModels(baseURL)
	case "anthropic":
		if baseURL == "" {
			baseURL = "https://api.anthropic.com/v1"
		}
		return listAnthropicModels(baseURL, apiKey)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

var modelsHTTPClient = &http.Client{Timeout: 15 * time.Second}

func listOpenAIModels(baseURL, apiKey string) ([]ModelInfo, error) {
	req, err := http.NewRequest("GET", strings.TrimRight(baseURL, "/")+"/models", nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := modelsHTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model list request failed: %s", resp.Status)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	var models []ModelInfo
	for _, m := range payload.Data {
		models = append(models, ModelInfo{ID: m.ID})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

func listOllamaModels(baseURL string) ([]ModelInfo, error) {
	resp, err := modelsHTTPClient.Get(strings.TrimRight(baseURL, "/") + "/api/tags")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model list request failed: %s", resp.Status)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	var models []ModelInfo
	for _, m := range payload.Models {
		models = append(models, ModelInfo{ID: m.Name})
	}
	return models, nil
}

func listAnthropicModels(baseURL, apiKey string) ([]ModelInfo, error) {
	req, err := http.NewRequest("GET", strings.TrimRight(baseURL, "/")+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	resp, err := modelsHTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model list request failed: %s", resp.Status)
	}

	var payload struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	var models []ModelInfo
	for _, m := range payload.Data {
		models = append(models, ModelInfo{ID: m.ID, DisplayName: m.DisplayName})
	}
	return models, nil
}

// ModelSelectionModal lets the user pick a model from the provider's list.
type ModelSelectionModal struct {
	current  string
	models   []ModelInfo
	selected int
	err      string
	loading  bool
}

func NewModelSelectionModal(current string) *ModelSelectionModal {
	return &ModelSelectionModal{current: current, loading: true}
}

func (m *ModelSelectionModal) SetModels(models []ModelInfo) {
	m.models = models
	m.loading = false
	for i, model := range models {
		if model.ID == m.current {
			m.selected = i
			break
		}
	}
}

func (m *ModelSelectionModal) SetError(err string) {
	m.err = err
	m.loading = false
}

func (m *ModelSelectionModal) Update(msg tea.Msg) (*ModelSelectionModal, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "esc", "q":
		return nil, func() tea.Msg { return modalCancelledMsg{} }
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.models)-1 {
			m.selected++
		}
	case "enter":
		if m.selected >= 0 && m.selected < len(m.models) {
			chosen := m.models[m.selected]
			return nil, func() tea.Msg { return modelSelectedMsg{model: chosen} }
		}
	}
	return m, nil
}

const modelModalVisible = 12

func (m *ModelSelectionModal) Render() string {
	th := activeTheme()
	dim := lipgloss.NewStyle().Foreground(th.DimColor)

	var body []string
	body = append(body, overlayTitle("Select model"), "")

	switch {
	case m.loading:
		body = append(body, dim.Render("Loading models…"))
	case m.err != "":
		body = append(body, lipgloss.NewStyle().Foreground(th.ErrorColor).Render(m.err))
	case len(m.models) == 0:
		body = append(body, dim.Render("No models available."))
	default:
		start := 0
		if m.selected >= modelModalVisible {
			start = m.selected - modelModalVisible + 1
		}
		end := start + modelModalVisible
		if end > len(m.models) {
			end = len(m.models)
		}
		for i := start; i < end; i++ {
			model := m.models[i]
			label := model.DisplayName
			if label == "" {
				label = model.ID
			}
			if model.ID == m.current {
				label += " (current)"
			}
			style := lipgloss.NewStyle().Foreground(th.TextColor)
			marker := "  "
			if i == m.selected {
				style = lipgloss.NewStyle().Foreground(th.AccentColor).Bold(true)
				marker = "> "
			}
			body = append(body, style.Render(marker+label))
		}
	}
	body = append(body, "", dim.Render("enter select · esc cancel"))

	return overlayFrame(50, len(body)+2).Render(strings.Join(body, "\n"))
}
