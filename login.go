package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Message types for the login flow
type providerSelectedMsg struct {
	provider *Provider
}

type modalCancelledMsg struct{}
type showOauthFailed struct{ err string }

// oauthSucceededMsg reports a completed login so the model can rebuild the
// session on the event loop.
type oauthSucceededMsg struct {
	provider string
	model    string
}

type authCodeEnteredMsg struct {
	code     string
	verifier string
}

// Provider is one authentication choice in the login modal.
type Provider struct {
	Name        string
	Description string
	Key         string
}

// BaseModal is the shared frame for centered modal dialogs.
type BaseModal struct {
	Title   string
	Content string
	Width   int
	Height  int
	Style   lipgloss.Style
}

func NewBaseModal(title, content string, width, height int) *BaseModal {
	return &BaseModal{
		Title:   title,
		Content: content,
		Width:   width,
		Height:  height,
		Style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(activeTheme().AccentColor).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center),
	}
}

func (m *BaseModal) Render() string {
	titleStyle := lipgloss.NewStyle().
		Background(activeTheme().AccentColor).
		Foreground(activeTheme().TextColor).
		Padding(0, 1).
		Width(m.Width - 2)

	title := titleStyle.Render(m.Title)
	content := lipgloss.NewStyle().
		Width(m.Width-2).
		Height(m.Height-4).
		Align(lipgloss.Center, lipgloss.Center).
		Render(m.Content)

	return m.Style.Render(lipgloss.JoinVertical(lipgloss.Center, title, content))
}

// ProviderSelectionModal lets the user pick which provider to log into.
type ProviderSelectionModal struct {
	*BaseModal
	providers        []Provider
	selected         int
	confirmed        bool
	selectedProvider *Provider
}

func NewProviderSelectionModal() *ProviderSelectionModal {
	return &ProviderSelectionModal{
		BaseModal: NewBaseModal("Select Authentication Provider", "", 60, 12),
		providers: []Provider{
			{Name: "Anthropic (Claude)", Description: "Claude Pro/Max", Key: "anthropic"},
			{Name: "OpenAI", Description: "GPT models", Key: "openai"},
			{Name: "Google AI", Description: "Gemini models", Key: "googleai"},
		},
	}
}

func (m *ProviderSelectionModal) Render() string {
	var content strings.Builder
	content.WriteString("Use ↑/↓ arrows to navigate, Enter to select, Esc/Q to cancel\n\n")

	for i, provider := range m.providers {
		prefix := "  "
		style := lipgloss.NewStyle()
		if i == m.selected {
			prefix = "▶ "
			style = style.Foreground(activeTheme().AccentColor).Bold(true)
		}
		line := prefix + provider.Name
		if provider.Description != "" {
			line += " - " + provider.Description
		}
		content.WriteString(style.Render(line) + "\n")
	}

	m.BaseModal.Content = content.String()
	return m.BaseModal.Render()
}

func (m *ProviderSelectionModal) Update(msg tea.Msg) (*ProviderSelectionModal, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.providers)-1 {
			m.selected++
		}
	case "enter":
		m.confirmed = true
		m.selectedProvider = &m.providers[m.selected]
		return m, func() tea.Msg { return providerSelectedMsg{provider: m.selectedProvider} }
	case "esc", "q":
		return m, func() tea.Msg { return modalCancelledMsg{} }
	}
	return m, nil
}

// CodeInputModal collects the CODE#STATE string Anthropic shows after the
// browser authorization step.
type CodeInputModal struct {
	*BaseModal
	input     string
	cursor    int
	authURL   string
	verifier  string
	confirmed bool
}

func NewCodeInputModal(authURL, verifier string) *CodeInputModal {
	return &CodeInputModal{
		BaseModal: NewBaseModal("Enter Authorization Code", "", 80, 15),
		authURL:   authURL,
		verifier:  verifier,
	}
}

func (m *CodeInputModal) Render() string {
	var content strings.Builder
	content.WriteString("Browser opened for Anthropic OAuth.\n\n")
	content.WriteString("1. Authorize in the browser\n")
	content.WriteString("2. Copy the authorization code shown after redirect\n")
	content.WriteString("3. Paste it below (format: CODE#STATE)\n\n")

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		Padding(0, 1).
		Width(60)

	display := m.input
	if m.cursor == len(display) {
		display += "│"
	} else if m.cursor < len(display) {
		display = display[:m.cursor] + "│" + display[m.cursor:]
	}

	content.WriteString(inputStyle.Render(display) + "\n\n")
	content.WriteString("Press Enter to submit, Esc to cancel")

	m.BaseModal.Content = content.String()
	return m.BaseModal.Render()
}

func (m *CodeInputModal) Update(msg tea.Msg) (*CodeInputModal, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "left", "ctrl+b":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "ctrl+f":
		if m.cursor < len(m.input) {
			m.cursor++
		}
	case "home", "ctrl+a":
		m.cursor = 0
	case "end", "ctrl+e":
		m.cursor = len(m.input)
	case "backspace", "ctrl+h":
		if m.cursor > 0 {
			m.input = m.input[:m.cursor-1] + m.input[m.cursor:]
			m.cursor--
		}
	case "delete", "ctrl+d":
		if m.cursor < len(m.input) {
			m.input = m.input[:m.cursor] + m.input[m.cursor+1:]
		}
	case "ctrl+u":
		m.input = m.input[m.cursor:]
		m.cursor = 0
	case "ctrl+k":
		m.input = m.input[:m.cursor]
	case "enter", "ctrl+m":
		if strings.TrimSpace(m.input) != "" {
			m.confirmed = true
			return m, func() tea.Msg {
				return authCodeEnteredMsg{
					code:     strings.TrimSpace(m.input),
					verifier: m.verifier,
				}
			}
		}
	case "esc", "ctrl+c":
		return m, func() tea.Msg { return modalCancelledMsg{} }
	case "ctrl+v":
		fallthrough
	default:
		m.insertText(keyMsg.String())
	}
	return m, nil
}

// insertText handles typed and pasted characters. Terminals may deliver a
// paste as one multi-character string wrapped in bracketed-paste markers.
func (m *CodeInputModal) insertText(str string) {
	if strings.HasPrefix(str, "[") && strings.HasSuffix(str, "]") && len(str) > 2 {
		str = str[1 : len(str)-1]
	}
	if str == "" || str == "[" || str == "]" || str == "up" || str == "down" ||
		strings.HasPrefix(str, "ctrl+") || strings.HasPrefix(str, "alt+") ||
		strings.HasPrefix(str, "shift+") {
		return
	}
	m.input = m.input[:m.cursor] + str + m.input[m.cursor:]
	m.cursor += len(str)
}

// Anthropic OAuth constants
const (
	anthropicClientID        = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	anthropicAuthURL         = "https://claude.ai/oauth/authorize"
	anthropicConsoleAuthURL  = "https://console.anthropic.com/oauth/authorize"
	anthropicTokenURL        = "https://console.anthropic.com/v1/oauth/token"
	anthropicRedirectURI     = "https://console.anthropic.com/oauth/code/callback"
	anthropicScope           = "org:create_api_key user:profile user:inference"
	anthropicAPIKeyCreateURL = "https://api.anthropic.com/api/oauth/claude_cli/create_api_key"
)

// AnthropicOAuthTokens is the token endpoint response.
type AnthropicOAuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// AnthropicAPIKeyResponse is the API key creation response.
type AnthropicAPIKeyResponse struct {
	APIKey string `json:"api_key"`
}

// AuthAnthropic implements Anthropic's manual-paste OAuth 2.0 flow.
type AuthAnthropic struct{}

// generatePKCE returns a fresh code verifier and its S256 challenge.
func (a *AuthAnthropic) generatePKCE() (verifier, challenge string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(bytes)
	hash := sha256.Sum256([]byte(verifier))
	return verifier, base64.RawURLEncoding.EncodeToString(hash[:]), nil
}

// authorize builds the authorization URL. The verifier doubles as the state
// parameter so exchange can check it against the pasted CODE#STATE.
func (a *AuthAnthropic) authorize() (authURL, verifier string, err error) {
	verifier, challenge, err := a.generatePKCE()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate PKCE: %w", err)
	}

	params := url.Values{}
	params.Set("code", "true")
	params.Set("client_id", anthropicClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", anthropicRedirectURI)
	params.Set("scope", anthropicScope)
	params.Set("code_challenge", challenge)
	params.Set("code_challenge_method", "S256")
	params.Set("state", verifier)

	return anthropicAuthURL + "?" + params.Encode(), verifier, nil
}

// postTokenForm posts a form to Anthropic's token endpoint and decodes the
// token response.
func postTokenForm(data url.Values, action string) (*AnthropicOAuthTokens, error) {
	req, err := http.NewRequest("POST", anthropicTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s failed with status %d: %s", action, resp.StatusCode, string(body))
	}

	var tokens AnthropicOAuthTokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	return &tokens, nil
}

// exchange trades the pasted CODE#STATE for tokens.
func (a *AuthAnthropic) exchange(authorizationCode, verifier string) (*AnthropicOAuthTokens, error) {
	parts := strings.Split(authorizationCode, "#")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid authorization code format")
	}
	code, state := parts[0], parts[1]
	if state != verifier {
		return nil, fmt.Errorf("state mismatch")
	}

	data := url.Values{}
	data.Set("code", code)
	data.Set("state", state)
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", anthropicClientID)
	data.Set("redirect_uri", anthropicRedirectURI)
	data.Set("code_verifier", verifier)
	return postTokenForm(data, "token exchange")
}

// access returns a valid access token, refreshing through the keyring
// credentials when the stored one is near expiry.
func (a *AuthAnthropic) access() (string, error) {
	tokenData, err := GetTokenFromKeyring("anthropic")
	if err != nil {
		return "", fmt.Errorf("failed to get tokens from keyring: %w", err)
	}
	if tokenData == nil {
		return "", fmt.Errorf("no stored credentials found")
	}
	if !IsTokenExpired(tokenData) {
		return tokenData.AccessToken, nil
	}

	refreshed, err := a.refreshToken(tokenData.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	expiry := time.Now().Add(time.Duration(refreshed.ExpiresIn) * time.Second)
	if err := SaveTokenToKeyring("anthropic", refreshed.AccessToken, refreshed.RefreshToken, expiry); err != nil {
		return "", fmt.Errorf("failed to save refreshed tokens: %w", err)
	}
	return refreshed.AccessToken, nil
}

func (a *AuthAnthropic) refreshToken(refreshToken string) (*AnthropicOAuthTokens, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", anthropicClientID)
	return postTokenForm(data, "token refresh")
}

// createAPIKey mints a permanent API key from an OAuth access token.
func (a *AuthAnthropic) createAPIKey(accessToken string) (string, error) {
	req, err := http.NewRequest("POST", anthropicAPIKeyCreateURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create API key request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create API key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API key creation failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response AnthropicAPIKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode API key response: %w", err)
	}
	return response.APIKey, nil
}

func handleLoginCommand(model *TUIModel, args []string) tea.Cmd {
	model.providerModal = NewProviderSelectionModal()
	return nil
}

// performOAuthLogin performs OAuth login for non-Anthropic providers. Token
// exchange runs off the event loop; the result comes back as a message.
func (m *TUIModel) performOAuthLogin(provider string) tea.Cmd {
	config := m.config
	return func() tea.Msg {
		var selModel string
		switch provider {
		case "googleai":
			selModel = "gemini-2.5-flash"
		default:
			selModel = "gpt-4o-mini"
		}

		token, refresh, expiry, err := runOAuthLoopback(provider)
		if err != nil {
			return showOauthFailed{err.Error()}
		}

		config.LLM.Provider = provider
		config.LLM.Model = selModel
		config.LLM.AuthToken = token
		config.LLM.RefreshToken = refresh
		if err := UpdateUserOAuthTokens(provider, token, refresh, expiry); err != nil {
			slog.Warn("oauth token not persisted", "provider", provider, "error", err)
		}
		return oauthSucceededMsg{provider: provider, model: selModel}
	}
}

// completeAnthropicOAuth finishes the Anthropic flow with the pasted code.
func (m *TUIModel) completeAnthropicOAuth(authCode, verifier string) tea.Cmd {
	config := m.config
	return func() tea.Msg {
		auth := &AuthAnthropic{}

		tokens, err := auth.exchange(authCode, verifier)
		if err != nil {
			return showOauthFailed{fmt.Sprintf("failed to exchange authorization code: %v", err)}
		}

		expiry := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		if err := SaveTokenToKeyring("anthropic", tokens.AccessToken, tokens.RefreshToken, expiry); err != nil {
			return showOauthFailed{fmt.Sprintf("failed to save tokens: %v", err)}
		}
		if err := UpdateUserOAuthTokens("anthropic", tokens.AccessToken, tokens.RefreshToken, expiry); err != nil {
			slog.Warn("oauth token not persisted", "provider", "anthropic", "error", err)
		}

		config.LLM.Provider = "anthropic"
		config.LLM.AuthToken = tokens.AccessToken
		config.LLM.RefreshToken = tokens.RefreshToken
		if config.LLM.Model == "" {
			config.LLM.Model = "claude-sonnet-4-20250514"
		}
		return oauthSucceededMsg{provider: "anthropic", model: config.LLM.Model}
	}
}

// runOAuthLoopback runs the standard loopback-redirect OAuth flow: a local
// callback server, PKCE, browser hand-off, then the code-for-token exchange.
func runOAuthLoopback(provider string) (accessToken, refreshToken string, expiry time.Time, err error) {
	cfg, err := getOAuthConfig(provider)
	if err != nil {
		return "", "", time.Time{}, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	codeVerifier := randomString(64)
	sum := sha256.Sum256([]byte(codeVerifier))
	codeChallenge := base64.RawURLEncoding.EncodeToString(sum[:])
	state := randomString(32)

	u, err := url.Parse(cfg.AuthURL)
	if err != nil {
		return "", "", time.Time{}, err
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	if len(cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")
	u.RawQuery = q.Encode()

	codeCh := make(chan string, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("<html><body><h2>Authorization complete. You can close this window.</h2></body></html>"))
		go func() { codeCh <- code }()
	})}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Warn("oauth callback server error", "error", err)
		}
	}()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	_ = openBrowser(u.String())

	var code string
	select {
	case code = <-codeCh:
	case <-time.After(5 * time.Minute):
		return "", "", time.Time{}, fmt.Errorf("authorization timed out")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", cfg.ClientID)
	if cfg.ClientSecret != "" {
		form.Set("client_secret", cfg.ClientSecret)
	}
	form.Set("code_verifier", codeVerifier)

	req, err := http.NewRequest("POST", cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", time.Time{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", time.Time{}, fmt.Errorf("token exchange failed: %s", resp.Status)
	}
	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		IdToken      string `json:"id_token"`
		TokenType    string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", "", time.Time{}, err
	}
	exp := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return tok.AccessToken, tok.RefreshToken, exp, nil
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return fmt.Errorf("unsupported OS for auto-open browser")
	}
}

func randomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n]
}
