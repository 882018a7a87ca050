package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	koanftoml "github.com/knadh/koanf/parsers/toml/v2"
	koanfenv "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
)

// Access modes govern what the assistant may do without asking. They map to
// the approval policy the backend enforces for exec and patch requests.
const (
	AccessReadOnly = "read-only"
	AccessAuto     = "auto"
	AccessFull     = "full"
)

// Config is the merged application configuration: user-level
// ~/.config/quill/conf.toml, then project-level .quill/conf.toml, then
// QUILL_* environment variables, later sources winning.
type Config struct {
	LLM      LLMConfig                  `koanf:"llm"`
	UI       UIConfig                   `koanf:"ui"`
	Approval ApprovalConfig             `koanf:"approval"`
	Session  SessionConfig              `koanf:"session"`
	Logging  LoggingConfig              `koanf:"logging"`
	Commands map[string][]string        `koanf:"commands"`
	MCP      map[string]MCPServerConfig `koanf:"mcp"`
}

// MCPServerConfig describes one configured MCP server, managed via /mcp.
type MCPServerConfig struct {
	Command []string `koanf:"command"`
	Enabled bool     `koanf:"enabled"`
}

// LLMConfig holds provider selection and credentials.
type LLMConfig struct {
	Provider        string `koanf:"provider"`
	Model           string `koanf:"model"`
	APIKey          string `koanf:"api_key"`
	BaseURL         string `koanf:"base_url"`
	ReasoningEffort string `koanf:"reasoning_effort"`
	Verbosity       string `koanf:"verbosity"`
	MaxTurns        int    `koanf:"max_turns"`
	MaxOutputTokens int    `koanf:"max_output_tokens"`

	// OAuth tokens when authenticating via OAuth2 instead of an API key.
	AuthToken    string `koanf:"auth_token"`
	RefreshToken string `koanf:"refresh_token"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Theme string `koanf:"theme"`
}

// ApprovalConfig holds the command approval policy.
type ApprovalConfig struct {
	AccessMode string `koanf:"access_mode"`
}

// SessionConfig holds session persistence settings.
type SessionConfig struct {
	Enabled     bool `koanf:"enabled"`
	AutoSave    bool `koanf:"auto_save"`
	MaxSessions int  `koanf:"max_sessions"`
	MaxAgeDays  int  `koanf:"max_age_days"`
	ListLimit   int  `koanf:"list_limit"`
}

// LoggingConfig holds file logging settings.
type LoggingConfig struct {
	Level      string `koanf:"level"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

type oauthProviderConfig struct {
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func defaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			MaxTurns: 60,
		},
		Approval: ApprovalConfig{
			AccessMode: AccessAuto,
		},
		Session: SessionConfig{
			Enabled:     true,
			AutoSave:    true,
			MaxSessions: 50,
			MaxAgeDays:  30,
			ListLimit:   10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

func userConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home dir: %w", err)
	}
	return filepath.Join(homeDir, ".config", "quill", "conf.toml"), nil
}

const projectConfigPath = ".quill/conf.toml"

// LoadConfig merges user config, project config and environment variables.
// A missing file is not an error; a malformed one is logged and skipped so a
// broken project config cannot lock the user out.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if userPath, err := userConfigPath(); err == nil {
		if _, statErr := os.Stat(userPath); statErr == nil {
			if err := k.Load(file.Provider(userPath), koanftoml.Parser()); err != nil {
				slog.Warn("skipping unreadable user config", "path", userPath, "error", err)
			}
		}
	}

	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := k.Load(file.Provider(projectConfigPath), koanftoml.Parser()); err != nil {
			slog.Warn("skipping unreadable project config", "path", projectConfigPath, "error", err)
		}
	}

	// QUILL_LLM_MODEL=... overrides llm.model, and so on.
	if err := k.Load(koanfenv.Provider(".", koanfenv.Opt{
		Prefix: "QUILL_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, "QUILL_")), "_", ".")
			return key, value
		},
	}), nil); err != nil {
		slog.Warn("failed to load environment overrides", "error", err)
	}

	// Standard provider env vars fill in a missing key.
	if k.String("llm.api_key") == "" {
		var envKey string
		switch k.String("llm.provider") {
		case "openai":
			envKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			envKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if envKey != "" {
			if err := k.Set("llm.api_key", envKey); err != nil {
				slog.Warn("failed to apply API key from environment", "error", err)
			}
		}
	}

	config := defaultConfig()
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if !isValidAccessMode(config.Approval.AccessMode) {
		slog.Warn("unknown access mode in config, using auto", "mode", config.Approval.AccessMode)
		config.Approval.AccessMode = AccessAuto
	}
	return &config, nil
}

func isValidAccessMode(mode string) bool {
	switch mode {
	case AccessReadOnly, AccessAuto, AccessFull:
		return true
	}
	return false
}

// SaveConfig persists the settings the UI can change at runtime into the
// project-level conf.toml, preserving everything else already in the file.
func SaveConfig(config *Config) error {
	if err := os.MkdirAll(filepath.Dir(projectConfigPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return rewriteConfigFile(projectConfigPath, 0o644, map[string]any{
		"llm.provider":         config.LLM.Provider,
		"llm.model":            config.LLM.Model,
		"ui.theme":             config.UI.Theme,
		"approval.access_mode": config.Approval.AccessMode,
	}, nil)
}

// SaveMCPServers persists the MCP server registry into the project config.
func SaveMCPServers(config *Config) error {
	if err := os.MkdirAll(filepath.Dir(projectConfigPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	set := map[string]any{}
	for name, server := range config.MCP {
		set["mcp."+name+".command"] = server.Command
		set["mcp."+name+".enabled"] = server.Enabled
	}
	return rewriteConfigFile(projectConfigPath, 0o644, set, nil)
}

// rewriteConfigFile loads an existing TOML file (if any), applies the given
// key updates and removals, and writes the result back.
func rewriteConfigFile(path string, perm os.FileMode, set map[string]any, remove []string) error {
	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), koanftoml.Parser()); err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
	}
	for key, value := range set {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	for _, key := range remove {
		k.Delete(key)
	}
	data, err := k.Marshal(koanftoml.Parser())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// UpdateUserLLMAuth records a provider/model choice in the user config and
// stores the API key in the OS keyring. If the keyring is unavailable the key
// falls back to the config file with restrictive permissions.
func UpdateUserLLMAuth(provider, apiKey, model string) error {
	cfgPath, err := userConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	set := map[string]any{
		"llm.provider": provider,
		"llm.model":    model,
	}
	remove := []string{"llm.api_key"}
	if err := SaveAPIKeyToKeyring(provider, apiKey); err != nil {
		slog.Warn("keyring unavailable, storing API key in config file", "error", err)
		set["llm.auth_method"] = "apikey_file"
		set["llm.api_key"] = apiKey
		remove = nil
	} else {
		set["llm.auth_method"] = "apikey_keyring"
	}
	return rewriteConfigFile(cfgPath, 0o600, set, remove)
}

// UpdateUserOAuthTokens stores OAuth tokens in the OS keyring and records the
// provider in the user config. Plaintext tokens are scrubbed from the file
// when the keyring succeeds, and written there only as a fallback.
func UpdateUserOAuthTokens(provider, accessToken, refreshToken string, expiry time.Time) error {
	cfgPath, err := userConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	set := map[string]any{
		"llm.provider": provider,
	}
	remove := []string{"llm.auth_token", "llm.refresh_token"}
	if err := SaveTokenToKeyring(provider, accessToken, refreshToken, expiry); err != nil {
		slog.Warn("keyring unavailable, storing tokens in config file", "error", err)
		set["llm.auth_method"] = "oauth_file"
		set["llm.auth_token"] = accessToken
		if refreshToken != "" {
			set["llm.refresh_token"] = refreshToken
		}
		remove = nil
	} else {
		set["llm.auth_method"] = "oauth_keyring"
	}
	return rewriteConfigFile(cfgPath, 0o600, set, remove)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getOAuthConfig(provider string) (oauthProviderConfig, error) {
	p := oauthProviderConfig{}
	switch provider {
	case "googleai":
		p.AuthURL = getEnv("QUILL_OAUTH_GOOGLE_AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth")
		p.TokenURL = getEnv("QUILL_OAUTH_GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token")
		p.ClientID = os.Getenv("QUILL_OAUTH_GOOGLE_CLIENT_ID")
		p.ClientSecret = os.Getenv("QUILL_OAUTH_GOOGLE_CLIENT_SECRET")
		if scopes := os.Getenv("QUILL_OAUTH_GOOGLE_SCOPES"); scopes != "" {
			p.Scopes = strings.Split(scopes, ",")
		} else {
			p.Scopes = []string{"https://www.googleapis.com/auth/generative-language"}
		}
	case "openai":
		p.AuthURL = os.Getenv("QUILL_OAUTH_OPENAI_AUTH_URL")
		p.TokenURL = os.Getenv("QUILL_OAUTH_OPENAI_TOKEN_URL")
		p.ClientID = os.Getenv("QUILL_OAUTH_OPENAI_CLIENT_ID")
		p.ClientSecret = os.Getenv("QUILL_OAUTH_OPENAI_CLIENT_SECRET")
		if scopes := os.Getenv("QUILL_OAUTH_OPENAI_SCOPES"); scopes != "" {
			p.Scopes = strings.Split(scopes, ",")
		}
	case "anthropic":
		p.AuthURL = os.Getenv("QUILL_OAUTH_ANTHROPIC_AUTH_URL")
		p.TokenURL = os.Getenv("QUILL_OAUTH_ANTHROPIC_TOKEN_URL")
		p.ClientID = os.Getenv("QUILL_OAUTH_ANTHROPIC_CLIENT_ID")
		p.ClientSecret = os.Getenv("QUILL_OAUTH_ANTHROPIC_CLIENT_SECRET")
		if scopes := os.Getenv("QUILL_OAUTH_ANTHROPIC_SCOPES"); scopes != "" {
			p.Scopes = strings.Split(scopes, ",")
		}
	default:
		return p, fmt.Errorf("unsupported provider for oauth: %s", provider)
	}
	if p.AuthURL == "" || p.TokenURL == "" || p.ClientID == "" {
		return p, fmt.Errorf("OAuth not configured. Set QUILL_OAUTH_* env vars for %s", provider)
	}
	return p, nil
}
