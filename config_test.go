package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp switches to a fresh directory so LoadConfig only sees the
// project config written by the test.
func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	originalWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(originalWd))
	})
	require.NoError(t, os.Chdir(tmpDir))
	// keep the user-level config out of the picture
	t.Setenv("HOME", tmpDir)
	return tmpDir
}

func writeProjectConfig(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, ".quill")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "conf.toml"), []byte(content), 0o644))
}

func TestLoadConfigDefaults(t *testing.T) {
	chdirTemp(t)

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, AccessAuto, config.Approval.AccessMode)
	assert.Equal(t, 60, config.LLM.MaxTurns)
	assert.True(t, config.Session.Enabled)
	assert.True(t, config.Session.AutoSave)
	assert.Equal(t, 50, config.Session.MaxSessions)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadConfigProjectFile(t *testing.T) {
	tmpDir := chdirTemp(t)
	writeProjectConfig(t, tmpDir, `[llm]
provider = "anthropic"
model = "test-model"

[approval]
access_mode = "read-only"

[session]
max_sessions = 5
`)

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", config.LLM.Provider)
	assert.Equal(t, "test-model", config.LLM.Model)
	assert.Equal(t, AccessReadOnly, config.Approval.AccessMode)
	assert.Equal(t, 5, config.Session.MaxSessions)
	// untouched sections keep their defaults
	assert.Equal(t, 60, config.LLM.MaxTurns)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	tmpDir := chdirTemp(t)
	writeProjectConfig(t, tmpDir, `[llm]
provider = "openai"
model = "file-model"
`)
	t.Setenv("QUILL_LLM_MODEL", "env-model")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "env-model", config.LLM.Model, "environment should win over the config file")
}

func TestLoadConfigProviderAPIKeyFromEnv(t *testing.T) {
	tmpDir := chdirTemp(t)
	writeProjectConfig(t, tmpDir, `[llm]
provider = "anthropic"
model = "test-model"
`)
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", config.LLM.APIKey)
}

func TestLoadConfigInvalidAccessModeFallsBack(t *testing.T) {
	tmpDir := chdirTemp(t)
	writeProjectConfig(t, tmpDir, `[approval]
access_mode = "yolo"
`)

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, AccessAuto, config.Approval.AccessMode)
}

func TestLoadConfigMalformedFileIsSkipped(t *testing.T) {
	tmpDir := chdirTemp(t)
	writeProjectConfig(t, tmpDir, "not [valid toml {{{")

	config, err := LoadConfig()
	require.NoError(t, err, "a broken project config should not lock the user out")
	assert.Equal(t, AccessAuto, config.Approval.AccessMode)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	chdirTemp(t)

	config, err := LoadConfig()
	require.NoError(t, err)
	config.LLM.Provider = "anthropic"
	config.LLM.Model = "my-model"
	config.UI.Theme = "dark"
	config.Approval.AccessMode = AccessFull

	require.NoError(t, SaveConfig(config))

	reloaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", reloaded.LLM.Provider)
	assert.Equal(t, "my-model", reloaded.LLM.Model)
	assert.Equal(t, "dark", reloaded.UI.Theme)
	assert.Equal(t, AccessFull, reloaded.Approval.AccessMode)
}

func TestSaveConfigPreservesUnmanagedKeys(t *testing.T) {
	tmpDir := chdirTemp(t)
	writeProjectConfig(t, tmpDir, `[llm]
provider = "openai"
model = "old-model"
max_turns = 99

[commands]
test = ["go", "test", "./..."]
`)

	config, err := LoadConfig()
	require.NoError(t, err)
	config.LLM.Model = "new-model"
	require.NoError(t, SaveConfig(config))

	reloaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "new-model", reloaded.LLM.Model)
	assert.Equal(t, 99, reloaded.LLM.MaxTurns, "keys SaveConfig does not manage should survive")
	assert.Equal(t, []string{"go", "test", "./..."}, reloaded.Commands["test"])
}

func TestUpdateUserLLMAuthWritesUserConfig(t *testing.T) {
	tmpDir := chdirTemp(t)

	// The keyring is typically unavailable in tests, so the key may land
	// in the file alongside provider and model.
	err := UpdateUserLLMAuth("openai", "sk-test-key", "gpt-test")
	if err != nil {
		t.Skipf("user config not writable: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, ".config", "quill", "conf.toml"))
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.Contains(content, "openai"))
	assert.True(t, strings.Contains(content, "gpt-test"))
}

func TestIsValidAccessMode(t *testing.T) {
	assert.True(t, isValidAccessMode(AccessReadOnly))
	assert.True(t, isValidAccessMode(AccessAuto))
	assert.True(t, isValidAccessMode(AccessFull))
	assert.False(t, isValidAccessMode(""))
	assert.False(t, isValidAccessMode("yolo"))
}
