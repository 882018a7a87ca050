package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// historyLimit caps the number of prompts kept on disk.
const historyLimit = 1000

// HistoryEntry is one submitted prompt with its submission time.
type HistoryEntry struct {
	Prompt    string    `json:"prompt"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryStore persists prompt history per project under the user data dir.
type HistoryStore struct {
	filePath string
}

// NewHistoryStore opens the history file for the current project, creating
// the data directory as needed. History written before per-project storage
// existed is migrated from the shared location on first use.
func NewHistoryStore() (*HistoryStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	slug := projectSlug(findProjectRoot(cwd))
	if slug == "" {
		slug = defaultProjectSlug
	}
	dataDir := filepath.Join(homeDir, ".local", "share", "quill")
	projectDir := filepath.Join(dataDir, "repo", filepath.FromSlash(slug))
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &HistoryStore{filePath: filepath.Join(projectDir, "history.json")}
	store.migrateLegacyHistory(filepath.Join(dataDir, "history.json"))
	return store, nil
}

// migrateLegacyHistory copies the pre-per-project history file into place
// when no project history exists yet.
func (h *HistoryStore) migrateLegacyHistory(legacyPath string) {
	if _, err := os.Stat(h.filePath); err == nil {
		return
	}
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		return
	}
	_ = os.WriteFile(h.filePath, data, 0o644)
}

// Load reads the stored entries. A missing file is an empty history; a
// corrupt file is logged and discarded rather than blocking startup.
func (h *HistoryStore) Load() ([]HistoryEntry, error) {
	data, err := os.ReadFile(h.filePath)
	if os.IsNotExist(err) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("failed to parse history file, starting fresh", "error", err)
		return []HistoryEntry{}, nil
	}
	return entries, nil
}

// Save writes entries to disk, trimmed to the retention limit. The write
// goes through a temp file and rename so a crash never truncates history.
func (h *HistoryStore) Save(entries []HistoryEntry) error {
	if len(entries) > historyLimit {
		entries = entries[len(entries)-historyLimit:]
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	tmpPath := h.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmpPath, h.filePath); err != nil {
		return fmt.Errorf("failed to rename history file: %w", err)
	}
	return nil
}

// Append stores one prompt, skipping consecutive duplicates.
func (h *HistoryStore) Append(prompt string) error {
	entries, err := h.Load()
	if err != nil {
		return err
	}
	if n := len(entries); n > 0 && entries[n-1].Prompt == prompt {
		return nil
	}
	entries = append(entries, HistoryEntry{Prompt: prompt, Timestamp: time.Now()})
	return h.Save(entries)
}

// Clear removes the history file.
func (h *HistoryStore) Clear() error {
	if err := os.Remove(h.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
