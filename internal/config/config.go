package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config centralizes every environment-derived setting: the backend base URL
// with its derived endpoint URLs, the storage backend selection, and the
// default chat options.
type Config struct {
	BaseURL string

	// Derived endpoint URLs, computed once.
	ChatURL          string
	ConversationsURL string
	HistoryURL       string
	WelcomeURL       string
	HealthURL        string

	// Storage selects the key-value backend: "file" (encrypted JSON file),
	// "duckdb", or "memory".
	Storage     string
	StoragePath string
	DBPath      string

	// Chat passthrough defaults.
	Model string
	Limit int
}

const defaultBaseURL = "http://localhost:8000"

// FromEnv builds the configuration from INTIMA_* environment variables,
// falling back to localhost defaults with a logged warning, the same way the
// original client validated its environment.
func FromEnv(logger *slog.Logger) Config {
	base := os.Getenv("INTIMA_BASE_URL")
	if base == "" {
		logger.Warn("INTIMA_BASE_URL not set, using default", "base_url", defaultBaseURL)
		base = defaultBaseURL
	}
	base = strings.TrimRight(base, "/")

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dataDir := filepath.Join(home, ".intima")

	cfg := Config{
		BaseURL:          base,
		ChatURL:          base + "/ai/chat/",
		ConversationsURL: base + "/ai/chat/conversations/",
		HistoryURL:       base + "/ai/chat/history/",
		WelcomeURL:       base + "/ai/welcome/",
		HealthURL:        base + "/ai/health/",
		Storage:          "file",
		StoragePath:      filepath.Join(dataDir, "state.json"),
		DBPath:           filepath.Join(dataDir, "intima.db"),
		Model:            "gpt-4o-mini",
		Limit:            3,
	}

	if s := os.Getenv("INTIMA_STORAGE"); s != "" {
		cfg.Storage = s
	}
	if p := os.Getenv("INTIMA_STORAGE_PATH"); p != "" {
		cfg.StoragePath = p
	}
	if p := os.Getenv("INTIMA_DB_PATH"); p != "" {
		cfg.DBPath = p
	}
	if m := os.Getenv("INTIMA_MODEL"); m != "" {
		cfg.Model = m
	}
	return cfg
}
