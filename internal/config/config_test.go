package config

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("INTIMA_BASE_URL", "")
	t.Setenv("INTIMA_STORAGE", "")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := FromEnv(logger)
	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, "http://localhost:8000/ai/chat/", cfg.ChatURL)
	assert.Equal(t, "http://localhost:8000/ai/chat/history/", cfg.HistoryURL)
	assert.Equal(t, "file", cfg.Storage)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 3, cfg.Limit)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("INTIMA_BASE_URL", "https://api.example.com/")
	t.Setenv("INTIMA_STORAGE", "duckdb")
	t.Setenv("INTIMA_DB_PATH", "/tmp/test.db")
	t.Setenv("INTIMA_MODEL", "gpt-4.1")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := FromEnv(logger)
	// Trailing slash is normalized before deriving endpoint URLs.
	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, "https://api.example.com/ai/welcome/", cfg.WelcomeURL)
	assert.Equal(t, "duckdb", cfg.Storage)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "gpt-4.1", cfg.Model)
}
