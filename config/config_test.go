package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thecxx/fcstream/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, config.Default().Addr, cfg.Addr)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("FCSTREAM_ADDR", ":9090")
	t.Setenv("FCSTREAM_PROVIDER", "deepseek")
	t.Setenv("FCSTREAM_MODEL", "deepseek-chat")
	t.Setenv("FCSTREAM_LOG_LEVEL", "debug")
	t.Setenv("FCSTREAM_FUNCTION_TIMEOUT", "15s")
	t.Setenv("FCSTREAM_PERSIST_STREAMED_TEXT", "true")
	t.Setenv("FCSTREAM_DEEPSEEK_API_KEY", "sk-deepseek")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("OPENAI_BASE_URL", "https://proxy.example/v1")
	for _, key := range []string{"ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL", "FCSTREAM_ANTHROPIC_API_KEY", "FCSTREAM_ANTHROPIC_BASE_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "deepseek", cfg.Provider)
	assert.Equal(t, "deepseek-chat", cfg.Model)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.FunctionTimeout)
	assert.True(t, cfg.PersistStreamedText)
	assert.Equal(t, "sk-deepseek", cfg.Providers["deepseek"].APIKey)
	assert.Equal(t, "sk-openai", cfg.Providers["openai"].APIKey)
	assert.Equal(t, "https://proxy.example/v1", cfg.Providers["openai"].BaseURL)
	assert.NotContains(t, cfg.Providers, "anthropic")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FCSTREAM_SEARCH_URL=http://searx.local\nFCSTREAM_DB=/tmp/x.db\n"), 0o600))
	// godotenv never overrides the environment
	t.Setenv("FCSTREAM_DB", "/var/lib/fcstream.db")
	// registers a restore of the variable that Load is about to set
	t.Setenv("FCSTREAM_SEARCH_URL", "")
	require.NoError(t, os.Unsetenv("FCSTREAM_SEARCH_URL"))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://searx.local", cfg.SearchURL)
	assert.Equal(t, "/var/lib/fcstream.db", cfg.DBPath)
}

func TestLoadInvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"FCSTREAM_LOG_LEVEL":             "loud",
		"FCSTREAM_FUNCTION_TIMEOUT":      "soon",
		"FCSTREAM_PERSIST_STREAMED_TEXT": "maybe",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
