// Package config loads runtime configuration from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/constants"
)

const envPrefix = "FCSTREAM_"

// Providers that can be configured through the environment.
var knownProviders = []string{
	constants.ProviderOpenAI,
	constants.ProviderAnthropic,
	constants.ProviderDeepSeek,
	constants.ProviderQwen,
	constants.ProviderVolcengine,
	constants.ProviderOllama,
	constants.ProviderZhipu,
}

// Config is the runtime configuration.
type Config struct {
	Addr                string
	DBPath              string
	Provider            string
	Model               string
	LogLevel            slog.Level
	SearchURL           string
	FunctionTimeout     time.Duration
	PersistStreamedText bool
	Providers           map[string]fcstream.ProviderConfig
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:      ":8080",
		DBPath:    "data/fcstream.db",
		Provider:  constants.ProviderOpenAI,
		Model:     "gpt-4o-mini",
		LogLevel:  slog.LevelInfo,
		Providers: map[string]fcstream.ProviderConfig{},
	}
}

// Load reads the given .env files (default ".env"; missing files are
// ignored) and then the environment. Variables already set in the
// environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Default()
	setString(&cfg.Addr, "ADDR")
	setString(&cfg.DBPath, "DB")
	setString(&cfg.Provider, "PROVIDER")
	setString(&cfg.Model, "MODEL")
	setString(&cfg.SearchURL, "SEARCH_URL")

	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("%sLOG_LEVEL: %w", envPrefix, err)
		}
	}
	if v := os.Getenv(envPrefix + "FUNCTION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%sFUNCTION_TIMEOUT: %w", envPrefix, err)
		}
		cfg.FunctionTimeout = d
	}
	if v := os.Getenv(envPrefix + "PERSIST_STREAMED_TEXT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%sPERSIST_STREAMED_TEXT: %w", envPrefix, err)
		}
		cfg.PersistStreamedText = b
	}

	for _, p := range knownProviders {
		upper := strings.ToUpper(p)
		pc := fcstream.ProviderConfig{
			APIKey:  firstEnv(envPrefix+upper+"_API_KEY", upper+"_API_KEY"),
			BaseURL: firstEnv(envPrefix+upper+"_BASE_URL", upper+"_BASE_URL"),
		}
		if pc.APIKey != "" || pc.BaseURL != "" {
			cfg.Providers[p] = pc
		}
	}
	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
