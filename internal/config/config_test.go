package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCfg() *Config {
	return &Config{
		Environment: "development",
		Logging:     LoggingConfig{Level: "info", Format: "text"},
		Storage:     StorageConfig{Path: "/tmp/parley.db"},
		LLM: LLMConfig{
			Provider:  "mock",
			MaxTokens: DefaultMaxTokens,
			Timeout:   DefaultDialogTimeout,
		},
		Dialog:    DialogConfig{Enabled: true, CacheTTL: DefaultCacheTTL},
		Summaries: SummariesConfig{Mode: SummariesDirect},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "empty storage path", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: "storage.path"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "hal9000" }, wantErr: "llm.provider"},
		{name: "anthropic without key", mutate: func(c *Config) { c.LLM.Provider = "anthropic" }, wantErr: "llm.api_key"},
		{name: "anthropic with key", mutate: func(c *Config) {
			c.LLM.Provider = "anthropic"
			c.LLM.APIKey = "sk-test-key-123456"
		}},
		{name: "ollama needs no key", mutate: func(c *Config) { c.LLM.Provider = "ollama" }},
		{name: "zero max tokens", mutate: func(c *Config) { c.LLM.MaxTokens = 0 }, wantErr: "llm.max_tokens"},
		{name: "zero timeout", mutate: func(c *Config) { c.LLM.Timeout = 0 }, wantErr: "llm.timeout"},
		{name: "negative cache ttl", mutate: func(c *Config) { c.Dialog.CacheTTL = -time.Second }, wantErr: "dialog.cache_ttl"},
		{name: "queue without redis", mutate: func(c *Config) { c.Summaries.Mode = SummariesQueue }, wantErr: "redis.url"},
		{name: "queue with redis", mutate: func(c *Config) {
			c.Summaries.Mode = SummariesQueue
			c.Redis.URL = "redis://localhost:6379"
		}},
		{name: "unknown summaries mode", mutate: func(c *Config) { c.Summaries.Mode = "sometimes" }, wantErr: "summaries.mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validCfg()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "unexpected error: %v", err)
		})
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PARLEY_LLM_PROVIDER", "ollama")
	t.Setenv("PARLEY_DIALOG_CACHE_TTL", "5m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, DefaultDialogTimeout, cfg.LLM.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Dialog.CacheTTL)
	assert.Equal(t, SummariesDirect, cfg.Summaries.Mode)
	assert.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
	assert.True(t, strings.HasSuffix(cfg.Storage.Path, "parley.db"))
}

func TestLoad_ProviderKeyFromEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PARLEY_LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-abcdefgh12345678")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-abcdefgh12345678", cfg.LLM.APIKey)
	assert.NotContains(t, cfg.LLM.String(), "abcdefgh1234")
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, LoggingConfig{Level: in}.SlogLevel(), in)
	}
}
