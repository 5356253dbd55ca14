package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultDialogTimeout bounds a single phrasing request.
	DefaultDialogTimeout = 20 * time.Second

	// DefaultCacheTTL is how long phrased text stays in the phrase cache.
	DefaultCacheTTL = 24 * time.Hour

	DefaultMaxTokens = 256
)

// Summary modes
const (
	SummariesOff    = "off"
	SummariesDirect = "direct"
	SummariesQueue  = "queue"
)

// Config holds all configuration for parley.
type Config struct {
	Environment string          `mapstructure:"environment"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Storage     StorageConfig   `mapstructure:"storage"`
	Redis       RedisConfig     `mapstructure:"redis"`
	LLM         LLMConfig       `mapstructure:"llm"`
	Dialog      DialogConfig    `mapstructure:"dialog"`
	Summaries   SummariesConfig `mapstructure:"summaries"`
	Engine      EngineConfig    `mapstructure:"engine"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SlogLevel parses Level, falling back to info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StorageConfig locates the knowledge database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig holds the phrase cache, summary queue and speaker event bus
// connection. An empty URL disables all three.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// LLMConfig selects and configures the phrasing backend.
type LLMConfig struct {
	Provider      string        `mapstructure:"provider"`
	Model         string        `mapstructure:"model"`
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ContentRating string        `mapstructure:"content_rating"`
}

// String returns a safe representation with the API key masked.
func (c LLMConfig) String() string {
	return fmt.Sprintf("LLMConfig{Provider:%s, Model:%s, APIKey:%s}", c.Provider, c.Model, maskAPIKey(c.APIKey))
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// DialogConfig controls phrasing.
type DialogConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// SummariesConfig controls conversation summaries: off, direct (written when
// the conversation closes) or queue (handed to the summary worker).
type SummariesConfig struct {
	Mode string `mapstructure:"mode"`
}

// EngineConfig seeds the engine's random source. Zero picks a random seed.
type EngineConfig struct {
	Seed uint64 `mapstructure:"seed"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".parley"))
	v.AddConfigPath(".")

	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("environment", "PARLEY_ENVIRONMENT", "ENVIRONMENT")
	_ = v.BindEnv("logging.level", "PARLEY_LOGGING_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("redis.url", "PARLEY_REDIS_URL", "REDIS_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerKey(cfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("storage.path", filepath.Join(homeDir(), ".parley", "parley.db"))

	v.SetDefault("redis.url", "")

	v.SetDefault("llm.provider", "mock")
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", DefaultMaxTokens)
	v.SetDefault("llm.timeout", DefaultDialogTimeout)
	v.SetDefault("llm.content_rating", "PG13")

	v.SetDefault("dialog.enabled", true)
	v.SetDefault("dialog.cache_ttl", DefaultCacheTTL)

	v.SetDefault("summaries.mode", SummariesDirect)

	v.SetDefault("engine.seed", 0)
}

// providerKey reads the conventional API key variable for provider.
func providerKey(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "venice":
		return os.Getenv("VENICE_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	switch c.LLM.Provider {
	case "anthropic", "venice", "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key must be set for provider %q", c.LLM.Provider)
		}
	case "ollama", "mock":
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be greater than 0")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be greater than 0")
	}
	if c.Dialog.CacheTTL < 0 {
		return fmt.Errorf("dialog.cache_ttl must be >= 0")
	}
	switch c.Summaries.Mode {
	case SummariesOff, SummariesDirect:
	case SummariesQueue:
		if c.Redis.URL == "" {
			return fmt.Errorf("summaries.mode %q requires redis.url", c.Summaries.Mode)
		}
	default:
		return fmt.Errorf("unknown summaries.mode %q", c.Summaries.Mode)
	}
	return nil
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
