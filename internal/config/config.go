package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all umaai configuration.
type Config struct {
	// Race/odds hosting
	Data DataConfig `yaml:"data"`

	// LLM providers
	LLM LLMConfig `yaml:"llm"`

	// Retry/timeout policy for the analysis client
	Timeouts AnalysisTimeouts `yaml:"timeouts"`

	// Result cache
	Cache CacheConfig `yaml:"cache"`

	// HTTP API
	Server ServerConfig `yaml:"server"`

	// Share delivery
	Share ShareConfig `yaml:"share"`

	// Default analysis parameters for the CLI
	Defaults DefaultsConfig `yaml:"defaults"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig configures where racedata/ and odds/ are read from.
type DataConfig struct {
	BaseURL     string `yaml:"base_url"`
	Dir         string `yaml:"dir"` // local mirror; takes precedence over BaseURL
	Timeout     string `yaml:"timeout"`
	Concurrency int    `yaml:"concurrency"`
}

// LLMConfig configures the LLM providers.
type LLMConfig struct {
	Provider string         `yaml:"provider"` // gemini, openai
	Fallback bool           `yaml:"fallback"` // switch provider when the primary stays overloaded
	Gemini   ProviderConfig `yaml:"gemini"`
	OpenAI   ProviderConfig `yaml:"openai"`
}

// ProviderConfig configures one provider endpoint.
type ProviderConfig struct {
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	BaseURL             string `yaml:"base_url"`
	MaxCompletionTokens int    `yaml:"max_completion_tokens,omitempty"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Backend  string `yaml:"backend"` // sqlite, redis, none
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	TTL      string `yaml:"ttl"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RequestTimeout string   `yaml:"request_timeout"`
}

// ShareConfig configures share delivery.
type ShareConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig configures the Telegram share target.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// DefaultsConfig holds the analysis parameters used when flags are omitted.
type DefaultsConfig struct {
	Budget       int      `yaml:"budget"`
	MinReturn    int      `yaml:"min_return"`
	TargetReturn int      `yaml:"target_return"`
	BetTypes     []string `yaml:"bet_types"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	File       string          `yaml:"file"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			BaseURL:     "https://bakechhh.github.io/keiba-index",
			Timeout:     "30s",
			Concurrency: 8,
		},

		LLM: LLMConfig{
			Provider: "gemini",
			Fallback: true,
			Gemini: ProviderConfig{
				Model:   "gemini-2.5-flash",
				BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			},
			OpenAI: ProviderConfig{
				Model:               "gpt-4o-mini",
				BaseURL:             "https://api.openai.com/v1",
				MaxCompletionTokens: 16000,
			},
		},

		Timeouts: DefaultAnalysisTimeouts(),

		Cache: CacheConfig{
			Backend: "sqlite",
			Path:    defaultCachePath(),
			TTL:     "72h",
		},

		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			RequestTimeout: "10m",
		},

		Defaults: DefaultsConfig{
			Budget:       10000,
			MinReturn:    100,
			TargetReturn: 150,
			BetTypes:     []string{"単勝", "複勝", "馬連", "ワイド"},
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".uma", "results.db")
	}
	return filepath.Join(home, ".uma", "results.db")
}

// DefaultConfigPath returns ~/.uma/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".uma", "config.yaml")
	}
	return filepath.Join(home, ".uma", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.Gemini.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.OpenAI.APIKey = key
	}
	if p := os.Getenv("UMA_PROVIDER"); p != "" {
		c.LLM.Provider = strings.ToLower(p)
	}

	if url := os.Getenv("UMA_DATA_URL"); url != "" {
		c.Data.BaseURL = url
	}
	if dir := os.Getenv("UMA_DATA_DIR"); dir != "" {
		c.Data.Dir = dir
	}

	if url := os.Getenv("UMA_REDIS_URL"); url != "" {
		c.Cache.RedisURL = url
		c.Cache.Backend = "redis"
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Share.Telegram.Token = token
	}
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
			c.Share.Telegram.ChatID = id
		}
	}
}

// GetDataTimeout returns the data fetch timeout as a duration.
func (c *Config) GetDataTimeout() time.Duration {
	return parseDuration(c.Data.Timeout, 30*time.Second)
}

// GetCacheTTL returns the cache TTL as a duration.
func (c *Config) GetCacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, 72*time.Hour)
}

// GetRequestTimeout returns the HTTP API request timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration(c.Server.RequestTimeout, 10*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"gemini", "openai"}

// ValidCacheBackends lists all supported cache backends.
var ValidCacheBackends = []string{"sqlite", "redis", "none"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if c.ActiveAPIKey() == "" {
		return fmt.Errorf("API key for %s not configured (set GEMINI_API_KEY or OPENAI_API_KEY)", c.LLM.Provider)
	}
	if !contains(ValidCacheBackends, c.Cache.Backend) {
		return fmt.Errorf("invalid cache backend: %s (valid: %v)", c.Cache.Backend, ValidCacheBackends)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache backend redis requires cache.redis_url")
	}
	if c.Data.BaseURL == "" && c.Data.Dir == "" {
		return fmt.Errorf("either data.base_url or data.dir must be set")
	}
	return c.Timeouts.Validate()
}

// ActiveAPIKey returns the key of the selected provider.
func (c *Config) ActiveAPIKey() string {
	switch c.LLM.Provider {
	case "gemini":
		return c.LLM.Gemini.APIKey
	case "openai":
		return c.LLM.OpenAI.APIKey
	}
	return ""
}

// IsTelegramEnabled returns whether share delivery to Telegram is configured.
func (c *Config) IsTelegramEnabled() bool {
	return c.Share.Telegram.Token != "" && c.Share.Telegram.ChatID != 0
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
