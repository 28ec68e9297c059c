package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "OPENAI_API_KEY", "UMA_PROVIDER", "UMA_DATA_URL",
		"UMA_DATA_DIR", "UMA_REDIS_URL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected Provider=gemini, got %s", cfg.LLM.Provider)
	}
	if cfg.Timeouts.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.Timeouts.MaxAttempts)
	}
	if cfg.Timeouts.BackoffBase.Std() != time.Second {
		t.Errorf("expected BackoffBase=1s, got %v", cfg.Timeouts.BackoffBase.Std())
	}
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.NotEmpty(t, cfg.Defaults.BetTypes)
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.OpenAI.APIKey = "sk-test"
	cfg.Timeouts.AttemptTimeout = Duration(30 * time.Second)

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", loaded.LLM.Provider)
	assert.Equal(t, "sk-test", loaded.LLM.OpenAI.APIKey)
	assert.Equal(t, 30*time.Second, loaded.Timeouts.AttemptTimeout.Std())
	assert.Equal(t, cfg.Defaults, loaded.Defaults)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Data.BaseURL, cfg.Data.BaseURL)
}

func TestLoad_PartialYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: gemini
  gemini:
    api_key: g-key
    model: gemini-2.5-pro
timeouts:
  attempt_timeout: 45s
  max_attempts: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Gemini.Model)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.AttemptTimeout.Std())
	assert.Equal(t, 2, cfg.Timeouts.MaxAttempts)
	// untouched sections keep their defaults
	assert.Equal(t, time.Second, cfg.Timeouts.BackoffBase.Std())
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.OpenAI.BaseURL)
}

func TestLoad_BadDuration(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeouts:\n  attempt_timeout: soon\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "env-gemini")
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("UMA_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "env-gemini", cfg.LLM.Gemini.APIKey)
	assert.Equal(t, "env-openai", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.True(t, cfg.IsTelegramEnabled())
	assert.Equal(t, int64(-100123), cfg.Share.Telegram.ChatID)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	// Default has no API key
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing API key")
	}

	cfg.LLM.Gemini.APIKey = "test-key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}

	cfg.LLM.Provider = "invalid-provider"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid provider")
	}

	cfg.LLM.Provider = "gemini"
	cfg.Cache.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for redis without url")
	}
}

func TestAnalysisTimeouts_Validate(t *testing.T) {
	assert.NoError(t, DefaultAnalysisTimeouts().Validate())
	assert.NoError(t, FastAnalysisTimeouts().Validate())

	tm := DefaultAnalysisTimeouts()
	tm.AttemptTimeout = 0
	assert.Error(t, tm.Validate())

	tm = DefaultAnalysisTimeouts()
	tm.MaxAttempts = 0
	assert.Error(t, tm.Validate())

	tm = DefaultAnalysisTimeouts()
	tm.MaxTotal = Duration(time.Second)
	assert.Error(t, tm.Validate())

	tm = DefaultAnalysisTimeouts()
	tm.MaxTotal = 0
	assert.NoError(t, tm.Validate(), "zero disables the total cap")
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.GetDataTimeout())
	assert.Equal(t, 72*time.Hour, cfg.GetCacheTTL())

	cfg.Data.Timeout = "bogus"
	assert.Equal(t, 30*time.Second, cfg.GetDataTimeout())
}
