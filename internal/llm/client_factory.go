package llm

import (
	"fmt"

	"umaai/internal/config"
)

// CredentialsFromConfig collects the configured keys.
func CredentialsFromConfig(cfg *config.Config) Credentials {
	return Credentials{
		Gemini: cfg.LLM.Gemini.APIKey,
		OpenAI: cfg.LLM.OpenAI.APIKey,
	}
}

// Factory builds providers from configuration and explicit credentials.
type Factory struct {
	creds  Credentials
	gemini GeminiConfig
	openai OpenAIConfig
}

// NewFactory creates a factory. Keys in cfg are ignored in favour of creds.
func NewFactory(cfg *config.Config, creds Credentials) *Factory {
	gemini := DefaultGeminiConfig(creds.Gemini)
	openai := DefaultOpenAIConfig(creds.OpenAI)

	if cfg != nil {
		if cfg.LLM.Gemini.BaseURL != "" {
			gemini.BaseURL = cfg.LLM.Gemini.BaseURL
		}
		if cfg.LLM.Gemini.Model != "" {
			gemini.Model = cfg.LLM.Gemini.Model
		}
		if cfg.LLM.OpenAI.BaseURL != "" {
			openai.BaseURL = cfg.LLM.OpenAI.BaseURL
		}
		if cfg.LLM.OpenAI.Model != "" {
			openai.Model = cfg.LLM.OpenAI.Model
		}
		if cfg.LLM.OpenAI.MaxCompletionTokens > 0 {
			openai.MaxCompletionTokens = cfg.LLM.OpenAI.MaxCompletionTokens
		}

		attempt := cfg.Timeouts.AttemptTimeout.Std()
		interval := cfg.Timeouts.MinInterval.Std()
		gemini.Timeout, openai.Timeout = attempt, attempt
		gemini.MinInterval, openai.MinInterval = interval, interval
	}

	return &Factory{creds: creds, gemini: gemini, openai: openai}
}

// Has reports whether a credential is configured for provider.
func (f *Factory) Has(provider string) bool {
	return f.creds.For(provider) != ""
}

// New builds the named provider. An empty model selects the configured one.
// A missing credential is reported as KindInvalidCredential.
func (f *Factory) New(provider, model string) (Provider, error) {
	if _, ok := SupportedModels[provider]; !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
	if !f.Has(provider) {
		return nil, &Error{Kind: KindInvalidCredential, Provider: provider, Message: "API key not configured"}
	}
	if model != "" {
		if err := ValidateModel(provider, model); err != nil {
			return nil, err
		}
	}

	switch provider {
	case ProviderGemini:
		cfg := f.gemini
		if model != "" {
			cfg.Model = model
		}
		return NewGeminiClientWithConfig(cfg), nil
	default:
		cfg := f.openai
		if model != "" {
			cfg.Model = model
		}
		return NewOpenAIClientWithConfig(cfg), nil
	}
}
