// Package llm implements single-attempt HTTP clients for the analysis
// providers. Retries and fallback live in internal/analysis; a Provider only
// performs one request and classifies its outcome.
package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Provider sends one document and returns the generated text. Failures are
// returned as *Error.
type Provider interface {
	Name() string
	Model() string
	Send(ctx context.Context, document string) (string, error)
}

// Credentials are passed in explicitly by the caller; providers never read
// keys from the environment.
type Credentials struct {
	Gemini string
	OpenAI string
}

// For returns the key for the named provider.
func (c Credentials) For(provider string) string {
	switch provider {
	case ProviderGemini:
		return c.Gemini
	case ProviderOpenAI:
		return c.OpenAI
	}
	return ""
}

// Alternate returns the other provider.
func Alternate(provider string) string {
	if provider == ProviderOpenAI {
		return ProviderGemini
	}
	return ProviderOpenAI
}

// SupportedModels lists the selectable models per provider; the first entry
// is the default.
var SupportedModels = map[string][]string{
	ProviderGemini: {"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.5-flash-lite", "gemini-2.0-flash"},
	ProviderOpenAI: {"gpt-4o-mini", "gpt-4o", "gpt-4.1", "gpt-4.1-mini"},
}

// DefaultModel returns the default model for provider.
func DefaultModel(provider string) string {
	if models := SupportedModels[provider]; len(models) > 0 {
		return models[0]
	}
	return ""
}

// ValidateModel checks that model is selectable for provider.
func ValidateModel(provider, model string) error {
	models, ok := SupportedModels[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	for _, m := range models {
		if m == model {
			return nil
		}
	}
	return fmt.Errorf("model %q is not available for %s (valid: %v)", model, provider, models)
}

// newLimiter paces requests to one provider: at most one request per
// interval. A zero interval disables pacing.
func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// pace waits for the limiter and applies the default timeout when ctx has no
// deadline. The returned cancel func must always be called.
func pace(ctx context.Context, provider string, limiter *rate.Limiter, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := limiter.Wait(ctx); err != nil {
		return ctx, func() {}, &Error{Kind: KindCanceled, Provider: provider, Err: err}
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		return ctx, cancel, nil
	}
	return ctx, func() {}, nil
}
