package analysis

import (
	"context"
	"errors"
	"time"

	"umaai/internal/config"
	"umaai/internal/llm"
	"umaai/internal/logging"
)

// Policy bounds one run.
type Policy struct {
	AttemptTimeout time.Duration
	MaxAttempts    int           // requests per provider for transient failures
	BackoffBase    time.Duration // delay after attempt n is BackoffBase * 2^(n-1)
	MaxTotal       time.Duration // zero disables the overall cap
}

// DefaultPolicy matches config.DefaultAnalysisTimeouts.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultAnalysisTimeouts())
}

// PolicyFromConfig converts the configured timeouts.
func PolicyFromConfig(t config.AnalysisTimeouts) Policy {
	return Policy{
		AttemptTimeout: t.AttemptTimeout.Std(),
		MaxAttempts:    t.MaxAttempts,
		BackoffBase:    t.BackoffBase.Std(),
		MaxTotal:       t.MaxTotal.Std(),
	}
}

// Backoff returns the delay after the failed attempt with the given 1-based
// number.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BackoffBase << uint(attempt-1)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client sends a document to a primary provider with bounded retries, and
// switches once to a fallback provider when the primary stays overloaded.
type Client struct {
	primary  llm.Provider
	fallback llm.Provider
	policy   Policy
	sleep    SleepFunc
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithFallback sets the provider used after the primary exhausts its attempts
// on 503.
func WithFallback(p llm.Provider) ClientOption {
	return func(c *Client) { c.fallback = p }
}

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(fn SleepFunc) ClientOption {
	return func(c *Client) { c.sleep = fn }
}

// NewClient creates a client.
func NewClient(primary llm.Provider, policy Policy, opts ...ClientOption) *Client {
	c := &Client{primary: primary, policy: policy, sleep: sleepContext}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Outcome is the result of a run. Trace is always set, including on failure.
type Outcome struct {
	Text     string
	Provider string
	Model    string
	Attempts int // total requests across providers
	FellBack bool
	Trace    *Trace
}

// Run drives the state machine until Success or Failed. The returned Outcome
// is never nil; the error, when set, is an *llm.Error.
func (c *Client) Run(ctx context.Context, document string) (*Outcome, error) {
	if c.policy.MaxTotal > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.MaxTotal)
		defer cancel()
	}

	m := newMachine()
	out := &Outcome{Trace: m.trace}
	log := logging.Get(logging.CategoryAnalysis)

	provider := c.primary
	attempt := 0       // attempts against the current provider
	switching := false // the pending backoff ends in FallbackSwitch
	var delay time.Duration
	var lastErr *llm.Error

	if err := ctx.Err(); err != nil {
		lastErr = canceled(provider.Name(), err)
		m.to(StateFailed, Event{Provider: provider.Name(), Kind: lastErr.Kind})
	} else {
		attempt++
		m.to(StateSending, Event{Provider: provider.Name(), Attempt: attempt})
	}

	for !m.state.Terminal() {
		switch m.state {
		case StateSending:
			out.Attempts++
			text, err := c.send(ctx, provider, document)
			if err == nil {
				out.Text, out.Provider, out.Model = text, provider.Name(), provider.Model()
				m.to(StateSuccess, Event{Provider: provider.Name(), Attempt: attempt})
				break
			}

			lastErr = classify(provider.Name(), err)
			if ctx.Err() != nil {
				lastErr = canceled(provider.Name(), ctx.Err())
			}
			log.Warn("%s attempt %d/%d failed: %v", provider.Name(), attempt, c.policy.attempts(), lastErr)

			switch {
			case lastErr.Kind.Retryable() && attempt < c.policy.attempts():
				switching = false
			case lastErr.Kind == llm.KindProviderOverloaded && c.fallback != nil && !out.FellBack:
				switching = true
			default:
				m.to(StateFailed, Event{Provider: provider.Name(), Attempt: attempt, Kind: lastErr.Kind})
				continue
			}
			delay = c.policy.Backoff(attempt)
			m.to(StateRetryWait, Event{Provider: provider.Name(), Attempt: attempt, Delay: delay, Kind: lastErr.Kind})

		case StateRetryWait:
			logging.AnalysisDebug("%s: backing off %v after attempt %d", provider.Name(), delay, attempt)
			if err := c.sleep(ctx, delay); err != nil {
				lastErr = canceled(provider.Name(), err)
				m.to(StateFailed, Event{Provider: provider.Name(), Attempt: attempt, Kind: lastErr.Kind})
				break
			}
			if switching {
				m.to(StateFallbackSwitch, Event{Provider: provider.Name(), Attempt: attempt, Kind: lastErr.Kind})
				break
			}
			attempt++
			m.to(StateSending, Event{Provider: provider.Name(), Attempt: attempt})

		case StateFallbackSwitch:
			logging.Analysis("%s overloaded after %d attempts, switching to %s", provider.Name(), attempt, c.fallback.Name())
			provider = c.fallback
			out.FellBack = true
			switching = false
			attempt = 1
			m.to(StateSending, Event{Provider: provider.Name(), Attempt: attempt})
		}
	}

	if m.state == StateFailed {
		return out, lastErr
	}
	logging.Analysis("analysis succeeded via %s (%s) after %d attempts", out.Provider, out.Model, out.Attempts)
	return out, nil
}

// send performs one attempt bounded by AttemptTimeout.
func (c *Client) send(ctx context.Context, p llm.Provider, document string) (string, error) {
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		defer cancel()
	}
	return p.Send(ctx, document)
}

// classify coerces any error into an *llm.Error. Unclassified errors are
// treated as network failures.
func classify(provider string, err error) *llm.Error {
	var e *llm.Error
	if errors.As(err, &e) {
		return e
	}
	return &llm.Error{Kind: llm.KindTransientNetwork, Provider: provider, Err: err}
}

func canceled(provider string, err error) *llm.Error {
	return &llm.Error{Kind: llm.KindCanceled, Provider: provider, Err: err}
}
