package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// AnalysisTimeouts centralizes the retry and timeout policy of the analysis
// client.
//
// In Go the SHORTEST timeout in the chain wins: an attempt is bounded by
// AttemptTimeout, and the whole retry+fallback sequence by MaxTotal.
type AnalysisTimeouts struct {
	// AttemptTimeout bounds one provider HTTP call, including reading the body.
	AttemptTimeout Duration `yaml:"attempt_timeout"`

	// MaxAttempts is the request budget per provider for transient failures
	// (network, 429, 503). Every failed attempt in the budget is followed by a
	// backoff; after the last one the client fails or switches provider.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffBase is multiplied by 2^n before the backoff after attempt n+1.
	BackoffBase Duration `yaml:"backoff_base"`

	// MaxTotal caps wall-clock time across all attempts, backoffs and the
	// fallback provider. Zero disables the cap.
	MaxTotal Duration `yaml:"max_total"`

	// MinInterval is the minimum delay between consecutive calls to one provider.
	MinInterval Duration `yaml:"min_interval"`
}

// DefaultAnalysisTimeouts returns the defaults: 120s per attempt, 3 attempts
// per provider with 1s/2s/4s backoff, 5 minutes overall.
func DefaultAnalysisTimeouts() AnalysisTimeouts {
	return AnalysisTimeouts{
		AttemptTimeout: Duration(120 * time.Second),
		MaxAttempts:    3,
		BackoffBase:    Duration(1 * time.Second),
		MaxTotal:       Duration(5 * time.Minute),
		MinInterval:    Duration(100 * time.Millisecond),
	}
}

// FastAnalysisTimeouts returns shorter timeouts for interactive use with small
// prompts.
func FastAnalysisTimeouts() AnalysisTimeouts {
	return AnalysisTimeouts{
		AttemptTimeout: Duration(30 * time.Second),
		MaxAttempts:    2,
		BackoffBase:    Duration(500 * time.Millisecond),
		MaxTotal:       Duration(2 * time.Minute),
		MinInterval:    Duration(100 * time.Millisecond),
	}
}

// Validate rejects policies that cannot make progress.
func (t AnalysisTimeouts) Validate() error {
	if t.AttemptTimeout <= 0 {
		return fmt.Errorf("timeouts.attempt_timeout must be positive")
	}
	if t.MaxAttempts < 1 {
		return fmt.Errorf("timeouts.max_attempts must be at least 1")
	}
	if t.BackoffBase < 0 || t.MinInterval < 0 || t.MaxTotal < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if t.MaxTotal > 0 && t.MaxTotal < t.AttemptTimeout {
		return fmt.Errorf("timeouts.max_total (%v) is shorter than one attempt (%v)", t.MaxTotal.Std(), t.AttemptTimeout.Std())
	}
	return nil
}

// Duration is a time.Duration that reads and writes as "30s" in YAML.
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalYAML writes the duration in time.Duration notation.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts "90s"-style strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}
