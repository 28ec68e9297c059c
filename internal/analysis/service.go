package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"umaai/internal/config"
	"umaai/internal/llm"
	"umaai/internal/loader"
	"umaai/internal/logging"
	"umaai/internal/odds"
	"umaai/internal/prompt"
	"umaai/internal/share"
	"umaai/internal/store"
	"umaai/internal/types"
)

// ErrInvalidInput marks requests rejected before any provider is contacted.
var ErrInvalidInput = errors.New("invalid input")

// ProviderSource builds providers by name. *llm.Factory implements it.
type ProviderSource interface {
	New(provider, model string) (llm.Provider, error)
	Has(provider string) bool
}

// Choice selects the primary provider for one request.
type Choice struct {
	Provider   string // empty uses the configured default
	Model      string // empty uses the provider's configured model
	NoFallback bool
}

// ServiceConfig holds the per-process settings of a Service.
type ServiceConfig struct {
	Policy          Policy
	Fallback        bool
	DefaultProvider string
}

// Service runs the whole pipeline for one race: odds selection, document
// assembly, the provider state machine, section extraction and caching.
type Service struct {
	providers ProviderSource
	results   store.ResultStore
	cfg       ServiceConfig

	sleep SleepFunc
	newID func() string
	now   func() time.Time
}

// NewService creates a service. A nil results store disables caching.
func NewService(providers ProviderSource, results store.ResultStore, cfg ServiceConfig) *Service {
	if results == nil {
		results = store.NopStore{}
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = llm.ProviderGemini
	}
	return &Service{
		providers: providers,
		results:   results,
		cfg:       cfg,
		sleep:     sleepContext,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// NewServiceFromConfig wires a service from configuration.
func NewServiceFromConfig(cfg *config.Config, results store.ResultStore) *Service {
	factory := llm.NewFactory(cfg, llm.CredentialsFromConfig(cfg))
	return NewService(factory, results, ServiceConfig{
		Policy:          PolicyFromConfig(cfg.Timeouts),
		Fallback:        cfg.LLM.Fallback,
		DefaultProvider: cfg.LLM.Provider,
	})
}

// Document selects the odds for the requested bet types and assembles the
// analysis document.
func (s *Service) Document(race *types.RaceRecord, bundle types.OddsBundle, c types.UserConstraints) (string, error) {
	if race == nil {
		return "", &llm.Error{Kind: llm.KindNoDataAvailable, Message: "race data not loaded"}
	}
	if err := race.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	selected := odds.Select(bundle, c.BetTypes)
	doc, err := prompt.Assemble(race, selected, c)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if prompt.Oversized(doc) {
		logging.Get(logging.CategoryAnalysis).Warn("document for %s is ~%d tokens, above %d",
			race.ID(), prompt.EstimateTokens(doc), prompt.MaxDocumentTokens)
	}
	return doc, nil
}

// RunAnalysis analyses one race. Provider failures are returned as
// *llm.Error; rejected input wraps ErrInvalidInput. A failure to cache the
// result is logged and does not fail the request.
func (s *Service) RunAnalysis(ctx context.Context, race *types.RaceRecord, bundle types.OddsBundle, c types.UserConstraints, choice Choice) (*types.AnalysisResult, error) {
	doc, err := s.Document(race, bundle, c)
	if err != nil {
		return nil, err
	}

	name := choice.Provider
	if name == "" {
		name = s.cfg.DefaultProvider
	}
	primary, err := s.providers.New(name, choice.Model)
	if err != nil {
		var le *llm.Error
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	opts := []ClientOption{WithSleep(s.sleep)}
	if fb := s.fallbackFor(name, choice); fb != nil {
		opts = append(opts, WithFallback(fb))
	}

	timer := logging.StartTimer(logging.CategoryAnalysis, "RunAnalysis "+race.ID())
	out, err := NewClient(primary, s.cfg.Policy, opts...).Run(ctx, doc)
	timer.StopWithThreshold(30 * time.Second)
	if err != nil {
		logging.Get(logging.CategoryAnalysis).Error("analysis of %s failed after %d attempts: %v", race.ID(), out.Attempts, err)
		return nil, err
	}

	result := &types.AnalysisResult{
		ID:             s.newID(),
		RaceID:         race.ID(),
		Provider:       out.Provider,
		Model:          out.Model,
		Text:           out.Text,
		Recommendation: share.ExtractRecommendation(out.Text),
		Sections:       share.ExtractSections(out.Text),
		Attempts:       out.Attempts,
		FellBack:       out.FellBack,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.results.Save(ctx, result); err != nil {
		logging.Get(logging.CategoryStore).Warn("failed to cache result for %s: %v", race.ID(), err)
	}
	return result, nil
}

// fallbackFor returns the alternate provider when fallback is enabled and
// its credential is configured.
func (s *Service) fallbackFor(primary string, choice Choice) llm.Provider {
	if !s.cfg.Fallback || choice.NoFallback {
		return nil
	}
	alt := llm.Alternate(primary)
	if !s.providers.Has(alt) {
		logging.AnalysisDebug("no credential for %s, fallback disabled", alt)
		return nil
	}
	fb, err := s.providers.New(alt, "")
	if err != nil {
		logging.Get(logging.CategoryAnalysis).Warn("fallback provider %s unavailable: %v", alt, err)
		return nil
	}
	return fb
}

// Latest returns the cached result for a race.
func (s *Service) Latest(ctx context.Context, raceID string) (*types.AnalysisResult, error) {
	return s.results.Latest(ctx, raceID)
}

// History returns up to limit cached results for a race, newest first.
func (s *Service) History(ctx context.Context, raceID string, limit int) ([]*types.AnalysisResult, error) {
	return s.results.History(ctx, raceID, limit)
}

// ClassifyLoadError maps a missing race file to KindNoDataAvailable. Other
// errors are returned unchanged.
func ClassifyLoadError(raceID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, loader.ErrNoData) {
		return &llm.Error{Kind: llm.KindNoDataAvailable, Message: "race " + raceID, Err: err}
	}
	return err
}
