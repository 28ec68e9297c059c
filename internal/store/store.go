// Package store caches analysis results per race.
//
// Two backends are provided: SQLite for a single machine and Redis for a
// shared cache behind the HTTP API. Both keep a short per-race history with
// the latest result first.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"umaai/internal/config"
	"umaai/internal/logging"
	"umaai/internal/types"
)

// ErrNotFound is returned when no (unexpired) result exists for a race.
var ErrNotFound = errors.New("result not found")

// HistoryLimit bounds the results kept per race.
const HistoryLimit = 20

// ResultStore persists analysis results keyed by race id.
type ResultStore interface {
	Save(ctx context.Context, result *types.AnalysisResult) error
	Latest(ctx context.Context, raceID string) (*types.AnalysisResult, error)
	History(ctx context.Context, raceID string, limit int) ([]*types.AnalysisResult, error)
	Close() error
}

// Open builds the configured backend.
func Open(cfg config.CacheConfig, ttl time.Duration) (ResultStore, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return NewSQLiteStore(cfg.Path, ttl)
	case "redis":
		return NewRedisStoreFromURL(cfg.RedisURL, ttl)
	case "none":
		logging.StoreDebug("result cache disabled")
		return NopStore{}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// NopStore discards results.
type NopStore struct{}

func (NopStore) Save(context.Context, *types.AnalysisResult) error { return nil }

func (NopStore) Latest(context.Context, string) (*types.AnalysisResult, error) {
	return nil, ErrNotFound
}

func (NopStore) History(context.Context, string, int) ([]*types.AnalysisResult, error) {
	return nil, nil
}

func (NopStore) Close() error { return nil }

func validate(result *types.AnalysisResult) error {
	if result == nil {
		return errors.New("result is nil")
	}
	if result.ID == "" || result.RaceID == "" {
		return errors.New("result requires id and race id")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > HistoryLimit {
		return HistoryLimit
	}
	return limit
}
