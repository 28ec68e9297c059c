package loader

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"umaai/internal/logging"
	"umaai/internal/types"
)

// RaceData is a race together with its odds.
type RaceData struct {
	Race *types.RaceRecord
	Odds types.OddsBundle

	// OddsMissing is set when no odds file was published; Odds is empty.
	OddsMissing bool
}

// Loader fans race/odds retrieval out over a Source.
type Loader struct {
	src         Source
	concurrency int
}

// New creates a loader. concurrency bounds parallel fetches in LoadRaces.
func New(src Source, concurrency int) *Loader {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Loader{src: src, concurrency: concurrency}
}

// Load fetches the race and its odds in parallel. A missing race is an
// ErrNoData error; missing odds degrade to an empty bundle.
func (l *Loader) Load(ctx context.Context, raceID string) (*RaceData, error) {
	timer := logging.StartTimer(logging.CategoryLoader, "Load "+raceID)
	defer timer.Stop()

	var (
		race    *types.RaceRecord
		bundle  types.OddsBundle
		oddsErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := l.src.Race(gctx, raceID)
		if err != nil {
			return err
		}
		race = r
		return nil
	})
	g.Go(func() error {
		// Odds failures never abort the race fetch.
		bundle, oddsErr = l.src.Odds(gctx, raceID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := &RaceData{Race: race, Odds: bundle}
	if oddsErr != nil {
		if !errors.Is(oddsErr, ErrNoData) {
			logging.Get(logging.CategoryLoader).Warn("odds for %s unavailable: %v", raceID, oddsErr)
		}
		data.Odds = nil
		data.OddsMissing = true
	}
	if len(data.Odds) == 0 {
		data.OddsMissing = true
	}
	logging.Loader("loaded %s: %d horses, %d odds categories", raceID, len(race.Horses), len(data.Odds))
	return data, nil
}

// Race fetches one race.
func (l *Loader) Race(ctx context.Context, raceID string) (*types.RaceRecord, error) {
	return l.src.Race(ctx, raceID)
}

// Odds fetches one odds bundle; a missing file yields an empty bundle.
func (l *Loader) Odds(ctx context.Context, raceID string) (types.OddsBundle, error) {
	bundle, err := l.src.Odds(ctx, raceID)
	if errors.Is(err, ErrNoData) {
		logging.LoaderDebug("no odds published for %s", raceID)
		return types.OddsBundle{}, nil
	}
	return bundle, err
}

// LoadRaces fetches many races in parallel. Races that fail to load are
// skipped; the result keeps the order of raceIDs. Only cancellation of ctx is
// returned as an error.
func (l *Loader) LoadRaces(ctx context.Context, raceIDs []string) ([]*types.RaceRecord, error) {
	results := make([]*types.RaceRecord, len(raceIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, id := range raceIDs {
		i, id := i, id
		g.Go(func() error {
			race, err := l.src.Race(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logging.Get(logging.CategoryLoader).Warn("skipping race %s: %v", id, err)
				return nil
			}
			results[i] = race
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load races: %w", err)
	}

	races := make([]*types.RaceRecord, 0, len(results))
	for _, r := range results {
		if r != nil {
			races = append(races, r)
		}
	}
	return races, nil
}

// LoadBundles is LoadRaces for race+odds pairs. Entries whose race fails to
// load are dropped.
func (l *Loader) LoadBundles(ctx context.Context, raceIDs []string) ([]*RaceData, error) {
	results := make([]*RaceData, len(raceIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, id := range raceIDs {
		i, id := i, id
		g.Go(func() error {
			data, err := l.Load(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logging.Get(logging.CategoryLoader).Warn("skipping race %s: %v", id, err)
				return nil
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load bundles: %w", err)
	}

	out := make([]*RaceData, 0, len(results))
	for _, d := range results {
		if d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}
