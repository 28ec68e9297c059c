// Package loader fetches race and odds JSON by race identifier.
//
// Data is laid out as
//
//	{base}/racedata/{race_number}.json  -> types.RaceRecord
//	{base}/odds/{race_number}.json      -> types.OddsBundle
//
// either on a static host (HTTPSource) or in a local mirror (DirSource).
// An absent resource is reported as ErrNoData, never as a crash.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"umaai/internal/logging"
	"umaai/internal/types"
)

// ErrNoData is returned when the requested race or odds file does not exist.
var ErrNoData = errors.New("no data available")

// Source retrieves raw race/odds documents.
type Source interface {
	Race(ctx context.Context, raceID string) (*types.RaceRecord, error)
	Odds(ctx context.Context, raceID string) (types.OddsBundle, error)
}

// =============================================================================
// HTTP SOURCE
// =============================================================================

// HTTPSource reads from a static JSON host such as GitHub Pages.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPSource creates a source rooted at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Race implements Source.
func (s *HTTPSource) Race(ctx context.Context, raceID string) (*types.RaceRecord, error) {
	var race types.RaceRecord
	if err := s.getJSON(ctx, "racedata", raceID, &race); err != nil {
		return nil, err
	}
	return &race, nil
}

// Odds implements Source.
func (s *HTTPSource) Odds(ctx context.Context, raceID string) (types.OddsBundle, error) {
	var bundle types.OddsBundle
	if err := s.getJSON(ctx, "odds", raceID, &bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// getJSON fetches {base}/{folder}/{raceID}.json with a cache-busting query so
// that stale CDN copies are never served.
func (s *HTTPSource) getJSON(ctx context.Context, folder, raceID string, out interface{}) error {
	u := fmt.Sprintf("%s/%s/%s.json?_=%d", s.baseURL, folder, url.PathEscape(raceID), s.now().UnixMilli())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Expires", "0")

	logging.LoaderDebug("GET %s", u)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s/%s: %w", folder, raceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s/%s: %w", folder, raceID, ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s/%s: status %d: %s", folder, raceID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", folder, raceID, err)
	}
	return nil
}

// =============================================================================
// DIRECTORY SOURCE
// =============================================================================

// DirSource reads the same layout from a local directory.
type DirSource struct {
	dir string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Race implements Source.
func (s *DirSource) Race(ctx context.Context, raceID string) (*types.RaceRecord, error) {
	var race types.RaceRecord
	if err := s.readJSON(ctx, "racedata", raceID, &race); err != nil {
		return nil, err
	}
	return &race, nil
}

// Odds implements Source.
func (s *DirSource) Odds(ctx context.Context, raceID string) (types.OddsBundle, error) {
	var bundle types.OddsBundle
	if err := s.readJSON(ctx, "odds", raceID, &bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (s *DirSource) readJSON(ctx context.Context, folder, raceID string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(raceID, `/\`) || raceID == ".." {
		return fmt.Errorf("invalid race id %q", raceID)
	}

	path := filepath.Join(s.dir, folder, raceID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s/%s: %w", folder, raceID, ErrNoData)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
