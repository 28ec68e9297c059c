package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"umaai/internal/logging"
	"umaai/internal/types"
)

// SQLiteStore keeps results in a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	ttl    time.Duration
	dbPath string
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path. Results older than
// ttl are ignored and pruned on save; zero keeps them forever.
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, ttl: ttl, dbPath: path, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("result cache opened at %s", path)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_results (
		id TEXT PRIMARY KEY,
		race_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT,
		text TEXT NOT NULL,
		recommendation TEXT,
		attempts INTEGER DEFAULT 0,
		fell_back INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_race ON analysis_results(race_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return RunMigrations(s.db)
}

// Save implements ResultStore.
func (s *SQLiteStore) Save(ctx context.Context, result *types.AnalysisResult) error {
	if err := validate(result); err != nil {
		return err
	}
	sections, err := json.Marshal(result.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_results
			(id, race_id, provider, model, text, recommendation, sections, attempts, fell_back, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.RaceID, result.Provider, result.Model, result.Text, result.Recommendation,
		string(sections), result.Attempts, boolToInt(result.FellBack), result.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	logging.StoreDebug("saved result %s for %s", result.ID, result.RaceID)

	return s.pruneLocked(ctx, result.RaceID)
}

// pruneLocked drops expired rows and rows beyond HistoryLimit for raceID.
func (s *SQLiteStore) pruneLocked(ctx context.Context, raceID string) error {
	if s.ttl > 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM analysis_results WHERE created_at < ?`, s.cutoff()); err != nil {
			return fmt.Errorf("failed to prune expired results: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM analysis_results
		WHERE race_id = ? AND id NOT IN (
			SELECT id FROM analysis_results WHERE race_id = ? ORDER BY created_at DESC LIMIT ?
		)`, raceID, raceID, HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return nil
}

// Latest implements ResultStore.
func (s *SQLiteStore) Latest(ctx context.Context, raceID string) (*types.AnalysisResult, error) {
	results, err := s.History(ctx, raceID, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return results[0], nil
}

// History implements ResultStore.
func (s *SQLiteStore) History(ctx context.Context, raceID string, limit int) ([]*types.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, race_id, provider, model, text, recommendation, sections, attempts, fell_back, created_at
		FROM analysis_results
		WHERE race_id = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`, raceID, s.cutoff(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []*types.AnalysisResult
	for rows.Next() {
		var (
			r            types.AnalysisResult
			model, rec   sql.NullString
			sections     sql.NullString
			fellBack     int
			createdNanos int64
		)
		if err := rows.Scan(&r.ID, &r.RaceID, &r.Provider, &model, &r.Text, &rec, &sections, &r.Attempts, &fellBack, &createdNanos); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Model = model.String
		r.Recommendation = rec.String
		r.FellBack = fellBack != 0
		r.CreatedAt = time.Unix(0, createdNanos).UTC()
		if sections.Valid && sections.String != "" {
			if err := json.Unmarshal([]byte(sections.String), &r.Sections); err != nil {
				logging.Get(logging.CategoryStore).Warn("result %s: bad sections column: %v", r.ID, err)
			}
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return out, nil
}

// Close implements ResultStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) cutoff() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(-s.ttl).UnixNano()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsNotFound reports whether err means no cached result exists.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
