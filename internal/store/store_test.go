package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umaai/internal/config"
	"umaai/internal/types"
)

func sampleResult(id, race string, at time.Time) *types.AnalysisResult {
	return &types.AnalysisResult{
		ID:             id,
		RaceID:         race,
		Provider:       "gemini",
		Model:          "gemini-2.5-flash",
		Text:           "### 🎯 推奨馬券\n馬連 3-5",
		Recommendation: "馬連 3-5",
		Sections:       []types.Section{{Title: "🎯 推奨馬券", Body: "馬連 3-5"}},
		Attempts:       2,
		FellBack:       true,
		CreatedAt:      at.UTC(),
	}
}

func newTestSQLite(t *testing.T, ttl time.Duration) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "results.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SaveLatest(t *testing.T) {
	s := newTestSQLite(t, 0)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Latest(ctx, "東京11R")
	assert.True(t, IsNotFound(err))

	require.NoError(t, s.Save(ctx, sampleResult("a", "東京11R", base)))
	require.NoError(t, s.Save(ctx, sampleResult("b", "東京11R", base.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, sampleResult("c", "中山1R", base)))

	got, err := s.Latest(ctx, "東京11R")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
	assert.Equal(t, sampleResult("b", "東京11R", base.Add(time.Minute)), got)

	hist, err := s.History(ctx, "東京11R", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "a", hist[1].ID)
}

func TestSQLiteStore_HistoryLimit(t *testing.T) {
	s := newTestSQLite(t, 0)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < HistoryLimit+5; i++ {
		require.NoError(t, s.Save(ctx, sampleResult(fmt.Sprintf("r%02d", i), "R", base.Add(time.Duration(i)*time.Second))))
	}
	hist, err := s.History(ctx, "R", 100)
	require.NoError(t, err)
	assert.Len(t, hist, HistoryLimit)
	assert.Equal(t, fmt.Sprintf("r%02d", HistoryLimit+4), hist[0].ID)
}

func TestSQLiteStore_TTL(t *testing.T) {
	s := newTestSQLite(t, time.Hour)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, sampleResult("old", "R", now.Add(-2*time.Hour))))
	_, err := s.Latest(ctx, "R")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, sampleResult("new", "R", now)))
	got, err := s.Latest(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)
}

func TestSQLiteStore_RejectsIncomplete(t *testing.T) {
	s := newTestSQLite(t, 0)
	assert.Error(t, s.Save(context.Background(), nil))
	assert.Error(t, s.Save(context.Background(), &types.AnalysisResult{ID: "x"}))
}

func TestRunMigrations_AddsSectionsColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE analysis_results (
		id TEXT PRIMARY KEY, race_id TEXT NOT NULL, provider TEXT NOT NULL, model TEXT,
		text TEXT NOT NULL, recommendation TEXT, attempts INTEGER DEFAULT 0,
		fell_back INTEGER DEFAULT 0, created_at INTEGER NOT NULL)`)
	require.NoError(t, err)
	assert.False(t, columnExists(db, "analysis_results", "sections"))
	require.NoError(t, RunMigrations(db))
	assert.True(t, columnExists(db, "analysis_results", "sections"))
	// idempotent
	require.NoError(t, RunMigrations(db))
	require.NoError(t, db.Close())

	s, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Save(context.Background(), sampleResult("a", "R", time.Now())))
}

func TestOpen(t *testing.T) {
	s, err := Open(config.CacheConfig{Backend: "none"}, 0)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), sampleResult("a", "R", time.Now())))
	_, err = s.Latest(context.Background(), "R")
	assert.ErrorIs(t, err, ErrNotFound)

	s, err = Open(config.CacheConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")}, time.Hour)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = Open(config.CacheConfig{Backend: "redis", RedisURL: "::bad"}, 0)
	assert.Error(t, err)

	_, err = Open(config.CacheConfig{Backend: "memcached"}, 0)
	assert.Error(t, err)
}

// TestRedisStore runs against a live server when UMA_TEST_REDIS_URL is set.
func TestRedisStore(t *testing.T) {
	url := os.Getenv("UMA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("UMA_TEST_REDIS_URL not set")
	}
	s, err := NewRedisStoreFromURL(url, time.Minute)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	race := fmt.Sprintf("test-%d", time.Now().UnixNano())
	_, err = s.Latest(ctx, race)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, sampleResult("a", race, time.Now())))
	require.NoError(t, s.Save(ctx, sampleResult("b", race, time.Now())))

	got, err := s.Latest(ctx, race)
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	hist, err := s.History(ctx, race, 10)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}
