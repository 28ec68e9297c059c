package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"umaai/internal/logging"
	"umaai/internal/types"
)

// RedisStore keeps results in Redis: the history of a race is a list of JSON
// documents, newest first, expiring ttl after the last save.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStoreFromURL connects using a redis:// URL.
func NewRedisStoreFromURL(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), ttl), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func historyKey(raceID string) string {
	return fmt.Sprintf("uma:results:%s", raceID)
}

// Save implements ResultStore.
func (s *RedisStore) Save(ctx context.Context, result *types.AnalysisResult) error {
	if err := validate(result); err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	key := historyKey(result.RaceID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, HistoryLimit-1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving result: %w", err)
	}
	logging.StoreDebug("saved result %s for %s to redis", result.ID, result.RaceID)
	return nil
}

// Latest implements ResultStore.
func (s *RedisStore) Latest(ctx context.Context, raceID string) (*types.AnalysisResult, error) {
	data, err := s.client.LIndex(ctx, historyKey(raceID), 0).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}

	var r types.AnalysisResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &r, nil
}

// History implements ResultStore.
func (s *RedisStore) History(ctx context.Context, raceID string, limit int) ([]*types.AnalysisResult, error) {
	items, err := s.client.LRange(ctx, historyKey(raceID), 0, int64(clampLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	out := make([]*types.AnalysisResult, 0, len(items))
	for _, item := range items {
		var r types.AnalysisResult
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			logging.Get(logging.CategoryStore).Warn("skipping undecodable result for %s: %v", raceID, err)
			continue
		}
		out = append(out, &r)
	}
	return out, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements ResultStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
