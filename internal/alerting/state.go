package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cwyuen/hk-monitor/internal/reading"
	"github.com/cwyuen/hk-monitor/internal/severity"
)

// AlertState holds the last severity for which an alert was emitted for a
// key. It exists only after the first emitted alert and is updated on every
// subsequent emission.
type AlertState struct {
	LastAlerted severity.Severity `json:"last_alerted"`
	Label       string            `json:"label"`
	AlertedAt   time.Time         `json:"alerted_at"`
}

// StateStore persists per-key alert state for deduplication.
// Get returns (nil, nil) when no alert has been emitted for the key yet.
type StateStore interface {
	Get(ctx context.Context, key reading.Key) (*AlertState, error)
	Set(ctx context.Context, key reading.Key, state *AlertState) error
	All(ctx context.Context) (map[string]*AlertState, error)
}

// RedisStateStore keeps alert state in Redis so deduplication survives a
// process restart. Entries expire after a week to drop stale keys.
type RedisStateStore struct {
	redis *redis.Client
}

// NewRedisStateStore creates a Redis-backed state store
func NewRedisStateStore(redisClient *redis.Client) *RedisStateStore {
	return &RedisStateStore{redis: redisClient}
}

func redisKey(key reading.Key) string {
	return fmt.Sprintf("alert_state:%s", key)
}

// Get retrieves the alert state for a key
func (s *RedisStateStore) Get(ctx context.Context, key reading.Key) (*AlertState, error) {
	data, err := s.redis.Get(ctx, redisKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert state from Redis: %w", err)
	}

	var state AlertState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert state: %w", err)
	}
	return &state, nil
}

// Set saves the alert state for a key
func (s *RedisStateStore) Set(ctx context.Context, key reading.Key, state *AlertState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal alert state: %w", err)
	}

	if err := s.redis.Set(ctx, redisKey(key), data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set alert state in Redis: %w", err)
	}
	return nil
}

// All returns every stored alert state keyed by history key string
func (s *RedisStateStore) All(ctx context.Context) (map[string]*AlertState, error) {
	keys, err := s.redis.Keys(ctx, "alert_state:*").Result()
	if err != nil {
		return nil, err
	}

	states := make(map[string]*AlertState)
	for _, k := range keys {
		data, err := s.redis.Get(ctx, k).Result()
		if err != nil {
			continue
		}

		var state AlertState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			continue
		}
		states[k[len("alert_state:"):]] = &state
	}

	return states, nil
}
