package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key the state document is stored under.
const DefaultRedisKey = "eaeu:export:state"

// RedisStore keeps the state document under a single redis key. Useful
// when the export runs in a container without a persistent filesystem.
// A redis SET of the full document is atomic, matching the crash-safety
// contract of the file backend.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a redis-backed state store.
// An empty key falls back to DefaultRedisKey.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Load reads the state document. A missing key yields an empty state.
func (r *RedisStore) Load(ctx context.Context) (*State, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state from redis: %w", err)
	}

	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		return NewState(), nil
	}
	if loaded.Countries == nil {
		loaded.Countries = make(map[string]CursorState)
	}
	return &loaded, nil
}

// Save persists the state document.
func (r *RedisStore) Save(ctx context.Context, s *State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("write state to redis: %w", err)
	}
	return nil
}

// Reset deletes the state key.
func (r *RedisStore) Reset(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("delete state from redis: %w", err)
	}
	return nil
}
