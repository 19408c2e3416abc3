package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kursadbilgin/reminder-engine/internal/kv"
	goredis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "reminder:kv:"

var _ kv.Store = (*KVStore)(nil)

// KVStore keeps JSON values under prefixed redis string keys.
type KVStore struct {
	client *goredis.Client
	prefix string
}

func NewKVStore(client *goredis.Client) (*KVStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &KVStore{client: client, prefix: defaultKeyPrefix}, nil
}

func (s *KVStore) Get(ctx context.Context, key string, dest any) error {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return kv.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get key %q: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode value for key %q: %w: %w", key, kv.ErrMalformed, err)
	}
	return nil
}

func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %q: %w", key, err)
	}

	if err := s.client.Set(ctx, s.prefix+key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *KVStore) Close() error {
	return s.client.Close()
}
