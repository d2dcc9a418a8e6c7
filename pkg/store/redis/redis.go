package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rmax-ai/usagewatch/pkg/store"
)

// DefaultPrefix namespaces every key written by the daemon.
const DefaultPrefix = "usagewatch:"

// KV is a store.KV scope kept in Redis, typically used for the synced
// settings record so several devices can share one server.
type KV struct {
	client *redis.Client
	prefix string
}

var _ store.KV = (*KV)(nil)

func NewKV(client *redis.Client, prefix string) *KV {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &KV{client: client, prefix: prefix}
}

func (s *KV) makeKey(key string) string {
	return s.prefix + key
}

func (s *KV) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.makeKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to GET key %s: %w", key, err)
	}
	return val, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.makeKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to SET key %s: %w", key, err)
	}
	return nil
}

// SetMany writes all keys with a single MSET.
func (s *KV) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	pairs := make([]any, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, s.makeKey(k), v)
	}
	if err := s.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("failed to MSET %d keys: %w", len(values), err)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.makeKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to DEL key %s: %w", key, err)
	}
	return nil
}

func (s *KV) Close() error {
	return s.client.Close()
}
