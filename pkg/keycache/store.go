package keycache

import (
	"context"
	"time"

	"github.com/StricklySoft/stricklysoft-security/pkg/clients/redis"
)

// Store is a second-level cache of raw JWKS documents shared between
// processes. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the document at key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores doc at key for ttl.
	Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
}

// RedisStore keeps documents in Redis under the client's key prefix.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a Store backed by client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(k string) string { return s.client.KeyPrefix() + k }

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.key(key))
	if redis.IsNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(v), true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, doc []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), doc, ttl)
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.Del(ctx, s.key(key))
	return err
}
