package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the device key-value store is unreachable.
var ErrUnavailable = errors.New("token store unavailable")

const tokenKey = "token"

// Store persists the raw bearer token string in the device key-value store.
type Store struct {
	kv     redis.UniversalClient
	prefix string
}

// NewStore creates a token store. prefix namespaces the key so several
// profiles can share one backing store.
func NewStore(kv redis.UniversalClient, prefix string) *Store {
	return &Store{kv: kv, prefix: prefix}
}

func (s *Store) key() string {
	if s.prefix == "" {
		return tokenKey
	}
	return s.prefix + ":" + tokenKey
}

// Save overwrites the persisted token. The token has no TTL; its validity is
// decided by the backend, not the store.
func (s *Store) Save(ctx context.Context, token string) error {
	if err := s.kv.Set(ctx, s.key(), token, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Load returns the persisted token. The second return value is false when no
// token is stored, which is a normal state, not an error.
func (s *Store) Load(ctx context.Context) (string, bool, error) {
	val, err := s.kv.Get(ctx, s.key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, true, nil
}

// Clear deletes the persisted token. Clearing an absent token is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
