package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the revocation backend cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrEmptySessionID is returned when a revocation call carries no token id.
var ErrEmptySessionID = errors.New("empty session id")

// RevocationStore is an opt-in Redis deny-list of session token ids. A
// revoked id is remembered only until the token would have expired anyway,
// so the key space stays bounded by live sessions.
//
// The cookie design has no server-side session store; this list is the one
// way to end a session before its natural expiry.
type RevocationStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRevocationStore creates a [RevocationStore] under the given key prefix.
func NewRevocationStore(client redis.UniversalClient, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = "acr"
	}
	return &RevocationStore{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RevocationStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Revoke marks sessionID as revoked until expiresAt (unix seconds). Tokens
// already past expiry are not recorded.
//
//	Performance: 1 Redis command (SET PX).
func (s *RevocationStore) Revoke(ctx context.Context, sessionID string, expiresAt int64) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	ttl := time.Unix(expiresAt, 0).Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.redis.Set(ctx, s.key(sessionID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether sessionID is on the deny-list.
//
//	Performance: 1 Redis command (EXISTS).
func (s *RevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, ErrEmptySessionID
	}
	n, err := s.redis.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Ping checks backend reachability.
func (s *RevocationStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
