package web

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore tracks revoked session token ids so logout is effective before
// the token expires.
type SessionStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NoopSessionStore is used when no Redis is configured: logout clears the
// cookie and the token expires naturally.
type NoopSessionStore struct{}

func (NoopSessionStore) Revoke(context.Context, string, time.Time) error { return nil }
func (NoopSessionStore) IsRevoked(context.Context, string) (bool, error) { return false, nil }

const revokedKeyPrefix = "pos:revoked:"

type redisSessionStore struct {
	rdb redis.Cmdable
	now func() time.Time
}

// NewRedisSessionStore stores each revoked token id with a TTL matching the
// token's remaining lifetime.
func NewRedisSessionStore(rdb redis.Cmdable) SessionStore {
	return &redisSessionStore{rdb: rdb, now: time.Now}
}

func (s *redisSessionStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *redisSessionStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.rdb.Get(ctx, revokedKeyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return true, nil
}
