package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "auth:revoked:"

// Revocations remembers signed-out tokens until they would have expired anyway.
type Revocations interface {
	Revoke(ctx context.Context, s *Session) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocations shares sign-outs across API instances.
type RedisRevocations struct {
	redis *redis.Client
	now   func() time.Time
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{redis: client, now: time.Now}
}

func (r *RedisRevocations) Revoke(ctx context.Context, s *Session) error {
	if s == nil || s.TokenID == "" {
		return nil
	}
	ttl := revocationTTL(s, r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, revokedKeyPrefix+s.TokenID, s.Email, ttl).Err(); err != nil {
		return fmt.Errorf("identity: revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.redis.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("identity: check revocation: %w", err)
	}
	return n > 0, nil
}

// MemoryRevocations is the single-process variant.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevocations) Revoke(_ context.Context, s *Session) error {
	if s == nil || s.TokenID == "" {
		return nil
	}
	now := m.now()
	ttl := revocationTTL(s, now)
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[s.TokenID] = now.Add(ttl)
	for id, until := range m.revoked {
		if now.After(until) {
			delete(m.revoked, id)
		}
	}
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[tokenID]
	return ok && m.now().Before(until), nil
}

// revocationTTL keeps a revocation until token expiry, or a day when the
// token carries no expiry.
func revocationTTL(s *Session, now time.Time) time.Duration {
	if s.ExpiresAt.IsZero() {
		return 24 * time.Hour
	}
	return s.ExpiresAt.Sub(now)
}
