package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/verification-service/internal/domain"
)

const linkCachePrefix = "session:link:"

// SessionCache keeps short-lived snapshots of link lookups in Redis so the
// public join page does not hammer the store. Mutating services invalidate;
// the real-time join never reads through it.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSessionCache builds the cache. A nil client disables caching entirely.
func NewSessionCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionCache {
	return &SessionCache{client: client, ttl: ttl, logger: logger}
}

// Get returns a cached session snapshot or nil on miss.
func (c *SessionCache) Get(ctx context.Context, token string) *domain.Session {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}
	raw, err := c.client.Get(ctx, linkCachePrefix+token).Bytes()
	if err != nil {
		return nil
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil
	}
	return &session
}

// Set stores a session snapshot with the configured TTL.
func (c *SessionCache) Set(ctx context.Context, session *domain.Session) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, linkCachePrefix+session.Token, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("session cache set failed", zap.Error(err))
	}
}

// Invalidate drops the snapshot after any mutation.
func (c *SessionCache) Invalidate(ctx context.Context, token string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, linkCachePrefix+token).Err(); err != nil {
		c.logger.Debug("session cache invalidate failed", zap.Error(err))
	}
}
