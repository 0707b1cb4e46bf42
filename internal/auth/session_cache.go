package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/adpulse/internal/cache"
	"github.com/charlesng35/adpulse/internal/models"
)

var errSessionCacheMiss = errors.New("session cache miss")

// SessionCache caches session lookups keyed by refresh token digest.
type SessionCache interface {
	Get(ctx context.Context, digest string) (*SessionEntry, error)
	Set(ctx context.Context, digest string, entry SessionEntry, ttl time.Duration) error
	Delete(ctx context.Context, digests ...string) error
}

// SessionEntry is the cached projection of a session.
type SessionEntry struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func newSessionEntry(session *models.Session, email string) SessionEntry {
	return SessionEntry{
		ID:        session.ID,
		UserID:    session.UserID,
		Email:     email,
		ExpiresAt: session.ExpiresAt,
		RevokedAt: session.RevokedAt,
	}
}

func (e *SessionEntry) session(digest string) *models.Session {
	return &models.Session{
		ID:               e.ID,
		UserID:           e.UserID,
		RefreshTokenHash: digest,
		ExpiresAt:        e.ExpiresAt,
		RevokedAt:        e.RevokedAt,
	}
}

// NewSessionCache wraps a cache.Store (Redis or database) as a SessionCache.
func NewSessionCache(store cache.Store) SessionCache {
	if store == nil {
		return nil
	}
	return &storeSessionCache{store: store}
}

type storeSessionCache struct {
	store cache.Store
}

func (c *storeSessionCache) Get(ctx context.Context, digest string) (*SessionEntry, error) {
	key := sessionCacheKey(digest)
	if key == "" {
		return nil, errSessionCacheMiss
	}

	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errSessionCacheMiss
	}

	var entry SessionEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("session cache: decode: %w", err)
	}
	return &entry, nil
}

func (c *storeSessionCache) Set(ctx context.Context, digest string, entry SessionEntry, ttl time.Duration) error {
	key := sessionCacheKey(digest)
	if key == "" {
		return errors.New("session cache: refresh token missing")
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("session cache: marshal: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.store.Set(ctx, key, payload, ttl)
}

func (c *storeSessionCache) Delete(ctx context.Context, digests ...string) error {
	keys := make([]string, 0, len(digests))
	for _, digest := range digests {
		if key := sessionCacheKey(digest); key != "" {
			keys = append(keys, key)
		}
	}
	return c.store.Delete(ctx, keys...)
}

func sessionCacheKey(digest string) string {
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return ""
	}
	return cache.Key("sessions", digest)
}
