package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/charlesng35/adpulse/internal/cache"
)

const (
	defaultRateWindow = time.Minute
	sweepInterval     = time.Minute
)

// RateStore counts requests for a key inside a fixed window and reports how long
// the window has left.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// NewSharedRateStore counts in a cache.Store, Redis or the SQL fallback, so every
// replica sees the same windows.
func NewSharedRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return sharedRateStore{store: store}
}

type sharedRateStore struct {
	store cache.Store
}

func (s sharedRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = defaultRateWindow
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}

// localRateStore is the single-process fallback used by tests and by RateLimit
// when no store is wired. Lapsed windows are swept on write, at most once per sweepInterval.
type localRateStore struct {
	mu        sync.Mutex
	windows   map[string]localWindow
	now       func() time.Time
	lastSweep time.Time
}

type localWindow struct {
	count int
	ends  time.Time
}

// NewMemoryRateStore constructs a process-local rate store.
func NewMemoryRateStore() RateStore {
	return newLocalRateStore(time.Now)
}

func newLocalRateStore(now func() time.Time) *localRateStore {
	return &localRateStore{windows: map[string]localWindow{}, now: now}
}

func (s *localRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = defaultRateWindow
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= sweepInterval {
		for k, w := range s.windows {
			if !now.Before(w.ends) {
				delete(s.windows, k)
			}
		}
		s.lastSweep = now
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.ends) {
		w = localWindow{ends: now.Add(window)}
	}
	w.count++
	s.windows[key] = w

	return w.count, w.ends.Sub(now), nil
}
