// Package membership fronts the identity provider's membership listing with
// a short-lived per-user cache.
//
// Entries live for [DefaultTTL] and can be evicted early with
// [Cache.Invalidate] after an administrator changes a membership. Fetch
// errors are returned to the caller and never cached. Fetches run outside
// the lock; when two fills race, the later write wins.
package membership

import (
	"context"
	"sync"
	"time"

	"github.com/agentcanvas/agentcanvas/idp"
	"go.uber.org/zap"
)

// DefaultTTL is how long a fetched membership list is served from memory.
const DefaultTTL = 60 * time.Second

// Fetcher loads a user's memberships from the source of truth.
type Fetcher interface {
	ListUserMemberships(ctx context.Context, userID string) ([]idp.Membership, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, userID string) ([]idp.Membership, error)

// ListUserMemberships calls f.
func (f FetcherFunc) ListUserMemberships(ctx context.Context, userID string) ([]idp.Membership, error) {
	return f(ctx, userID)
}

// Hooks are optional counters fired by the cache.
type Hooks struct {
	Hit        func()
	Miss       func()
	FetchError func()
	Invalidate func()
}

type entry struct {
	memberships []idp.Membership
	expiresAt   time.Time
}

// Option customizes a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l.Named("membership")
		}
	}
}

// WithHooks installs counters.
func WithHooks(h Hooks) Option {
	return func(c *Cache) {
		c.hooks = h
	}
}

// Cache is a per-process membership cache. It is safe for concurrent use.
type Cache struct {
	fetch Fetcher
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
	hooks Hooks

	mu    sync.Mutex
	items map[string]entry
	// gen is bumped by Invalidate; a fetch started under an older
	// generation does not store its result.
	gen map[string]uint64
	// inflight counts running fetches per key. Purge keeps gen for a key
	// while any fetch on it is running.
	inflight map[string]int
}

// New returns a Cache backed by fetch.
func New(fetch Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetch: fetch,
		ttl:   DefaultTTL,
		now:   time.Now,
		log:   zap.NewNop(),
		items: make(map[string]entry),
		gen:      make(map[string]uint64),
		inflight: make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached memberships of userID, fetching on miss or expiry.
// The returned slice is a copy.
func (c *Cache) Get(ctx context.Context, userID string) ([]idp.Membership, error) {
	c.mu.Lock()
	if e, ok := c.items[userID]; ok {
		if c.now().Before(e.expiresAt) {
			c.mu.Unlock()
			fire(c.hooks.Hit)
			return clone(e.memberships), nil
		}
		delete(c.items, userID)
	}
	gen := c.gen[userID]
	c.inflight[userID]++
	c.mu.Unlock()

	fire(c.hooks.Miss)
	ms, err := c.fetch.ListUserMemberships(ctx, userID)

	c.mu.Lock()
	if c.inflight[userID]--; c.inflight[userID] <= 0 {
		delete(c.inflight, userID)
	}
	if err != nil {
		c.mu.Unlock()
		fire(c.hooks.FetchError)
		c.log.Warn("membership fetch failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if c.gen[userID] == gen {
		c.items[userID] = entry{memberships: clone(ms), expiresAt: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()

	c.log.Debug("membership fetched", zap.String("user_id", userID), zap.Int("count", len(ms)))
	return clone(ms), nil
}

// Invalidate evicts userID.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.items, userID)
	c.gen[userID]++
	c.mu.Unlock()

	fire(c.hooks.Invalidate)
	c.log.Debug("membership invalidated", zap.String("user_id", userID))
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			n++
		}
	}
	// Counters for keys with no entry and no running fetch are dropped to
	// keep the map bounded.
	for k := range c.gen {
		if _, ok := c.items[k]; ok {
			continue
		}
		if c.inflight[k] > 0 {
			continue
		}
		delete(c.gen, k)
	}
	return n
}

// Run purges expired entries every interval until ctx ends.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := c.Purge(); n > 0 {
				c.log.Debug("membership purge", zap.Int("removed", n))
			}
		}
	}
}

func clone(ms []idp.Membership) []idp.Membership {
	if ms == nil {
		return nil
	}
	out := make([]idp.Membership, len(ms))
	copy(out, ms)
	return out
}

func fire(f func()) {
	if f != nil {
		f()
	}
}
