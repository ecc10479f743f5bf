// Package token caches provider session tokens per (merchant, provider)
// for adapters with an authenticate-then-call flow.
package token

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/rezonia/einvoice-hub/internal/model"
)

// Token is one provider session token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token is still usable at the given instant.
// A small skew margin keeps a token that would expire mid-call from being
// handed out.
const expirySkew = 30 * time.Second

func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.Value != "" && now.Add(expirySkew).Before(t.ExpiresAt)
}

// AuthFunc performs one authentication round-trip against a provider.
type AuthFunc func(ctx context.Context) (*Token, error)

// Key builds the cache key for a (merchant, provider) pair.
func Key(merchantID string, p model.Provider) string {
	return merchantID + "/" + string(p)
}

// Cache holds tokens per (merchant, provider). A lookup that finds an
// expired token re-authenticates synchronously; concurrent lookups for the
// same key share a single authentication round-trip.
type Cache struct {
	clock clockwork.Clock

	mu     sync.Mutex
	tokens map[string]*Token
	group  singleflight.Group
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return NewCacheWithClock(clockwork.NewRealClock())
}

// NewCacheWithClock creates an empty cache with an injected clock, for
// tests.
func NewCacheWithClock(clock clockwork.Clock) *Cache {
	return &Cache{
		clock:  clock,
		tokens: make(map[string]*Token),
	}
}

// Get returns a valid token for the key, authenticating if the cached one
// is missing or expired. At most one authentication is in flight per key.
func (c *Cache) Get(ctx context.Context, key string, auth AuthFunc) (*Token, error) {
	c.mu.Lock()
	cached := c.tokens[key]
	c.mu.Unlock()
	if cached.Valid(c.clock.Now()) {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: a concurrent caller may have refreshed
		// the token while this one waited.
		c.mu.Lock()
		current := c.tokens[key]
		c.mu.Unlock()
		if current.Valid(c.clock.Now()) {
			return current, nil
		}

		tok, err := auth(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tokens[key] = tok
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

// Invalidate drops the cached token for a key, forcing the next Get to
// re-authenticate. Used after a provider rejects a token mid-session.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.tokens, key)
	c.mu.Unlock()
}
