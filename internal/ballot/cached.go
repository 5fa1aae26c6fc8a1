package ballot

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type cacheKey struct {
	configuredAt int64
	activationAt int64
}

// Cached memoizes the terminal states (Approved, Failed) of an inner ballot.
// Pending results depend on now and are never cached.
type Cached struct {
	inner Ballot
	cache *lru.Cache
}

// NewCached wraps inner with an LRU of the given size.
func NewCached(inner Ballot, size int) (*Cached, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: c}, nil
}

func (c *Cached) Duration() time.Duration { return c.inner.Duration() }

func (c *Cached) State(configuredAt, activationAt, now time.Time) State {
	key := cacheKey{configuredAt: configuredAt.UnixNano(), activationAt: activationAt.UnixNano()}
	if v, ok := c.cache.Get(key); ok {
		return v.(State)
	}
	s := c.inner.State(configuredAt, activationAt, now)
	if s != Pending {
		c.cache.Add(key, s)
	}
	return s
}
