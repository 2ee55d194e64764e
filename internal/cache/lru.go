package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUWithTTL is a size-bounded, thread-safe memo. Entries older than the TTL
// read as misses. It backs the confidence-radius memo in package bound,
// where each entry is the result of a root-finding run.
type LRUWithTTL[K comparable, V any] struct {
	mu      sync.Mutex
	cache   *lru.Cache[K, ttlEntry[V]]
	ttl     time.Duration
	now     func() time.Time
	hits    uint64
	misses  uint64
	evicted uint64
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewLRUWithTTL creates a memo holding at most size entries. A zero ttl
// never expires entries.
func NewLRUWithTTL[K comparable, V any](size int, ttl time.Duration) (*LRUWithTTL[K, V], error) {
	c, err := lru.New[K, ttlEntry[V]](size)
	if err != nil {
		return nil, err
	}
	return &LRUWithTTL[K, V]{
		cache: c,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

func (c *LRUWithTTL[K, V]) expired(e ttlEntry[V]) bool {
	return c.ttl > 0 && c.now().After(e.expiresAt)
}

func (c *LRUWithTTL[K, V]) set(key K, value V) {
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}
	if c.cache.Add(key, ttlEntry[V]{value: value, expiresAt: expiresAt}) {
		c.evicted++
	}
}

// GetOrCompute returns the cached value for key or stores the result of
// compute. Errors are not cached. The lock is held while compute runs, so
// concurrent callers never solve the same key twice.
func (c *LRUWithTTL[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.cache.Get(key); ok && !c.expired(e) {
		c.hits++
		return e.value, nil
	}
	c.misses++

	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.set(key, v)
	return v, nil
}

// Stats is a point-in-time view of memo effectiveness.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Evicted uint64  `json:"evicted"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns current counters.
func (c *LRUWithTTL[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Evicted: c.evicted,
		Size:    c.cache.Len(),
		HitRate: hitRate,
	}
}
