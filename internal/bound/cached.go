package bound

import (
	"time"

	"github.com/fractal-lba/bestarm/internal/cache"
)

type radiusKey struct {
	name      string
	errorRate float64
	summary   Summary
}

// Memo is the radius store shared by a cached estimator set.
type Memo struct {
	lru *cache.LRUWithTTL[radiusKey, float64]
}

// Stats reports memo hits and misses.
func (m *Memo) Stats() cache.Stats {
	return m.lru.Stats()
}

// Cached memoizes ConfidenceInterval per (estimator, δ, summary). NSamples
// passes through.
type Cached struct {
	Estimator
	memo *Memo
}

// NewCachedSet wraps each estimator with a memo shared across the set.
func NewCachedSet(estimators []Estimator, size int, ttl time.Duration) ([]Estimator, *Memo, error) {
	lru, err := cache.NewLRUWithTTL[radiusKey, float64](size, ttl)
	if err != nil {
		return nil, nil, err
	}
	memo := &Memo{lru: lru}
	out := make([]Estimator, len(estimators))
	for i, e := range estimators {
		out[i] = &Cached{Estimator: e, memo: memo}
	}
	return out, memo, nil
}

// ConfidenceInterval returns the memoized radius, solving on a miss.
func (c *Cached) ConfidenceInterval(s Summary) (float64, error) {
	key := radiusKey{name: c.Name(), errorRate: c.ErrorRate(), summary: s}
	return c.memo.lru.GetOrCompute(key, func() (float64, error) {
		return c.Estimator.ConfidenceInterval(s)
	})
}
