package cache

import (
	"errors"
	"sync"
	"time"
)

// l1MaxTTL bounds how long a value promoted from Redis stays in process
// memory, so other replicas' invalidations are picked up quickly.
const l1MaxTTL = 30 * time.Second

// replayBackoff spaces out attempts to replay counter bumps while Redis is
// failing, so a request touching the cache several times costs one attempt.
const replayBackoff = time.Second

// MultiLevelCache keeps a short-lived in-process copy in front of Redis.
// With a nil l2 it degrades to a memory-only cache.
//
// A counter bump that cannot reach Redis is remembered and replayed. Until
// the replay succeeds Redis is bypassed entirely, because it may still hold
// entries the bump was meant to retire.
type MultiLevelCache struct {
	l1             *MemoryCache
	l2             Cache
	metrics        *CacheMetrics
	circuitBreaker *CircuitBreaker

	mu            sync.Mutex
	pending       map[string]struct{}
	retryAt       time.Time
	replayBackoff time.Duration
}

func NewMultiLevelCache(l2 Cache) *MultiLevelCache {
	return &MultiLevelCache{
		l1:             NewMemoryCache(),
		l2:             l2,
		metrics:        NewCacheMetrics(),
		circuitBreaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		pending:        make(map[string]struct{}),
		replayBackoff:  replayBackoff,
	}
}

func l1TTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > l1MaxTTL {
		return l1MaxTTL
	}
	return ttl
}

// useL2 reports whether Redis may be consulted, replaying pending counter
// bumps first.
func (c *MultiLevelCache) useL2() bool {
	if c.l2 == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return true
	}
	now := time.Now()
	if now.Before(c.retryAt) {
		return false
	}
	for key := range c.pending {
		err := c.circuitBreaker.Execute(func() error {
			_, err := c.l2.Incr(key)
			return err
		})
		if err != nil {
			c.metrics.RecordError()
			c.retryAt = now.Add(c.replayBackoff)
			return false
		}
		delete(c.pending, key)
	}
	// L1 entries written while bypassing Redis were keyed by local counters.
	c.l1.DeletePattern("*")
	return true
}

func (c *MultiLevelCache) Set(key string, value interface{}, ttl time.Duration) error {
	if err := c.l1.Set(key, value, l1TTL(ttl)); err != nil {
		c.metrics.RecordError()
		return err
	}
	c.metrics.RecordSet()

	if c.useL2() {
		err := c.circuitBreaker.Execute(func() error {
			return c.l2.Set(key, value, ttl)
		})
		if err != nil {
			// L1 still holds the value; a degraded L2 is not a write failure.
			c.metrics.RecordError()
		}
	}

	return nil
}

func (c *MultiLevelCache) Get(key string, dest interface{}) error {
	err := c.l1.Get(key, dest)
	if err == nil {
		c.metrics.RecordHit()
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return err
	}

	if c.useL2() {
		err = c.circuitBreaker.Execute(func() error {
			return c.l2.Get(key, dest)
		})
		if err == nil {
			// Promote with the short L1 lifetime; the L2 TTL is not known here.
			_ = c.l1.Set(key, dest, l1MaxTTL)
			c.metrics.RecordHit()
			return nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.metrics.RecordError()
		}
	}

	c.metrics.RecordMiss()
	return ErrCacheMiss
}

func (c *MultiLevelCache) Delete(key string) error {
	c.l1.Delete(key)
	c.metrics.RecordDelete()

	if c.useL2() {
		err := c.circuitBreaker.Execute(func() error {
			return c.l2.Delete(key)
		})
		if err != nil {
			c.metrics.RecordError()
		}
		return err
	}

	return nil
}

func (c *MultiLevelCache) DeletePattern(pattern string) error {
	c.l1.DeletePattern(pattern)
	c.metrics.RecordDelete()

	if c.useL2() {
		err := c.circuitBreaker.Execute(func() error {
			return c.l2.DeletePattern(pattern)
		})
		if err != nil {
			c.metrics.RecordError()
		}
		return err
	}

	return nil
}

func (c *MultiLevelCache) Exists(key string) (bool, error) {
	if found, _ := c.l1.Exists(key); found {
		return true, nil
	}

	if c.useL2() {
		return c.l2.Exists(key)
	}

	return false, nil
}

// Incr bumps the counter in Redis. If Redis cannot be reached the bump is
// queued for replay and a local counter is used meanwhile.
func (c *MultiLevelCache) Incr(key string) (int64, error) {
	if c.useL2() {
		var n int64
		err := c.circuitBreaker.Execute(func() error {
			var err error
			n, err = c.l2.Incr(key)
			return err
		})
		if err == nil {
			return n, nil
		}
		c.metrics.RecordError()

		c.mu.Lock()
		if len(c.pending) == 0 {
			// Start local counting from an empty L1 so no entry keyed by a
			// Redis counter value can be mistaken for a fresh one.
			c.l1.DeletePattern("*")
		}
		c.pending[key] = struct{}{}
		c.retryAt = time.Now().Add(c.replayBackoff)
		c.mu.Unlock()
	}

	return c.l1.Incr(key)
}

// Counter reads the shared counter from Redis, or the local one when Redis
// is bypassed. A Redis read failure is returned so callers can skip caching.
func (c *MultiLevelCache) Counter(key string) (int64, error) {
	if c.useL2() {
		var n int64
		err := c.circuitBreaker.Execute(func() error {
			var err error
			n, err = c.l2.Counter(key)
			return err
		})
		if err != nil {
			c.metrics.RecordError()
		}
		return n, err
	}

	return c.l1.Counter(key)
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	c.mu.Lock()
	pending := len(c.pending)
	c.mu.Unlock()

	stats := map[string]interface{}{
		"l1":               c.l1.Stats(),
		"metrics":          c.metrics.GetStats(),
		"hit_rate_percent": c.metrics.HitRate(),
		"circuit_breaker":  c.circuitBreaker.GetStats(),
		"l2_bypassed":      pending > 0,
	}

	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
	}

	return stats
}

func (c *MultiLevelCache) Health() error {
	if c.l2 != nil {
		return c.l2.Health()
	}

	return nil
}

func (c *MultiLevelCache) Close() error {
	c.l1.Close()

	if c.l2 != nil {
		return c.l2.Close()
	}

	return nil
}

func (c *MultiLevelCache) GetMetrics() *CacheMetrics {
	return c.metrics
}

func (c *MultiLevelCache) GetCircuitBreaker() *CircuitBreaker {
	return c.circuitBreaker
}
