package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxItems = 10000

// MemoryCache is the in-process tier. Values are kept as JSON snapshots, so a
// reader never shares memory with the writer or with other readers. Once
// maxItems entries are held, expired entries are dropped first and then the
// entry closest to expiry.
type MemoryCache struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	counters  map[string]int64
	maxItems  int
	evictions atomic.Int64

	stopCh chan struct{}
	once   sync.Once
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

func NewMemoryCache() *MemoryCache {
	return newMemoryCache(time.Minute, defaultMaxItems)
}

func newMemoryCache(sweepEvery time.Duration, maxItems int) *MemoryCache {
	c := &MemoryCache{
		entries:  make(map[string]memoryEntry),
		counters: make(map[string]int64),
		maxItems: maxItems,
		stopCh:   make(chan struct{}),
	}
	go c.sweepLoop(sweepEvery)
	return c
}

func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxItems {
		c.evictLocked(now)
	}
	c.entries[key] = memoryEntry{data: data, expiresAt: now.Add(ttl)}
	return nil
}

func (c *MemoryCache) Get(key string, dest interface{}) error {
	if err := checkDestination(dest); err != nil {
		return err
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.expired(time.Now()) {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

func (c *MemoryCache) Exists(key string) (bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	return ok && !entry.expired(time.Now()), nil
}

func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) DeletePattern(pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if matchPattern(key, pattern) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *MemoryCache) Incr(key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counters == nil {
		c.counters = make(map[string]int64)
	}
	c.counters[key]++
	return c.counters[key], nil
}

func (c *MemoryCache) Counter(key string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[key], nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"type":      "memory",
		"items":     c.Len(),
		"max_items": c.maxItems,
		"evictions": c.evictions.Load(),
	}
}

func (c *MemoryCache) Health() error {
	return nil
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() {
		if c.stopCh != nil {
			close(c.stopCh)
		}
	})
	return nil
}

// evictLocked makes room for one entry. c.mu must be held for writing.
func (c *MemoryCache) evictLocked(now time.Time) {
	var (
		victim   string
		earliest time.Time
	)
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			continue
		}
		if victim == "" || entry.expiresAt.Before(earliest) {
			victim, earliest = key, entry.expiresAt
		}
	}
	if len(c.entries) >= c.maxItems && victim != "" {
		delete(c.entries, victim)
		c.evictions.Add(1)
	}
}

func (c *MemoryCache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if entry.expired(now) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func checkDestination(dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr {
		return fmt.Errorf("destination must be a pointer, got %T", dest)
	}
	if v.IsNil() {
		return fmt.Errorf("destination pointer is nil")
	}
	return nil
}

// matchPattern supports "*" and a single trailing wildcard ("prefix*").
func matchPattern(key, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(key, prefix)
	}
	return key == pattern
}
