package cache

import (
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Set(key string, value interface{}, ttl time.Duration) error
	// Get decodes the cached value into dest, which must be a pointer.
	Get(key string, dest interface{}) error
	Delete(key string) error
	DeletePattern(pattern string) error
	Exists(key string) (bool, error)
	// Incr atomically increments a counter and returns the new value.
	// Counters never expire and are not removed by Delete or DeletePattern.
	Incr(key string) (int64, error)
	// Counter returns a counter's value, or 0 if it was never incremented.
	Counter(key string) (int64, error)
	Stats() map[string]interface{}
	Health() error
	Close() error
}
