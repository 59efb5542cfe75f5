package kv

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryBackend keeps values in process memory.
type MemoryBackend struct {
	cache *cache.Cache
}

// NewMemoryBackend creates a backend that purges expired items every cleanup interval.
func NewMemoryBackend(cleanup time.Duration) *MemoryBackend {
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &MemoryBackend{
		cache: cache.New(cache.NoExpiration, cleanup),
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	if x, found := b.cache.Get(key); found {
		return x.([]byte), nil
	}
	return nil, ErrNotFound
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	b.cache.Set(key, cp, ttl)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.cache.Delete(key)
	return nil
}

func (b *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range b.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
