package cachestore

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ctxloom/ctxloom/internal/pkg/timeutil"
)

// Store is a TTL key/value cache with prefix enumeration for bulk
// invalidation. Losing it only costs recomputation, never correctness.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	SetWithTTL(ctx context.Context, key, value string, ttlSeconds int)
	Delete(ctx context.Context, key string)
	DeletePrefix(ctx context.Context, prefix string) int
}

type entry struct {
	value    string
	deadline int64
}

type memoryStore struct {
	cache *expirable.LRU[string, entry]
}

// NewMemory builds an in-memory store. maxTTL bounds every entry's
// lifetime; per-key TTLs shorter than maxTTL are honored on read.
func NewMemory(size int, maxTTL time.Duration) Store {
	return &memoryStore{
		cache: expirable.NewLRU[string, entry](size, nil, maxTTL),
	}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, bool) {
	_ = ctx
	item, ok := s.cache.Get(key)
	if !ok {
		return "", false
	}
	if item.deadline > 0 && timeutil.NowUnix() >= item.deadline {
		s.cache.Remove(key)
		return "", false
	}
	return item.value, true
}

func (s *memoryStore) SetWithTTL(ctx context.Context, key, value string, ttlSeconds int) {
	_ = ctx
	var deadline int64
	if ttlSeconds > 0 {
		deadline = timeutil.NowUnix() + int64(ttlSeconds)
	}
	s.cache.Add(key, entry{value: value, deadline: deadline})
}

func (s *memoryStore) Delete(ctx context.Context, key string) {
	_ = ctx
	s.cache.Remove(key)
}

func (s *memoryStore) DeletePrefix(ctx context.Context, prefix string) int {
	_ = ctx
	removed := 0
	for _, key := range s.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Remove(key)
			removed++
		}
	}
	return removed
}
