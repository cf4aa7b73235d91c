package roster

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// QueryCache is an in-memory TTL cache
type QueryCache struct {
	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewQueryCache() *QueryCache {
	return &QueryCache{cache: make(map[string]cacheEntry)}
}

func (c *QueryCache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

// Get returns a live entry. Expired entries are dropped on read.
func (c *QueryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.Delete(key)
		return nil, false
	}
	return entry.value, true
}

func (c *QueryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, key)
}

func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// Len counts entries, including expired ones not yet evicted
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// generateCacheKey creates a deterministic cache key from a name and args
func generateCacheKey(name string, args ...interface{}) string {
	data, _ := json.Marshal(struct {
		Name string
		Args []interface{}
	}{
		Name: name,
		Args: args,
	})
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// CacheObserver is told about cache lookups
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// CachedSource memoizes successful loads of another source
type CachedSource struct {
	source   Source
	cache    *QueryCache
	ttl      time.Duration
	observer CacheObserver
}

// NewCachedSource wraps source. observer may be nil.
func NewCachedSource(source Source, ttl time.Duration, observer CacheObserver) *CachedSource {
	return &CachedSource{
		source:   source,
		cache:    NewQueryCache(),
		ttl:      ttl,
		observer: observer,
	}
}

// Load serves a copy of a cached roster or loads and caches it
func (s *CachedSource) Load(ctx context.Context, team string, season int) ([]Record, error) {
	key := generateCacheKey("roster", team, season)

	if cached, found := s.cache.Get(key); found {
		if s.observer != nil {
			s.observer.CacheHit()
		}
		return copyRecords(cached.([]Record)), nil
	}
	if s.observer != nil {
		s.observer.CacheMiss()
	}

	records, err := s.source.Load(ctx, team, season)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, copyRecords(records), s.ttl)
	return records, nil
}

// Invalidate drops every cached roster
func (s *CachedSource) Invalidate() {
	s.cache.Clear()
}

// Size reports the number of cached rosters
func (s *CachedSource) Size() int {
	return s.cache.Len()
}

func copyRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r
		out[i].Probabilities = append([]float64(nil), r.Probabilities...)
	}
	return out
}
