package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/internal/indices"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// cacheEntry is one cached index result
type cacheEntry struct {
	result    domain.IndexResult
	warnings  []string
	cachedAt  time.Time
	expiresAt time.Time
	hits      int
}

// CacheStats summarizes cache usage
type CacheStats struct {
	Entries  int     `json:"entries"`
	MaxSize  int     `json:"max_size"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
	TTL      string  `json:"ttl"`
}

// ResultCache keeps computed index results keyed by dataset fingerprint,
// index id, formula version and run parameters. When full, the oldest entry
// is evicted.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxSize int
	hits    int64
	misses  int64
	now     func() time.Time
}

// NewResultCache creates a cache. A zero ttl never expires entries; a
// non-positive maxSize stores nothing.
func NewResultCache(ttl time.Duration, maxSize int) *ResultCache {
	return &ResultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// cacheKey identifies one index computation over one dataset
func cacheKey(fingerprint string, def indices.Definition, p indices.Params) string {
	return strings.Join([]string{fingerprint, def.ID, def.FormulaVersion, p.CacheKey()}, "|")
}

// Get returns the cached result and the warnings it was computed with
func (c *ResultCache) Get(key string) (domain.IndexResult, []string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || c.expired(entry) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return domain.IndexResult{}, nil, false
	}

	entry.hits++
	c.entries[key] = entry
	c.hits++
	return entry.result, entry.warnings, true
}

// Set stores a result
func (c *ResultCache) Set(key string, result domain.IndexResult, warnings []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize <= 0 {
		return
	}
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.purgeExpired()
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
	}

	now := c.now()
	entry := cacheEntry{result: result, warnings: warnings, cachedAt: now}
	if c.ttl > 0 {
		entry.expiresAt = now.Add(c.ttl)
	}
	c.entries[key] = entry
}

// Len returns the number of stored entries, expired ones included
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry and resets the counters
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
	c.hits, c.misses = 0, 0
}

// Stats returns a snapshot of cache usage
func (c *ResultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Entries: len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		TTL:     c.ttl.String(),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRatio = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *ResultCache) expired(entry cacheEntry) bool {
	return !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt)
}

func (c *ResultCache) purgeExpired() {
	for key, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, key)
		}
	}
}

func (c *ResultCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.cachedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.cachedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
