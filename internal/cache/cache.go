package cache

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/mvalues/server/internal/lib/mvalues"
)

// ResultCache provides thread-safe in-memory caching of interpolation results with TTL
type ResultCache struct {
	entries map[string]*CacheEntry
	ttl     time.Duration
	mutex   sync.RWMutex

	hits   int64
	misses int64
}

// CacheEntry represents a cached result with metadata
type CacheEntry struct {
	Key       string          `json:"key"`
	Result    *mvalues.Result `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// CacheStats provides cache usage statistics
type CacheStats struct {
	TotalEntries int       `json:"total_entries"`
	FreshEntries int       `json:"fresh_entries"`
	StaleEntries int       `json:"stale_entries"`
	Hits         int64     `json:"hits"`
	Misses       int64     `json:"misses"`
	OldestEntry  time.Time `json:"oldest_entry"`
	NewestEntry  time.Time `json:"newest_entry"`
}

// NewResultCache creates a new in-memory cache whose entries live for ttl
func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		entries: make(map[string]*CacheEntry),
		ttl:     ttl,
	}
}

// Set stores a copy of result under key
func (c *ResultCache) Set(key string, result *mvalues.Result) {
	now := time.Now()
	entry := &CacheEntry{
		Key:       key,
		Result:    cloneResult(result),
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry
}

// Get retrieves a copy of the result for key if present and not stale
func (c *ResultCache) Get(key string) (*mvalues.Result, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.ExpiresAt) {
		c.misses++
		return nil, false
	}

	c.hits++
	return cloneResult(entry.Result), true
}

// IsStale checks if cache entry is stale (past expiration)
func (c *ResultCache) IsStale(key string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return true
	}

	return time.Now().After(entry.ExpiresAt)
}

// Delete removes an entry from cache
func (c *ResultCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)
}

// Clear removes all entries from cache
func (c *ResultCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*CacheEntry)
}

// Stats returns cache statistics
func (c *ResultCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	stats := CacheStats{
		TotalEntries: len(c.entries),
		Hits:         c.hits,
		Misses:       c.misses,
	}

	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			stats.StaleEntries++
		} else {
			stats.FreshEntries++
		}

		// Update oldest/newest
		if stats.OldestEntry.IsZero() || entry.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.CreatedAt
		}
		if entry.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = entry.CreatedAt
		}
	}

	return stats
}

// CleanupStale removes all stale entries from cache
func (c *ResultCache) CleanupStale() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	var removed int

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// StartPeriodicCleanup starts a goroutine that periodically cleans up stale
// entries until ctx is done
func (c *ResultCache) StartPeriodicCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		defer func() {
			// Recover from any panics in the cache cleanup goroutine
			if r := recover(); r != nil {
				err, _ := errors.ParseStack(debug.Stack())
				skipFrames := 3
				numFrames := 5
				logging.Errorw(ctx, "Cache cleanup: recovered from panic",
					"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.CleanupStale(); removed > 0 {
					logging.Infow(ctx, "Cache cleanup removed stale results", "removed", removed)
				}
			}
		}
	}()
}

// cloneResult copies result so cached entries cannot be mutated by callers
func cloneResult(result *mvalues.Result) *mvalues.Result {
	if result == nil {
		return nil
	}
	clone := &mvalues.Result{
		Values:       make([]float64, len(result.Values)),
		Anchors:      make([]int, len(result.Anchors)),
		Interpolated: result.Interpolated,
	}
	copy(clone.Values, result.Values)
	copy(clone.Anchors, result.Anchors)
	if len(result.Warnings) > 0 {
		clone.Warnings = append([]mvalues.ZeroDistanceGapWarning(nil), result.Warnings...)
	}
	return clone
}
