package ml

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// CacheKey identifies one scored runner under one model version
type CacheKey struct {
	RaceID       string
	HorseNumber  int
	ModelVersion string
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%d:%s", k.RaceID, k.HorseNumber, k.ModelVersion)
}

// PredictionCache provides in-memory caching for win probabilities
type PredictionCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.Mutex
	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// NewPredictionCache creates a new prediction cache
func NewPredictionCache(ttl time.Duration, maxSize int) *PredictionCache {
	return &PredictionCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a cached probability
func (pc *PredictionCache) Get(ctx context.Context, key CacheKey) (float64, bool) {
	if result, found := pc.cache.Get(key.String()); found {
		if p, ok := result.(float64); ok {
			pc.hitCount.Add(1)
			pc.updateMetrics()
			return p, true
		}
	}

	pc.missCount.Add(1)
	pc.updateMetrics()
	return 0, false
}

// Set stores a probability. When the cache is full expired entries are
// purged first and the write is dropped if no room was freed.
func (pc *PredictionCache) Set(ctx context.Context, key CacheKey, p float64) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.maxSize > 0 && pc.cache.ItemCount() >= pc.maxSize {
		pc.cache.DeleteExpired()
		if pc.cache.ItemCount() >= pc.maxSize {
			return
		}
	}

	pc.cache.Set(key.String(), p, pc.ttl)
}

// InvalidateModel removes every entry cached for a model version
func (pc *PredictionCache) InvalidateModel(ctx context.Context, modelVersion string) int {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	suffix := ":" + modelVersion
	removed := 0
	for k := range pc.cache.Items() {
		if strings.HasSuffix(k, suffix) {
			pc.cache.Delete(k)
			removed++
		}
	}
	return removed
}

// Clear flushes the entire cache
func (pc *PredictionCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.cache.Flush()
	pc.hitCount.Store(0)
	pc.missCount.Store(0)
}

// Stats returns cache statistics
func (pc *PredictionCache) Stats() (hits, misses uint64, ratio float64) {
	hits = pc.hitCount.Load()
	misses = pc.missCount.Load()
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of items in cache
func (pc *PredictionCache) ItemCount() int {
	return pc.cache.ItemCount()
}

func (pc *PredictionCache) updateMetrics() {
	_, _, ratio := pc.Stats()
	MLCacheHitRatio.Set(ratio)
}
