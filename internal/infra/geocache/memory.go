package geocache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/yanqian/location-insights/internal/domain/insights"
)

// MemoryCache keeps resolved coordinates in process memory.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache builds a cache whose entries expire after defaultTTL unless Set overrides it.
func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &MemoryCache{store: gocache.New(defaultTTL, 10*time.Minute)}
}

// Get implements insights.GeocodeCache.
func (c *MemoryCache) Get(_ context.Context, zipcode string) (insights.Coordinate, bool, error) {
	value, ok := c.store.Get(normalize(zipcode))
	if !ok {
		return insights.Coordinate{}, false, nil
	}
	at, ok := value.(insights.Coordinate)
	if !ok {
		return insights.Coordinate{}, false, nil
	}
	return at, true, nil
}

// Set implements insights.GeocodeCache. A non-positive ttl uses the cache default.
func (c *MemoryCache) Set(_ context.Context, zipcode string, at insights.Coordinate, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(normalize(zipcode), at, ttl)
	return nil
}

func normalize(zipcode string) string {
	return strings.ToUpper(strings.TrimSpace(zipcode))
}

var _ insights.GeocodeCache = (*MemoryCache)(nil)
