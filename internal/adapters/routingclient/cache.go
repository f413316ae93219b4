package routingclient

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/dispatchcore/fleetengine/internal/domain/geo"
	"github.com/dispatchcore/fleetengine/internal/domain/routing"
	"github.com/dispatchcore/fleetengine/internal/domain/shared"
	"github.com/dispatchcore/fleetengine/internal/infrastructure/metrics"
)

type cacheEntry struct {
	polyline  geo.Polyline
	expiresAt time.Time
}

// Cache wraps a routing.Client with an LRU cache keyed by rounded endpoint
// pairs, a per-entry TTL, and singleflight collapsing of concurrent misses
// on the same key so a burst of lookups for the same pair triggers only
// one external call.
type Cache struct {
	inner     routing.Client
	lru       *lru.Cache
	ttl       time.Duration
	group     singleflight.Group
	clock     shared.Clock
}

// NewCache builds a Cache of the given size (default 1024 if <= 0) and TTL
// (default 1h if <= 0) over inner.
func NewCache(inner routing.Client, size int, ttl time.Duration, clock shared.Clock) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner, lru: l, ttl: ttl, clock: clock}, nil
}

func cacheKey(start, end geo.Location) string {
	sLat, sLng := geo.RoundedKey(start)
	eLat, eLng := geo.RoundedKey(end)
	return fmt.Sprintf("%.3f,%.3f->%.3f,%.3f", sLat, sLng, eLat, eLng)
}

// Route returns the cached polyline for (start, end) if present and
// unexpired; otherwise it performs (or joins an in-flight) external call
// and caches the result, including fallback polylines.
func (c *Cache) Route(ctx context.Context, start, end geo.Location) (geo.Polyline, error) {
	key := cacheKey(start, end)

	if v, ok := c.lru.Get(key); ok {
		entry := v.(cacheEntry)
		if c.clock.Now().Before(entry.expiresAt) {
			metrics.RecordRouteCacheHit()
			return entry.polyline, nil
		}
		c.lru.Remove(key)
	}

	metrics.RecordRouteCacheMiss()
	result, err, _ := c.group.Do(key, func() (any, error) {
		polyline, err := c.inner.Route(ctx, start, end)
		if err != nil {
			return geo.Polyline{}, err
		}
		if polyline.Fallback {
			metrics.RecordRouteFallback()
		}
		c.lru.Add(key, cacheEntry{polyline: polyline, expiresAt: c.clock.Now().Add(c.ttl)})
		return polyline, nil
	})
	if err != nil {
		return geo.Polyline{}, err
	}
	return result.(geo.Polyline), nil
}
