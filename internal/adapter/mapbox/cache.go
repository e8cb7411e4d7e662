package mapbox

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by the
// normalized query.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru.Cache[string, domain.GeocodingResult]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	if maxEntries < 1 {
		maxEntries = 1
	}
	cache, _ := lru.New[string, domain.GeocodingResult](maxEntries) // only errors on size < 1
	return &CachedGeocoder{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	key := cacheKey(query)
	if result, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ForwardGeocode(ctx, query)
	if err != nil {
		return result, err
	}
	// Only cache found locations so transient "not found" responses can be retried.
	if result.Coordinate != nil {
		c.cache.Add(key, result)
	}
	return result, nil
}

// Len reports the number of cached queries.
func (c *CachedGeocoder) Len() int {
	return c.cache.Len()
}

func cacheKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
