// Package geocache decorates a domain.Geocoder with an in-process LRU tier and
// an optional shared Redis tier. Only found results are cached so that
// transient "not found" answers can be retried on the next run.
package geocache

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/destination-etl/internal/domain"
	"github.com/couchcryptid/destination-etl/internal/observability"
)

// key normalizes a lookup so "Nice, France" and "nice, FRANCE" share an entry.
func key(name, country string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(country))
}

// MemoryGeocoder keeps the most recently used results in memory.
type MemoryGeocoder struct {
	inner   domain.Geocoder
	metrics *observability.Metrics

	mu         sync.Mutex
	maxEntries int
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type memoryEntry struct {
	key    string
	result domain.GeocodingResult
}

// NewMemoryGeocoder creates a cache holding at most maxEntries results.
func NewMemoryGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *MemoryGeocoder {
	return &MemoryGeocoder{
		inner:      inner,
		metrics:    metrics,
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *MemoryGeocoder) ForwardGeocode(ctx context.Context, name, country string) (domain.GeocodingResult, error) {
	k := key(name, country)
	if result, ok := c.get(k); ok {
		c.metrics.GeocodeCache.WithLabelValues("memory", "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("memory", "miss").Inc()

	result, err := c.inner.ForwardGeocode(ctx, name, country)
	if err != nil {
		return result, err
	}
	if result.Found() {
		c.put(k, result)
	}
	return result, nil
}

// Len reports the number of cached results.
func (c *MemoryGeocoder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryGeocoder) get(k string) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[k]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*memoryEntry).result, true
}

func (c *MemoryGeocoder) put(k string, result domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[k]; ok {
		el.Value.(*memoryEntry).result = result
		c.order.MoveToFront(el)
		return
	}
	c.entries[k] = c.order.PushFront(&memoryEntry{key: k, result: result})

	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*memoryEntry).key)
	}
}
