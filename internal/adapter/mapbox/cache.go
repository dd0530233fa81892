package mapbox

import (
	"container/list"
	"context"
	"math"
	"sync"

	"github.com/couchcryptid/fleet-map/internal/domain"
	"github.com/couchcryptid/fleet-map/internal/observability"
)

// CachedResolver wraps an AddressResolver with an in-memory LRU cache keyed by
// position rounded to five decimals (about a metre). Stations do not move, so
// after the first refresh nearly every lookup is a hit.
type CachedResolver struct {
	inner   domain.AddressResolver
	metrics *observability.Metrics

	mu    sync.Mutex
	max   int
	order *list.List // front is most recently used
	items map[cellKey]*list.Element
}

type cellKey struct {
	lat, lon int64
}

type cached struct {
	key  cellKey
	addr domain.Address
}

func keyOf(pos domain.Position) cellKey {
	return cellKey{
		lat: int64(math.Round(pos.Lat * 1e5)),
		lon: int64(math.Round(pos.Lon * 1e5)),
	}
}

// NewCachedResolver creates a cache decorator holding at most maxEntries
// addresses.
func NewCachedResolver(inner domain.AddressResolver, maxEntries int, metrics *observability.Metrics) *CachedResolver {
	return &CachedResolver{
		inner:   inner,
		metrics: metrics,
		max:     maxEntries,
		order:   list.New(),
		items:   make(map[cellKey]*list.Element),
	}
}

func (c *CachedResolver) ResolveAddress(ctx context.Context, pos domain.Position) (domain.Address, error) {
	key := keyOf(pos)
	if addr, ok := c.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return addr, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	addr, err := c.inner.ResolveAddress(ctx, pos)
	if err != nil {
		return addr, err
	}
	// Empty results are not cached so a later refresh asks again.
	if addr.Full != "" {
		c.put(key, addr)
	}
	return addr, nil
}

// Len returns the number of cached addresses.
func (c *CachedResolver) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedResolver) get(key cellKey) (domain.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return domain.Address{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cached).addr, true
}

func (c *CachedResolver) put(key cellKey, addr domain.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		el.Value.(*cached).addr = addr
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cached{key: key, addr: addr})
	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cached).key)
	}
}
