package dashboard

import (
	"sync"
	"time"

	"github.com/coachbook/server/internal/metrics"
	"github.com/golang/groupcache/lru"
)

type Route string

const (
	RouteCoach   Route = "coach"
	RouteCoachee Route = "coachee"
)

type cacheKey struct {
	route  Route
	userID string
}

type cacheEntry struct {
	data    snapshot
	expires time.Time
}

// Cache holds composed dashboard rows per (route, user). A zero size
// disables caching.
//
// gen advances on every invalidation; a load that started before an
// invalidation must not be stored.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
	gen uint64
}

func NewCache(size int, ttl time.Duration) *Cache {
	c := &Cache{ttl: ttl, now: time.Now}
	if size > 0 {
		c.lru = lru.New(size)
	}
	return c
}

func (c *Cache) get(route Route, userID string) (snapshot, bool) {
	if c == nil || c.lru == nil {
		return snapshot{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{route: route, userID: userID}
	value, ok := c.lru.Get(key)
	if !ok {
		metrics.DashboardCacheLookups.WithLabelValues(string(route), "miss").Inc()
		return snapshot{}, false
	}
	entry := value.(cacheEntry)
	if c.ttl > 0 && c.now().After(entry.expires) {
		c.lru.Remove(key)
		metrics.DashboardCacheLookups.WithLabelValues(string(route), "miss").Inc()
		return snapshot{}, false
	}
	metrics.DashboardCacheLookups.WithLabelValues(string(route), "hit").Inc()
	return entry.data, true
}

// generation is read before loading the rows passed to put.
func (c *Cache) generation() uint64 {
	if c == nil || c.lru == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// put stores data unless the cache was invalidated since gen was read.
func (c *Cache) put(route Route, userID string, data snapshot, gen uint64) {
	if c == nil || c.lru == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.lru.Add(cacheKey{route: route, userID: userID}, cacheEntry{data: data, expires: c.now().Add(c.ttl)})
}

// Invalidate drops one cached view.
func (c *Cache) Invalidate(route Route, userID string) {
	if c == nil || c.lru == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	key := cacheKey{route: route, userID: userID}
	if _, ok := c.lru.Get(key); ok {
		c.lru.Remove(key)
		metrics.DashboardCacheInvalidations.Inc()
	}
}

// InvalidateParticipants drops the coach view of coachID and the coachee view
// of coacheeID.
func (c *Cache) InvalidateParticipants(coachID, coacheeID string) {
	c.Invalidate(RouteCoach, coachID)
	c.Invalidate(RouteCoachee, coacheeID)
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	if c == nil || c.lru == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	metrics.DashboardCacheInvalidations.Add(float64(c.lru.Len()))
	c.lru.Clear()
}

// Len is the number of cached views.
func (c *Cache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
