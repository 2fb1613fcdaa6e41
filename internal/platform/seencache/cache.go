// Package seencache provides a bounded processed-post cache. Entries expire
// by TTL and the oldest entries are evicted once the size cap is reached, so
// memory stays flat over long-running deployments.
package seencache

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	id      string
	addedAt time.Time
}

// Cache remembers post IDs the bridge has already handled.
type Cache struct {
	mu    sync.Mutex
	max   int
	ttl   time.Duration
	order *list.List // front is oldest
	index map[string]*list.Element
	now   func() time.Time
}

// New creates a cache holding at most max entries for at most ttl each.
func New(max int, ttl time.Duration) *Cache {
	return &Cache{
		max:   max,
		ttl:   ttl,
		order: list.New(),
		index: make(map[string]*list.Element),
		now:   time.Now,
	}
}

// Seen reports whether the ID is present and unexpired.
func (c *Cache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired()
	_, ok := c.index[id]
	return ok
}

// Add records an ID, evicting the oldest entry if the cache is full.
func (c *Cache) Add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired()
	if _, ok := c.index[id]; ok {
		return
	}

	for c.order.Len() >= c.max {
		oldest := c.order.Front()
		c.removeElement(oldest)
	}

	elem := c.order.PushBack(entry{id: id, addedAt: c.now()})
	c.index[id] = elem
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired()
	return c.order.Len()
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	for {
		front := c.order.Front()
		if front == nil {
			break
		}
		if front.Value.(entry).addedAt.After(cutoff) {
			break
		}
		c.removeElement(front)
	}
}

func (c *Cache) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.index, elem.Value.(entry).id)
}
