package eventbus

import (
	"container/list"
	"sync"
	"time"
)

// seenCache is a bounded TTL set of event ids used for duplicate dropping.
type seenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]*list.Element
	order   *list.List // front = oldest
}

type seenEntry struct {
	id      string
	addedAt time.Time
}

func newSeenCache(ttl time.Duration, maxSize int) *seenCache {
	return &seenCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// markSeen records id and reports true when it was not already present.
func (c *seenCache) markSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired()

	if _, ok := c.entries[id]; ok {
		return false
	}

	for len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(&seenEntry{id: id, addedAt: time.Now()})
	c.entries[id] = elem
	return true
}

func (c *seenCache) evictExpired() {
	cutoff := time.Now().Add(-c.ttl)
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		entry := front.Value.(*seenEntry)
		if entry.addedAt.After(cutoff) {
			return
		}
		c.order.Remove(front)
		delete(c.entries, entry.id)
	}
}

func (c *seenCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	entry := front.Value.(*seenEntry)
	c.order.Remove(front)
	delete(c.entries, entry.id)
}
