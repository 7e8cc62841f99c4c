package webhook

import "sync"

// DefaultCacheSize is the number of delivery IDs remembered by default.
const DefaultCacheSize = 1024

// DeliveryCache remembers recently processed delivery IDs so redeliveries
// can be recognized. The oldest IDs are evicted once size is reached.
type DeliveryCache struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	size  int
}

// NewDeliveryCache creates a cache holding at most size IDs.
func NewDeliveryCache(size int) *DeliveryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &DeliveryCache{
		seen: make(map[string]struct{}, size),
		size: size,
	}
}

// MarkSeen records id and reports whether it had already been recorded.
// Empty IDs are never considered seen.
func (c *DeliveryCache) MarkSeen(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return true
	}

	if len(c.order) >= c.size {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
	c.seen[id] = struct{}{}
	c.order = append(c.order, id)
	return false
}

// Forget removes id so a later delivery with the same ID is handled again.
func (c *DeliveryCache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; !ok {
		return
	}
	delete(c.seen, id)
	for i, seen := range c.order {
		if seen == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of remembered IDs.
func (c *DeliveryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
