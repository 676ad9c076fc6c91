package ledger

import "sync"

const defaultCategoryCacheSize = 512

// categoryCache maps category keys ("name:<text>" or "id:<n>") to ids.
// It holds at most max entries and evicts the oldest insert first.
type categoryCache struct {
	mu    sync.Mutex
	max   int
	ids   map[string]int64
	order []string
}

func newCategoryCache(max int) *categoryCache {
	if max <= 0 {
		max = defaultCategoryCacheSize
	}
	return &categoryCache{
		max: max,
		ids: make(map[string]int64, max),
	}
}

func (c *categoryCache) Get(key string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[key]
	return id, ok
}

func (c *categoryCache) Put(key string, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ids[key]; ok {
		c.ids[key] = id
		return
	}
	for len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.ids, oldest)
	}
	c.ids[key] = id
	c.order = append(c.order, key)
}

func (c *categoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// Clear drops every entry.
func (c *categoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = make(map[string]int64, c.max)
	c.order = nil
}
