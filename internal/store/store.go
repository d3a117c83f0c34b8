package store

import "sync"

// Store is the durable user → step index map the engine writes through.
// Set must be durable before returning; writes for the same user are
// last-write-wins.
type Store interface {
	Get(userID int64) (int, bool, error)
	Set(userID int64, index int) error
	LoadAll() (map[int64]int, error)
}

// Cache is a guarded write-through cache over a Store, hydrated once at
// startup. The backend write happens before the in-memory update, so a
// crash between the two leaves the durable state ahead of nothing.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]int
	backend Store
}

func NewCache(backend Store) (*Cache, error) {
	all, err := backend.LoadAll()
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = make(map[int64]int)
	}
	return &Cache{entries: all, backend: backend}, nil
}

func (c *Cache) Get(userID int64) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	index, ok := c.entries[userID]
	return index, ok
}

func (c *Cache) Set(userID int64, index int) error {
	if err := c.backend.Set(userID, index); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[userID] = index
	c.mu.Unlock()
	return nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
