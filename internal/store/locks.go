package store

import (
	"slices"
	"sync"
)

// CollectionLocks serializes access per collection inside one process.
type CollectionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCollectionLocks() *CollectionLocks {
	return &CollectionLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires every named collection in sorted order and returns the
// matching unlock function. Duplicate names are ignored.
func (c *CollectionLocks) Lock(names ...string) func() {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, name := range sorted {
		m := c.lockFor(name)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (c *CollectionLocks) lockFor(name string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.locks[name]
	if !ok {
		m = &sync.Mutex{}
		c.locks[name] = m
	}
	return m
}
