package client

import (
	"encoding/json"
	"fmt"
	"sync"
)

// KeyFunc extracts the collection key of a record.
type KeyFunc[T any] func(T) string

// Page is the pagination envelope of every list endpoint.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// ParsePage decodes a list response.
func ParsePage[T any](data []byte) (Page[T], error) {
	var p Page[T]
	if err := json.Unmarshal(data, &p); err != nil {
		return Page[T]{}, fmt.Errorf("failed to decode page: %w", err)
	}
	return p, nil
}

// Collection is a keyed, ordered local cache of records. It is safe for
// concurrent use; concurrent writers to one key are last-write-wins.
type Collection[T any] struct {
	mu    sync.RWMutex
	key   KeyFunc[T]
	items map[string]T
	order []string

	count    int
	next     string
	previous string
}

// NewCollection creates an empty collection keyed by key.
func NewCollection[T any](key KeyFunc[T]) *Collection[T] {
	return &Collection[T]{
		key:   key,
		items: make(map[string]T),
	}
}

// Key returns the key of item.
func (c *Collection[T]) Key(item T) string {
	return c.key(item)
}

// Parse records the paging state of p and returns its records, never nil.
func (c *Collection[T]) Parse(p Page[T]) []T {
	c.mu.Lock()
	c.count = p.Count
	c.next = deref(p.Next)
	c.previous = deref(p.Previous)
	c.mu.Unlock()

	if p.Results == nil {
		return []T{}
	}
	return p.Results
}

// Get returns the record stored under key.
func (c *Collection[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	return item, ok
}

// Set adds or replaces items, keeping the position of existing keys.
func (c *Collection[T]) Set(items ...T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		c.setLocked(item)
	}
}

func (c *Collection[T]) setLocked(item T) {
	k := c.key(item)
	if _, exists := c.items[k]; !exists {
		c.order = append(c.order, k)
	}
	c.items[k] = item
}

// Merge stores items. With remove, records absent from items are dropped
// and the collection takes the order of items.
func (c *Collection[T]) Merge(items []T, remove bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !remove {
		for _, item := range items {
			c.setLocked(item)
		}
		return
	}

	c.items = make(map[string]T, len(items))
	c.order = c.order[:0]
	for _, item := range items {
		c.setLocked(item)
	}
}

// Remove drops the record under key.
func (c *Collection[T]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; !ok {
		return false
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of cached records.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// All returns the records in insertion order.
func (c *Collection[T]) All() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.items[k])
	}
	return out
}

// Filter returns the records for which keep is true, in order.
func (c *Collection[T]) Filter(keep func(T) bool) []T {
	var out []T
	for _, item := range c.All() {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Count is the server-side total from the last parsed page.
func (c *Collection[T]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Next is the URL of the page after the last parsed one, if any.
func (c *Collection[T]) Next() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.next
}

// Previous is the URL of the page before the last parsed one, if any.
func (c *Collection[T]) Previous() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.previous
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
