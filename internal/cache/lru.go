// Dexmirror - Offline Pokédex Mirror and Sync Engine
// Copyright 2026 Dexmirror contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dexmirror/dexmirror

// Package cache provides the bounded response caches used by the remote
// client. Entries never expire; they are invalidated only by eviction or
// process restart.
package cache

import (
	"sync"

	"github.com/dexmirror/dexmirror/internal/metrics"
)

// entry is a node of the LRU list.
type entry struct {
	key   string
	value []byte
	prev  *entry
	next  *entry
}

// LRU implements a thread-safe least-recently-used byte cache with O(1)
// Get, Put and eviction. It uses a doubly-linked list for ordering and a
// hashmap for lookups; head.next is the most recently used entry,
// tail.prev the least recently used.
//
// Get returns a copy of the stored value, so an eviction can never race an
// in-flight read of the evicted entry.
type LRU struct {
	mu sync.RWMutex

	// name labels the cache in metrics (url, type, ability, move, species).
	name string

	// capacity is the maximum number of entries.
	capacity int

	// items maps keys to linked list nodes for O(1) lookup.
	items map[string]*entry

	// head and tail are sentinel nodes for the doubly-linked list.
	head *entry
	tail *entry

	hits   int64
	misses int64
}

// NewLRU creates a new LRU cache with the given metrics name and capacity.
func NewLRU(name string, capacity int) *LRU {
	if capacity <= 0 {
		capacity = 1024
	}

	c := &LRU{
		name:     name,
		capacity: capacity,
		items:    make(map[string]*entry, capacity),
		head:     &entry{},
		tail:     &entry{},
	}

	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get retrieves a copy of the cached value for key.
// Found entries are moved to the front (most recently used).
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.items[key]
	if !exists {
		c.misses++
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
		return nil, false
	}

	c.moveToFront(e)
	c.hits++
	metrics.CacheHits.WithLabelValues(c.name).Inc()

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

// Contains checks whether key is cached without updating access order.
func (c *LRU) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.items[key]
	return exists
}

// Put adds or updates an entry. If the cache is at capacity, the least
// recently used entry is evicted.
func (c *LRU) Put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.items[key]; exists {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.addToFront(e)
	c.items[key] = e

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove evicts a single key. Returns true if the key was present.
func (c *LRU) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.items[key]; exists {
		c.removeEntry(e)
		return true
	}
	return false
}

// Len returns the current number of entries.
func (c *LRU) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Purge removes all entries.
func (c *LRU) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats returns hit/miss counters and the current size.
func (c *LRU) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.items)
}

// Internal methods (must be called with lock held)

func (c *LRU) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *LRU) removeEntry(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *LRU) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	metrics.CacheEvictions.WithLabelValues(c.name).Inc()
}
