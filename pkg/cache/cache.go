// Package cache provides an LRU cache of liveness summaries keyed by graph
// fingerprint, with msgpack persistence.
package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/l3aro/go-liveness/pkg/lva"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrKeyNotFound is returned when a fingerprint is not in the cache.
var ErrKeyNotFound = errors.New("key not found")

// Entry represents a cached summary with metadata.
type Entry struct {
	Key        string       `msgpack:"key" json:"key"`
	Summary    *lva.Summary `msgpack:"summary" json:"summary"`
	AccessedAt time.Time    `msgpack:"accessed_at" json:"accessed_at"`
	CreatedAt  time.Time    `msgpack:"created_at" json:"created_at"`
	Size       int          `msgpack:"size" json:"size"` // encoded size in bytes
}

// LRUCache is an in-memory LRU cache of liveness summaries.
type LRUCache struct {
	mu           sync.RWMutex
	items        map[string]*listItem
	lru          *list // most recent at front
	maxSize      int
	maxBytes     int64
	currentBytes int64
	onEvict      func(key string, s *lva.Summary)

	hits      int64
	misses    int64
	evictions int64
}

type listItem struct {
	Entry
	prev *listItem
	next *listItem
}

type list struct {
	head *listItem // most recently accessed
	tail *listItem // least recently accessed
	len  int
}

func newList() *list {
	return &list{}
}

func (l *list) unlink(item *listItem) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

func (l *list) pushFront(item *listItem) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

func (l *list) moveToFront(item *listItem) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

func (l *list) removeBack() *listItem {
	item := l.tail
	if item == nil {
		return nil
	}
	l.unlink(item)
	return item
}

// Options configures the LRU cache.
type Options struct {
	// MaxSize is the maximum number of summaries.
	// 0 means unlimited.
	MaxSize int

	// MaxBytes is the approximate maximum encoded size in bytes.
	// 0 means unlimited.
	MaxBytes int64

	// OnEvict is called when a summary is evicted for capacity.
	OnEvict func(key string, s *lva.Summary)
}

// New creates a new LRU cache with the given options.
func New(opts Options) *LRUCache {
	return &LRUCache{
		items:    make(map[string]*listItem),
		lru:      newList(),
		maxSize:  opts.MaxSize,
		maxBytes: opts.MaxBytes,
		onEvict:  opts.OnEvict,
	}
}

// Get retrieves the summary stored under a graph fingerprint.
func (c *LRUCache) Get(key string) (*lva.Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.misses++
		return nil, false
	}
	c.hits++
	item.AccessedAt = time.Now()
	c.lru.moveToFront(item)
	return item.Summary, true
}

// Lookup is Get with an error instead of a flag.
func (c *LRUCache) Lookup(key string) (*lva.Summary, error) {
	s, ok := c.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return s, nil
}

// Set stores a summary, evicting the least recently used entries when the
// cache is over its limits.
func (c *LRUCache) Set(key string, s *lva.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	size := estimateSize(s)

	if item, exists := c.items[key]; exists {
		c.currentBytes += int64(size - item.Size)
		item.Summary = s
		item.Size = size
		item.AccessedAt = now
		c.lru.moveToFront(item)
		c.evictIfNeeded()
		return
	}

	item := &listItem{
		Entry: Entry{
			Key:        key,
			Summary:    s,
			AccessedAt: now,
			CreatedAt:  now,
			Size:       size,
		},
	}
	c.items[key] = item
	c.lru.pushFront(item)
	c.currentBytes += int64(size)
	c.evictIfNeeded()
}

// Delete removes a fingerprint from the cache.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	c.lru.unlink(item)
	delete(c.items, key)
	c.currentBytes -= int64(item.Size)
}

// Clear removes all entries and resets statistics.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem)
	c.lru = newList()
	c.currentBytes = 0
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Len returns the number of entries in the cache.
func (c *LRUCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// CurrentBytes returns the approximate current size in bytes.
func (c *LRUCache) CurrentBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentBytes
}

// Keys returns the cached fingerprints, most recently used first.
func (c *LRUCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, c.lru.len)
	for item := c.lru.head; item != nil; item = item.next {
		keys = append(keys, item.Key)
	}
	return keys
}

func (c *LRUCache) evictIfNeeded() {
	for c.shouldEvict() {
		item := c.lru.removeBack()
		if item == nil {
			break
		}
		delete(c.items, item.Key)
		c.currentBytes -= int64(item.Size)
		c.evictions++

		if c.onEvict != nil {
			c.onEvict(item.Key, item.Summary)
		}
	}
}

func (c *LRUCache) shouldEvict() bool {
	if c.maxSize > 0 && c.lru.len > c.maxSize {
		return true
	}
	// A single oversized entry stays.
	if c.maxBytes > 0 && c.currentBytes > c.maxBytes && c.lru.len > 1 {
		return true
	}
	return false
}

// entries returns a snapshot, least recently used first, so that replaying
// it through restore reproduces the recency order.
func (c *LRUCache) entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, c.lru.len)
	for item := c.lru.tail; item != nil; item = item.prev {
		out = append(out, item.Entry)
	}
	return out
}

func (c *LRUCache) restore(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*listItem)
	c.lru = newList()
	c.currentBytes = 0
	for _, e := range entries {
		if e.Summary == nil {
			continue
		}
		if old, ok := c.items[e.Key]; ok {
			c.lru.unlink(old)
			c.currentBytes -= int64(old.Size)
		}
		item := &listItem{Entry: e}
		c.items[e.Key] = item
		c.lru.pushFront(item)
		c.currentBytes += int64(e.Size)
	}
	c.evictIfNeeded()
}

// Stats holds cache statistics.
type Stats struct {
	Length       int   `json:"length"`
	CurrentBytes int64 `json:"current_bytes"`
	HitCount     int64 `json:"hit_count"`
	MissCount    int64 `json:"miss_count"`
	Evictions    int64 `json:"evictions"`
}

// Stats returns the current cache statistics.
func (c *LRUCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Length:       len(c.items),
		CurrentBytes: c.currentBytes,
		HitCount:     c.hits,
		MissCount:    c.misses,
		Evictions:    c.evictions,
	}
}

// HitRate returns the fraction of lookups that found an entry.
func (c *LRUCache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

func estimateSize(s *lva.Summary) int {
	b, err := msgpack.Marshal(s)
	if err != nil {
		return 0
	}
	return len(b)
}
