// Package cache holds compiled artifacts keyed by what determines them:
// the backend, the tree kind, the tree's canonical shape, and the schema
// version. Compilation is deterministic, so equal keys always map to equal
// artifacts.
//
// Eviction strategy: when the cache reaches its capacity limit the entire
// map is replaced. Workloads repeat a small number of distinct query
// shapes, so tracking individual entry ages buys nothing.
package cache

import (
	"bytes"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultMaxEntries is the capacity used when New is given zero.
const DefaultMaxEntries = 256

// Kind distinguishes filter artifacts from order artifacts.
type Kind uint8

const (
	KindFilter Kind = iota + 1
	KindOrder
)

func (k Kind) String() string {
	switch k {
	case KindFilter:
		return "filter"
	case KindOrder:
		return "order"
	default:
		return "unknown"
	}
}

// Key identifies one compilation.
type Key struct {
	Backend       string
	Kind          Kind
	Shape         []byte // canonical encoding of the tree
	SchemaVersion string
}

// Sum hashes the key. Fields are length-prefixed so adjacent fields cannot
// run together.
func (k Key) Sum() uint64 {
	d := xxhash.New()
	writeField(d, []byte(k.Backend))
	d.Write([]byte{byte(k.Kind)}) //nolint:errcheck // Digest writes never fail
	writeField(d, k.Shape)
	writeField(d, []byte(k.SchemaVersion))
	return d.Sum64()
}

func writeField(d *xxhash.Digest, b []byte) {
	var n [8]byte
	size := uint64(len(b))
	for i := range n {
		n[i] = byte(size >> (8 * i))
	}
	d.Write(n[:]) //nolint:errcheck // Digest writes never fail
	d.Write(b)    //nolint:errcheck
}

func (k Key) equal(o Key) bool {
	return k.Backend == o.Backend &&
		k.Kind == o.Kind &&
		k.SchemaVersion == o.SchemaVersion &&
		bytes.Equal(k.Shape, o.Shape)
}

type entry struct {
	key   Key
	value any
}

// Stats reports cache activity.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
	Resets  uint64
}

// Cache is safe for concurrent use. Cached values are shared between
// callers and must not be mutated.
type Cache struct {
	mu    sync.RWMutex
	items map[uint64]entry
	max   int

	hits, misses, resets uint64
}

// New creates a cache holding at most maxEntries entries.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{items: make(map[uint64]entry, maxEntries), max: maxEntries}
}

// Get returns the artifact stored for key.
func (c *Cache) Get(key Key) (any, bool) {
	sum := key.Sum()

	c.mu.RLock()
	e, ok := c.items[sum]
	c.mu.RUnlock()

	// A hash collision between different keys counts as a miss.
	hit := ok && e.key.equal(key)

	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if !hit {
		return nil, false
	}
	return e.value, true
}

// Put stores value under key.
func (c *Cache) Put(key Key, value any) {
	shape := append([]byte(nil), key.Shape...)
	key.Shape = shape

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= c.max {
		// Evict everything and start fresh rather than tracking individual entry ages.
		c.items = make(map[uint64]entry, c.max)
		c.resets++
	}
	c.items[key.Sum()] = entry{key: key, value: value}
}

// Len returns the number of cached artifacts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.items), Resets: c.resets}
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[uint64]entry, c.max)
}
