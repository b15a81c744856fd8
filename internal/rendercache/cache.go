// Package rendercache keeps render artifacts of unchanged blocks, keyed by
// structural hash and render configuration.
package rendercache

import (
	"errors"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/livefir/livemark/internal/mdtree"
)

// ErrInvalidCapacity is returned by New for a capacity below one
var ErrInvalidCapacity = errors.New("rendercache: capacity must be positive")

// Fingerprint identifies a render configuration. Equal configurations
// must produce equal fingerprints.
type Fingerprint uint64

// Fingerprinter is implemented by render configurations
type Fingerprinter interface {
	Fingerprint() Fingerprint
}

// Key addresses one artifact
type Key struct {
	Hash   mdtree.Hash
	Config Fingerprint
}

// KeyFor computes the key of node rendered under cfg
func KeyFor(node mdtree.Node, cfg Fingerprinter) Key {
	return Key{Hash: mdtree.HashNode(node), Config: cfg.Fingerprint()}
}

// Stats is a point in time view of cache activity
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	HitRate   float64 `json:"hit_rate"`
}

// Cache is a bounded least recently used store of artifacts of type A.
// It is safe for concurrent use.
type Cache[A any] struct {
	entries  *lru.Cache[Key, A]
	capacity int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a cache holding at most capacity artifacts
func New[A any](capacity int) (*Cache[A], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	c := &Cache[A]{capacity: capacity}
	entries, err := lru.NewWithEvict[Key, A](capacity, func(Key, A) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("rendercache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Get returns the artifact for node under cfg and marks it most recently used
func (c *Cache[A]) Get(node mdtree.Node, cfg Fingerprinter) (A, bool) {
	return c.Lookup(KeyFor(node, cfg))
}

// Set stores artifact for node under cfg, evicting the least recently used
// entries beyond capacity.
func (c *Cache[A]) Set(artifact A, node mdtree.Node, cfg Fingerprinter) {
	c.Store(KeyFor(node, cfg), artifact)
}

// Lookup is Get for callers that already hold the key
func (c *Cache[A]) Lookup(key Key) (A, bool) {
	artifact, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return artifact, ok
}

// Store is Set for callers that already hold the key
func (c *Cache[A]) Store(key Key, artifact A) {
	c.entries.Add(key, artifact)
}

// Contains reports whether key is cached without touching recency or counters
func (c *Cache[A]) Contains(key Key) bool {
	return c.entries.Contains(key)
}

// Len returns the number of cached artifacts
func (c *Cache[A]) Len() int {
	return c.entries.Len()
}

// Capacity returns the configured bound
func (c *Cache[A]) Capacity() int {
	return c.capacity
}

// Clear drops every entry and resets the counters
func (c *Cache[A]) Clear() {
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// HitRate returns hits / (hits + misses), or 0 before any lookup
func (c *Cache[A]) HitRate() float64 {
	return rate(c.hits.Load(), c.misses.Load())
}

// Stats returns the current counters
func (c *Cache[A]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	return Stats{
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		Size:      c.entries.Len(),
		Capacity:  c.capacity,
		HitRate:   rate(hits, misses),
	}
}

func rate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
