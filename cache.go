package symcanon

import (
	"sync"
	"sync/atomic"

	"github.com/golang/groupcache/lru"
)

// constGeneration changes whenever a Const leaf is reassigned. Cached normal
// forms from an older generation are ignored.
var constGeneration atomic.Uint64

// normalFormCache maps a node to its canonical form. Entries are keyed by the
// node's structural hash and verified with sameShape on lookup.
type normalFormCache struct {
	mu     sync.Mutex
	lru    *lru.Cache
	hits   uint64
	misses uint64
}

type cacheEntry struct {
	src    *Node
	result *Node
	gen    uint64
}

func newNormalFormCache(size int) *normalFormCache {
	if size <= 0 {
		return nil
	}
	return &normalFormCache{lru: lru.New(size)}
}

func (c *normalFormCache) get(n *Node) (*Node, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.lru.Get(n.hash); ok {
		e := v.(cacheEntry)
		if e.gen == constGeneration.Load() && sameShape(e.src, n) {
			c.hits++
			return e.result, true
		}
	}
	c.misses++
	return nil, false
}

func (c *normalFormCache) put(n, result *Node) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lru.Add(n.hash, cacheEntry{src: n, result: result, gen: constGeneration.Load()})
	c.mu.Unlock()
}

func (c *normalFormCache) stats() (hits, misses uint64, entries int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.lru.Len()
}

// Purge drops every cached normal form.
func (c *Canonicalizer) Purge() {
	if c.cache == nil {
		return
	}
	c.cache.mu.Lock()
	c.cache.lru.Clear()
	c.cache.mu.Unlock()
}
