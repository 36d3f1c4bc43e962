package pageio

import (
	"container/list"
	"sync"

	"github.com/synerthink/dotdb/internal/dotmetrics"
)

// cacheEntry is a single slot in the LRU list.
type cacheEntry struct {
	id   PageID
	page *Page
}

// lruCache is a thread-safe, fixed-capacity LRU cache of decoded pages,
// adapted from the teacher's internal/page/cache.go (container/list +
// map[PageID]*list.Element), generalized from uint64 page ids tied to a
// B+-tree node shape to the generic *Page type used by this engine.
type lruCache struct {
	mu      sync.Mutex
	maxSize int
	index   map[PageID]*list.Element
	order   *list.List
	hits    uint64
	misses  uint64
}

func newLRUCache(maxSize int) *lruCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &lruCache{
		maxSize: maxSize,
		index:   make(map[PageID]*list.Element),
		order:   list.New(),
	}
}

// DefaultCacheSize bounds the number of decoded pages kept in memory.
const DefaultCacheSize = 256

func (c *lruCache) get(id PageID) *Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[id]; ok {
		c.order.MoveToFront(elem)
		c.hits++
		dotmetrics.PageCacheHits.Inc()
		return elem.Value.(*cacheEntry).page
	}
	c.misses++
	dotmetrics.PageCacheMisses.Inc()
	return nil
}

func (c *lruCache) put(id PageID, p *Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[id]; ok {
		elem.Value.(*cacheEntry).page = p
		c.order.MoveToFront(elem)
		return
	}
	if len(c.index) >= c.maxSize {
		back := c.order.Back()
		if back != nil {
			evicted := back.Value.(*cacheEntry)
			delete(c.index, evicted.id)
			c.order.Remove(back)
		}
	}
	elem := c.order.PushFront(&cacheEntry{id: id, page: p})
	c.index[id] = elem
}

func (c *lruCache) remove(id PageID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[id]; ok {
		delete(c.index, id)
		c.order.Remove(elem)
	}
}

// CacheStats mirrors the teacher's CacheStats for observability.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

func (c *lruCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: len(c.index)}
}
