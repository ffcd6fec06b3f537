package sentiment

import (
	"container/list"
	"sync"

	"github.com/leon-madara/resona-core/internal/records"
)

// lruCache is a bounded, process-wide cache keyed by text hash. It is
// guarded by a single mutex per §5 ("Sentiment cache: LRU, process-wide,
// guarded by a single mutex; writes are fast"). No third-party LRU package
// appears anywhere in the example corpus, so this is hand-rolled container/
// list + map, the idiomatic stdlib shape for a bounded LRU.
type lruCache struct {
	mu       sync.Mutex
	maxSize  int
	order    *list.List
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value records.SentimentScore
}

func newLRUCache(maxSize int) *lruCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &lruCache{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (records.SentimentScore, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return records.SentimentScore{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *lruCache) put(key string, value records.SentimentScore) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, value: value})
	c.entries[key] = el

	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
