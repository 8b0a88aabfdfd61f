package rcache

import (
	"sync"
	"time"
)

const lruNil = -1

// nowFunc is overridden in tests to control expiry deterministically.
var nowFunc = time.Now

// lruNode is one slab slot: either a live entry linked into the circular
// most-recently-used list, or a free slot linked into freeList via next.
// Indices, not pointers, link the list (SPEC_FULL.md §9's arena design),
// which keeps the whole structure free of internal aliasing.
type lruNode struct {
	key        CacheKey
	answer     Answer
	hits       uint64
	prev, next int
	inUse      bool
}

// LRU is a bounded cache backed by a hash index into a slab of intrusive
// list nodes forming a circular doubly-linked list around a sentinel at
// index 0. The sentinel's next is the most-recently-used node; its prev is
// the least-recently-used (eviction-candidate) node.
type LRU struct {
	mu      sync.Mutex
	maxSize int

	nodes    []lruNode
	index    map[CacheKey]int
	freeHead int

	hits, misses, evictions uint64
}

// NewLRU creates an LRU cache bounded at maxSize entries (minimum 1).
func NewLRU(maxSize int) *LRU {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &LRU{
		maxSize:  maxSize,
		index:    make(map[CacheKey]int, maxSize),
		freeHead: lruNil,
	}
	c.nodes = append(c.nodes, lruNode{prev: 0, next: 0}) // sentinel at index 0
	return c
}

func (c *LRU) sentinel() *lruNode { return &c.nodes[0] }

func (c *LRU) unlink(i int) {
	n := &c.nodes[i]
	c.nodes[n.prev].next = n.next
	c.nodes[n.next].prev = n.prev
}

func (c *LRU) pushFront(i int) {
	s := c.sentinel()
	head := s.next
	c.nodes[i].prev = 0
	c.nodes[i].next = head
	c.nodes[head].prev = i
	s.next = i
}

func (c *LRU) moveToFront(i int) {
	if c.sentinel().next == i {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}

// allocate returns the index of a free node, growing the slab or recycling
// a freed slot as needed. It never evicts; the caller evicts first if full.
func (c *LRU) allocate() int {
	if c.freeHead != lruNil {
		i := c.freeHead
		c.freeHead = c.nodes[i].next
		return i
	}
	c.nodes = append(c.nodes, lruNode{})
	return len(c.nodes) - 1
}

func (c *LRU) release(i int) {
	c.nodes[i] = lruNode{next: c.freeHead}
	c.freeHead = i
}

// evictTail removes the least-recently-used node until the index is under
// maxSize, returning the count evicted.
func (c *LRU) evictTail() int {
	evicted := 0
	for len(c.index) >= c.maxSize {
		tail := c.sentinel().prev
		if tail == 0 {
			break // list empty, nothing left to evict
		}
		delete(c.index, c.nodes[tail].key)
		c.unlink(tail)
		c.release(tail)
		evicted++
	}
	return evicted
}

// Get returns the cached Answer for key if present and unexpired, moving
// the node to the front and incrementing its per-entry hit counter.
func (c *LRU) Get(key CacheKey) (Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		c.misses++
		return Answer{}, false
	}
	n := &c.nodes[i]
	if n.answer.Expired(nowFunc()) {
		delete(c.index, key)
		c.unlink(i)
		c.release(i)
		c.evictions++
		c.misses++
		return Answer{}, false
	}
	c.moveToFront(i)
	n.hits++
	c.hits++
	return n.answer, true
}

// Put replaces an existing node (moving it to the front) or inserts a new
// one, evicting least-recently-used tail nodes first if at capacity.
func (c *LRU) Put(key CacheKey, answer Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[key]; ok {
		c.nodes[i].answer = answer
		c.moveToFront(i)
		return
	}
	c.evictions += uint64(c.evictTail())
	i := c.allocate()
	c.nodes[i] = lruNode{key: key, answer: answer, inUse: true}
	c.index[key] = i
	c.pushFront(i)
}

// Flush removes one key, or every entry if key is nil.
func (c *LRU) Flush(key *CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == nil {
		c.index = make(map[CacheKey]int, c.maxSize)
		c.nodes = c.nodes[:1]
		c.freeHead = lruNil
		s := c.sentinel()
		s.prev, s.next = 0, 0
		return
	}
	if i, ok := c.index[*key]; ok {
		delete(c.index, *key)
		c.unlink(i)
		c.release(i)
	}
}

// Stats returns a consistent snapshot under the cache's lock.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Size: len(c.index)}
}

var _ Cache = (*LRU)(nil)
