package cache

import (
	"container/list"
	"sync"

	"github.com/atharv3903/towdispatch/internal/algo"
)

// defaultGraphCapacity is the default number of area graphs the cache will hold.
const defaultGraphCapacity = 64

// GraphKey identifies one build of an area graph.
type GraphKey struct {
	Area  int64
	Epoch uint64
}

type graphEntry struct {
	key GraphKey
	val *algo.Graph
}

// GraphCache is a bounded LRU of built area graphs.
// It's safe for concurrent use.
type GraphCache struct {
	mu       sync.Mutex
	m        map[GraphKey]*list.Element
	ll       *list.List
	capacity int
	epochs   *Epochs
	// stats
	puts      int
	gets      int
	hits      int
	evictions int
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Gets      int `json:"gets"`
	Hits      int `json:"hits"`
	Puts      int `json:"puts"`
	Evictions int `json:"evictions"`
	Entries   int `json:"entries"`
}

// NewGraphCache returns an LRU graph cache. A non-positive capacity selects
// the default.
func NewGraphCache(capacity int) *GraphCache {
	if capacity <= 0 {
		capacity = defaultGraphCapacity
	}
	return &GraphCache{
		m:        make(map[GraphKey]*list.Element, capacity),
		ll:       list.New(),
		capacity: capacity,
		epochs:   NewEpochs(),
	}
}

// Key returns the key under which the current graph of areaID is stored.
func (c *GraphCache) Key(areaID int64) GraphKey {
	return GraphKey{Area: areaID, Epoch: c.epochs.Epoch(areaID)}
}

// Get returns the graph stored under key. It updates LRU position on hit.
func (c *GraphCache) Get(key GraphKey) (*algo.Graph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gets++
	if el, ok := c.m[key]; ok {
		c.hits++
		c.ll.MoveToFront(el)
		return el.Value.(graphEntry).val, true
	}
	return nil, false
}

// Put stores g under key. Keys from an older epoch are dropped silently so a
// build that raced with an invalidation is never published.
func (c *GraphCache) Put(key GraphKey, g *algo.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Epochs only move under c.mu, so the check holds until the insert.
	if key.Epoch != c.epochs.Epoch(key.Area) {
		return
	}

	if el, ok := c.m[key]; ok {
		el.Value = graphEntry{key: key, val: g}
		c.ll.MoveToFront(el)
		c.puts++
		return
	}

	el := c.ll.PushFront(graphEntry{key: key, val: g})
	c.m[key] = el
	c.puts++

	if c.ll.Len() > c.capacity {
		if tail := c.ll.Back(); tail != nil {
			c.removeElement(tail)
			c.evictions++
		}
	}
}

// Invalidate bumps the epoch of areaID and drops its stored graphs.
func (c *GraphCache) Invalidate(areaID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epochs.Bump(areaID)
	for key, el := range c.m {
		if key.Area == areaID {
			c.removeElement(el)
		}
	}
}

// Clear drops every graph and resets the stats.
func (c *GraphCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epochs.BumpAll()
	c.m = make(map[GraphKey]*list.Element, c.capacity)
	c.ll.Init()
	c.puts = 0
	c.gets = 0
	c.hits = 0
	c.evictions = 0
}

func (c *GraphCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Gets:      c.gets,
		Hits:      c.hits,
		Puts:      c.puts,
		Evictions: c.evictions,
		Entries:   c.ll.Len(),
	}
}

func (c *GraphCache) removeElement(el *list.Element) {
	delete(c.m, el.Value.(graphEntry).key)
	c.ll.Remove(el)
}
