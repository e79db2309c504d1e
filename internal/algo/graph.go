package algo

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atharv3903/towdispatch/internal/model"
)

// Algorithm selects the single-source relaxation used by a Graph.
type Algorithm string

const (
	// AlgorithmQueue is a FIFO label-correcting relaxation. It is the default.
	AlgorithmQueue Algorithm = "queue"
	// AlgorithmDijkstra settles nodes in distance order using a binary heap.
	AlgorithmDijkstra Algorithm = "dijkstra"
)

func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "", AlgorithmQueue:
		return AlgorithmQueue, nil
	case AlgorithmDijkstra:
		return AlgorithmDijkstra, nil
	}
	return "", fmt.Errorf("unknown algorithm %q", s)
}

// CachePolicy tells Distances whether to read and fill the per-source cache.
type CachePolicy int

const (
	UseCache CachePolicy = iota
	BypassCache
)

// Observer is called after every full relaxation.
type Observer func(alg Algorithm, reached int, took time.Duration)

type Option func(*Graph)

func WithAlgorithm(a Algorithm) Option {
	return func(g *Graph) {
		if a != "" {
			g.alg = a
		}
	}
}

func WithObserver(o Observer) Option {
	return func(g *Graph) { g.observe = o }
}

// WithSourceCacheLimit bounds the distance cache to the n most recently used
// sources. Zero or less leaves it unbounded.
func WithSourceCacheLimit(n int) Option {
	return func(g *Graph) { g.cacheLimit = n }
}

// Reached is a target and its distance from the query source.
type Reached struct {
	Distance model.Distance
	Node     int64
}

// Graph is an in-memory road network with a per-source distance cache.
//
// Nodes and edges must all be added before the first query. After that the
// adjacency is read-only and the graph may be shared between goroutines; only
// the distance cache mutates, under mu.
type Graph struct {
	nodes   map[int64]model.Node
	adj     map[int64][]model.Edge
	edges   int
	alg     Algorithm
	observe Observer

	mu          sync.Mutex
	cache       map[int64]*list.Element
	lru         *list.List
	cacheLimit  int
	relaxations atomic.Int64
}

type sourceEntry struct {
	src  int64
	dist map[int64]model.Distance
}

func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		nodes: make(map[int64]model.Node),
		adj:   make(map[int64][]model.Edge),
		alg:   AlgorithmQueue,
		cache: make(map[int64]*list.Element),
		lru:   list.New(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// AddNode inserts or overwrites a node by id.
func (g *Graph) AddNode(n model.Node) {
	g.nodes[n.ID] = n
}

// AddEdge registers e and its reverse. Each road segment must be added once;
// adding it twice leaves distances unchanged but doubles the relaxation work.
func (g *Graph) AddEdge(e model.Edge) {
	g.adj[e.NodeA] = append(g.adj[e.NodeA], e)
	r := e.Reverse()
	g.adj[r.NodeA] = append(g.adj[r.NodeA], r)
	g.edges++
}

func (g *Graph) Node(id int64) (model.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Outgoing returns the adjacency of id, forward and synthesized entries alike.
func (g *Graph) Outgoing(id int64) []model.Edge {
	return g.adj[id]
}

func (g *Graph) Algorithm() Algorithm { return g.alg }

// Stats returns the number of nodes, logical edges and cached sources.
func (g *Graph) Stats() (nodes, edges, cachedSources int) {
	g.mu.Lock()
	cachedSources = len(g.cache)
	g.mu.Unlock()
	return len(g.nodes), g.edges, cachedSources
}

// Relaxations returns how many full relaxations this graph has run.
func (g *Graph) Relaxations() int64 {
	return g.relaxations.Load()
}

// ShortestDistance returns the distance from src to dst, or model.Unreachable.
// The full table for src is cached on first use.
func (g *Graph) ShortestDistance(src, dst int64) model.Distance {
	d, ok := g.Distances(src, UseCache)[dst]
	if !ok {
		return model.Unreachable
	}
	return d
}

// NearestAmong runs one relaxation from src and returns the distance of every
// target that was reached, in targets order. Unreached targets are omitted.
// The cache is neither read nor written.
func (g *Graph) NearestAmong(src int64, targets []int64) []Reached {
	return g.reach(src, targets, BypassCache)
}

func (g *Graph) reach(src int64, targets []int64, policy CachePolicy) []Reached {
	dist := g.Distances(src, policy)
	res := make([]Reached, 0, len(targets))
	for _, t := range targets {
		if d, ok := dist[t]; ok {
			res = append(res, Reached{Distance: d, Node: t})
		}
	}
	return res
}

// Distances returns the single-source table for src: every reachable node
// mapped to its distance. Unreached nodes have no entry. The returned map may
// be shared with the cache and must not be modified.
func (g *Graph) Distances(src int64, policy CachePolicy) map[int64]model.Distance {
	if policy == UseCache {
		if d, ok := g.cached(src); ok {
			return d
		}
	}

	d := g.relax(src)

	if policy == UseCache {
		d = g.store(src, d)
	}
	return d
}

func (g *Graph) cached(src int64) (map[int64]model.Distance, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	el, ok := g.cache[src]
	if !ok {
		return nil, false
	}
	g.lru.MoveToFront(el)
	return el.Value.(sourceEntry).dist, true
}

// store caches d for src unless a concurrent caller got there first, in which
// case the earlier table is returned. The least recently used source is
// dropped once the limit is exceeded.
func (g *Graph) store(src int64, d map[int64]model.Distance) map[int64]model.Distance {
	g.mu.Lock()
	defer g.mu.Unlock()
	if el, ok := g.cache[src]; ok {
		g.lru.MoveToFront(el)
		return el.Value.(sourceEntry).dist
	}
	g.cache[src] = g.lru.PushFront(sourceEntry{src: src, dist: d})
	if g.cacheLimit > 0 && g.lru.Len() > g.cacheLimit {
		tail := g.lru.Back()
		delete(g.cache, tail.Value.(sourceEntry).src)
		g.lru.Remove(tail)
	}
	return d
}

func (g *Graph) relax(src int64) map[int64]model.Distance {
	start := time.Now()
	var dist map[int64]model.Distance
	switch g.alg {
	case AlgorithmDijkstra:
		dist = dijkstra(g.adj, src)
	default:
		dist = queueRelax(g.adj, src)
	}
	g.relaxations.Add(1)
	if g.observe != nil {
		g.observe(g.alg, len(dist), time.Since(start))
	}
	return dist
}
