package algo

import (
	"container/heap"

	"github.com/atharv3903/towdispatch/internal/model"
)

type pqItem struct {
	node int64
	dist model.Distance
}

type pq []pqItem

func (p pq) Len() int           { return len(p) }
func (p pq) Less(i, j int) bool { return p[i].dist < p[j].dist }
func (p pq) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

func (p *pq) Push(x any) {
	*p = append(*p, x.(pqItem))
}

func (p *pq) Pop() any {
	old := *p
	n := len(old)
	item := old[n-1]
	*p = old[:n-1]
	return item
}

// dijkstra computes the full single-source table. Weights must be
// non-negative. Stale heap entries are skipped instead of decreased in place.
func dijkstra(adj map[int64][]model.Edge, src int64) map[int64]model.Distance {
	dist := map[int64]model.Distance{src: 0}
	done := map[int64]bool{}
	pq := &pq{}
	heap.Push(pq, pqItem{node: src, dist: 0})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		u := cur.node
		if done[u] || cur.dist > dist[u] {
			continue
		}
		done[u] = true

		for _, e := range adj[u] {
			nd := cur.dist.Add(e.Weight)
			old, found := dist[e.NodeB]
			if !found {
				old = model.Unreachable
			}
			if nd < old {
				dist[e.NodeB] = nd
				heap.Push(pq, pqItem{node: e.NodeB, dist: nd})
			}
		}
	}
	return dist
}
