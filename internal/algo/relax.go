package algo

import "github.com/atharv3903/towdispatch/internal/model"

// queueRelax is a FIFO label-correcting relaxation. A node is re-queued every
// time its distance improves while it is not already waiting in the queue.
func queueRelax(adj map[int64][]model.Edge, src int64) map[int64]model.Distance {
	dist := map[int64]model.Distance{src: 0}
	queued := map[int64]bool{src: true}
	queue := []int64{src}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		queued[u] = false

		du := dist[u]
		for _, e := range adj[u] {
			nd := du.Add(e.Weight)
			old, found := dist[e.NodeB]
			if !found {
				old = model.Unreachable
			}
			if nd < old {
				dist[e.NodeB] = nd
				if !queued[e.NodeB] {
					queue = append(queue, e.NodeB)
					queued[e.NodeB] = true
				}
			}
		}
	}
	return dist
}
