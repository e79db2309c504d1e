package algo

import "github.com/atharv3903/towdispatch/internal/model"

// Target is a unit waiting at a graph node.
type Target[U any] struct {
	Unit U
	Node int64
}

// Hit is a reached unit and its distance from the source.
type Hit[U any] struct {
	Distance model.Distance
	Unit     U
}

// NearestUnits measures the distance from source to every target in a single
// traversal. Units whose node was not reached are dropped; the rest keep the
// order of targets. Several units may share a node.
func NearestUnits[U any](g *Graph, source int64, targets []Target[U], policy CachePolicy) []Hit[U] {
	if len(targets) == 0 {
		return nil
	}
	dist := g.Distances(source, policy)
	hits := make([]Hit[U], 0, len(targets))
	for _, t := range targets {
		if d, ok := dist[t.Node]; ok {
			hits = append(hits, Hit[U]{Distance: d, Unit: t.Unit})
		}
	}
	return hits
}
