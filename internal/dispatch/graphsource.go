package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/atharv3903/towdispatch/internal/algo"
	"github.com/atharv3903/towdispatch/internal/cache"
	"github.com/atharv3903/towdispatch/internal/domain"
	"github.com/atharv3903/towdispatch/internal/logger"
	"github.com/atharv3903/towdispatch/internal/metrics"
	"github.com/atharv3903/towdispatch/internal/model"
)

// MapRepository loads the road network of one area.
type MapRepository interface {
	Nodes(ctx context.Context, areaID int64) ([]model.Node, error)
	// Edges returns each road segment of the area once.
	Edges(ctx context.Context, areaID int64) ([]model.Edge, error)
}

// GraphSource hands out the graph of an area.
type GraphSource interface {
	Graph(ctx context.Context, areaID int64) (*algo.Graph, error)
	Invalidate(areaID int64)
	Clear()
	Stats() cache.Stats
}

type builder struct {
	maps        MapRepository
	alg         algo.Algorithm
	sourceLimit int
	log         logger.Logger
	metrics     metrics.Recorder
}

// build loads the area and returns a populated graph. An area without nodes
// does not exist. Edges with a negative weight are skipped.
func (b builder) build(ctx context.Context, areaID int64) (*algo.Graph, error) {
	start := time.Now()
	nodes, err := b.maps.Nodes(ctx, areaID)
	if err != nil {
		return nil, classify(err, "load nodes of area %d", areaID)
	}
	if len(nodes) == 0 {
		return nil, domain.NewErrorf(domain.ErrNotFound, "area %d not found", areaID)
	}
	edges, err := b.maps.Edges(ctx, areaID)
	if err != nil {
		return nil, classify(err, "load edges of area %d", areaID)
	}

	g := algo.NewGraph(
		algo.WithAlgorithm(b.alg),
		algo.WithSourceCacheLimit(b.sourceLimit),
		algo.WithObserver(func(a algo.Algorithm, reached int, took time.Duration) {
			b.metrics.RecordRelaxation(string(a), reached, took)
		}),
	)
	for _, n := range nodes {
		g.AddNode(n)
	}
	skipped := 0
	for _, e := range edges {
		if e.Weight < 0 {
			skipped++
			continue
		}
		g.AddEdge(e)
	}
	if skipped > 0 {
		b.log.Warnf("area %d: skipped %d edges with negative weight", areaID, skipped)
	}

	took := time.Since(start)
	b.metrics.RecordGraphBuild(len(nodes), len(edges)-skipped, took)
	b.log.Debugw("graph built", map[string]any{
		"area_id": areaID,
		"nodes":   len(nodes),
		"edges":   len(edges) - skipped,
		"took_ms": took.Milliseconds(),
	})
	return g, nil
}

// freshSource builds a new graph on every call. Nothing is shared between
// callers.
type freshSource struct {
	builder
}

func (s freshSource) Graph(ctx context.Context, areaID int64) (*algo.Graph, error) {
	return s.build(ctx, areaID)
}

func (freshSource) Invalidate(int64)   {}
func (freshSource) Clear()             {}
func (freshSource) Stats() cache.Stats { return cache.Stats{} }

// sharedSource keeps built graphs in an LRU keyed by area and epoch.
// Concurrent misses on the same key share one build.
type sharedSource struct {
	builder
	cache *cache.GraphCache
	group singleflight.Group
}

func (s *sharedSource) Graph(ctx context.Context, areaID int64) (*algo.Graph, error) {
	key := s.cache.Key(areaID)
	if g, ok := s.cache.Get(key); ok {
		s.metrics.RecordGraphCache(true)
		return g, nil
	}
	s.metrics.RecordGraphCache(false)

	v, err, _ := s.group.Do(fmt.Sprintf("%d/%d", key.Area, key.Epoch), func() (any, error) {
		g, err := s.build(context.WithoutCancel(ctx), areaID)
		if err != nil {
			return nil, err
		}
		s.cache.Put(key, g)
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*algo.Graph), nil
}

func (s *sharedSource) Invalidate(areaID int64) {
	s.cache.Invalidate(areaID)
	s.log.Infof("area %d invalidated", areaID)
}

func (s *sharedSource) Clear() {
	s.cache.Clear()
	s.log.Infof("graph cache cleared")
}

func (s *sharedSource) Stats() cache.Stats { return s.cache.Stats() }
