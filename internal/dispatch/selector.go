package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atharv3903/towdispatch/internal/algo"
	"github.com/atharv3903/towdispatch/internal/cache"
	"github.com/atharv3903/towdispatch/internal/domain"
	"github.com/atharv3903/towdispatch/internal/logger"
	"github.com/atharv3903/towdispatch/internal/metrics"
	"github.com/atharv3903/towdispatch/internal/model"
)

// OrderDirectory resolves an order to its node and area.
type OrderDirectory interface {
	Order(ctx context.Context, id int64) (model.Order, error)
}

// TruckDirectory lists the available tow trucks of an area.
type TruckDirectory interface {
	AvailableTrucks(ctx context.Context, areaID int64) ([]model.TowTruck, error)
}

// Outcome describes how a dispatch ended.
type Outcome string

const (
	Assigned     Outcome = metrics.OutcomeAssigned
	NoCandidates Outcome = metrics.OutcomeNoCandidates
	TooFar       Outcome = metrics.OutcomeTooFar
)

// Result is the answer to a nearest tow truck lookup. Truck is nil unless
// Outcome is Assigned.
type Result struct {
	DispatchID string
	OrderID    int64
	AreaID     int64
	Outcome    Outcome
	Truck      *model.TowTruck
	Distance   model.Distance
	Candidates int
	Reached    int
}

func (r Result) Found() bool { return r.Outcome == Assigned }

// Selector picks the nearest available tow truck for an order.
type Selector struct {
	orders      OrderDirectory
	trucks      TruckDirectory
	graphs      GraphSource
	maxDistance model.Distance
	policy      algo.CachePolicy
	log         logger.Logger
	metrics     metrics.Recorder
}

// NewSelector wires a Selector. A nil logger or recorder disables that output.
func NewSelector(cfg Config, orders OrderDirectory, trucks TruckDirectory, maps MapRepository, log logger.Logger, rec metrics.Recorder) (*Selector, error) {
	if orders == nil || trucks == nil || maps == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewSelector")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	alg, _ := algo.ParseAlgorithm(cfg.Algorithm)
	b := builder{maps: maps, alg: alg, sourceLimit: cfg.SourceCacheCapacity, log: log, metrics: rec}

	s := &Selector{
		orders:      orders,
		trucks:      trucks,
		maxDistance: cfg.Threshold(),
		log:         log,
		metrics:     rec,
	}
	switch cfg.GraphMode {
	case GraphShared:
		s.graphs = &sharedSource{builder: b, cache: cache.NewGraphCache(cfg.GraphCacheCapacity)}
		s.policy = algo.UseCache
	default:
		s.graphs = freshSource{builder: b}
		s.policy = algo.BypassCache
	}
	return s, nil
}

// NearestAvailable returns the available tow truck closest to the order by
// road distance. Running out of candidates, or a nearest candidate beyond the
// maximum distance, is a normal Result with a nil Truck. Errors are either
// domain.ErrNotFound (order or area) or domain.ErrInternal.
func (s *Selector) NearestAvailable(ctx context.Context, orderID int64) (Result, error) {
	start := time.Now()
	id := uuid.NewString()
	log := s.log.With("dispatch_id", id)

	res, err := s.nearest(ctx, orderID, log)
	res.DispatchID = id
	res.OrderID = orderID

	outcome := string(res.Outcome)
	if err != nil {
		outcome = metrics.OutcomeError
		if errors.Is(err, domain.ErrNotFound) {
			outcome = metrics.OutcomeNotFound
		}
	}
	took := time.Since(start)
	s.metrics.RecordDispatch(outcome, took)

	fields := map[string]any{
		"order_id":   orderID,
		"area_id":    res.AreaID,
		"outcome":    outcome,
		"candidates": res.Candidates,
		"reached":    res.Reached,
		"took_ms":    took.Milliseconds(),
	}
	if res.Truck != nil {
		fields["tow_truck_id"] = res.Truck.ID
		fields["distance"] = int64(res.Distance)
	}
	log.Debugw("dispatch", fields)
	if err != nil && outcome == metrics.OutcomeError {
		log.Errorf("dispatch for order %d failed: %v", orderID, err)
	}
	return res, err
}

func (s *Selector) nearest(ctx context.Context, orderID int64, log logger.Logger) (Result, error) {
	order, err := s.orders.Order(ctx, orderID)
	if err != nil {
		return Result{}, classify(err, "load order %d", orderID)
	}
	res := Result{AreaID: order.AreaID}

	trucks, err := s.trucks.AvailableTrucks(ctx, order.AreaID)
	if err != nil {
		return res, classify(err, "load tow trucks of area %d", order.AreaID)
	}

	g, err := s.graphs.Graph(ctx, order.AreaID)
	if err != nil {
		return res, err
	}
	if _, ok := g.Node(order.NodeID); !ok {
		log.Warnf("order %d node %d is not in the graph of area %d", orderID, order.NodeID, order.AreaID)
	}

	targets := make([]algo.Target[model.TowTruck], 0, len(trucks))
	for _, t := range trucks {
		if t.AreaID != order.AreaID || t.Status != model.TruckAvailable {
			continue
		}
		targets = append(targets, algo.Target[model.TowTruck]{Unit: t, Node: t.NodeID})
	}
	res.Candidates = len(targets)

	hits := algo.NearestUnits(g, order.NodeID, targets, s.policy)
	res.Reached = len(hits)
	log.Debugw("relaxed", map[string]any{
		"algorithm":  string(g.Algorithm()),
		"source":     order.NodeID,
		"candidates": res.Candidates,
		"reached":    res.Reached,
	})

	best, ok := nearestHit(hits)
	switch {
	case !ok:
		res.Outcome = NoCandidates
	case best.Distance > s.maxDistance:
		res.Outcome = TooFar
		res.Distance = best.Distance
	default:
		truck := best.Unit
		res.Outcome = Assigned
		res.Truck = &truck
		res.Distance = best.Distance
	}
	return res, nil
}

// nearestHit returns the hit with the smallest distance. Among equal
// distances the first one wins.
func nearestHit[U any](hits []algo.Hit[U]) (algo.Hit[U], bool) {
	if len(hits) == 0 {
		return algo.Hit[U]{}, false
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h.Distance < best.Distance {
			best = h
		}
	}
	return best, true
}

// Distance returns the road distance between two nodes of an area through
// the cached single-pair path.
func (s *Selector) Distance(ctx context.Context, areaID, src, dst int64) (model.Distance, error) {
	g, err := s.graphs.Graph(ctx, areaID)
	if err != nil {
		return model.Unreachable, err
	}
	return g.ShortestDistance(src, dst), nil
}

// Invalidate forgets the shared graph of areaID. It is a no-op when graphs
// are built per request.
func (s *Selector) Invalidate(areaID int64) { s.graphs.Invalidate(areaID) }

func (s *Selector) ClearGraphs() { s.graphs.Clear() }

func (s *Selector) GraphStats() cache.Stats { return s.graphs.Stats() }

// classify keeps the code of a domain error and marks anything else Internal.
func classify(err error, format string, a ...any) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return domain.WrapErrorf(err, de.Code(), format, a...)
	}
	return domain.WrapErrorf(err, domain.ErrInternal, format, a...)
}
