package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "towdispatch"

// PromRecorder records events in Prometheus metrics.
type PromRecorder struct {
	dispatches  *prometheus.CounterVec
	dispatchDur prometheus.Histogram
	relaxations *prometheus.CounterVec
	relaxDur    *prometheus.HistogramVec
	reached     prometheus.Histogram
	buildDur    prometheus.Histogram
	graphSize   *prometheus.GaugeVec
	graphCache  *prometheus.CounterVec
}

// NewPromRecorder registers the metrics on reg. A nil registerer defaults to
// the global Prometheus registerer. Collectors that are already registered
// are reused.
func NewPromRecorder(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PromRecorder{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Nearest tow truck lookups by outcome",
		}, []string{"outcome"}),
		dispatchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent selecting a tow truck, storage included",
			Buckets:   prometheus.DefBuckets,
		}),
		relaxations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relaxations_total",
			Help:      "Full single-source relaxations run",
		}, []string{"algorithm"}),
		relaxDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relaxation_duration_seconds",
			Help:      "Time spent in one single-source relaxation",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"algorithm"}),
		reached: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relaxation_reached_nodes",
			Help:      "Nodes reached by one relaxation",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		buildDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_build_duration_seconds",
			Help:      "Time spent loading and building an area graph",
			Buckets:   prometheus.DefBuckets,
		}),
		graphSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_last_build_size",
			Help:      "Size of the most recently built area graph",
		}, []string{"kind"}),
		graphCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_cache_total",
			Help:      "Shared graph cache lookups by result",
		}, []string{"result"}),
	}

	var err error
	if r.dispatches, err = register(reg, r.dispatches); err != nil {
		return nil, err
	}
	if r.dispatchDur, err = register(reg, r.dispatchDur); err != nil {
		return nil, err
	}
	if r.relaxations, err = register(reg, r.relaxations); err != nil {
		return nil, err
	}
	if r.relaxDur, err = register(reg, r.relaxDur); err != nil {
		return nil, err
	}
	if r.reached, err = register(reg, r.reached); err != nil {
		return nil, err
	}
	if r.buildDur, err = register(reg, r.buildDur); err != nil {
		return nil, err
	}
	if r.graphSize, err = register(reg, r.graphSize); err != nil {
		return nil, err
	}
	if r.graphCache, err = register(reg, r.graphCache); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (r *PromRecorder) RecordDispatch(outcome string, took time.Duration) {
	r.dispatches.WithLabelValues(outcome).Inc()
	r.dispatchDur.Observe(took.Seconds())
}

func (r *PromRecorder) RecordRelaxation(algorithm string, reached int, took time.Duration) {
	r.relaxations.WithLabelValues(algorithm).Inc()
	r.relaxDur.WithLabelValues(algorithm).Observe(took.Seconds())
	r.reached.Observe(float64(reached))
}

func (r *PromRecorder) RecordGraphBuild(nodes, edges int, took time.Duration) {
	r.buildDur.Observe(took.Seconds())
	r.graphSize.WithLabelValues("nodes").Set(float64(nodes))
	r.graphSize.WithLabelValues("edges").Set(float64(edges))
}

func (r *PromRecorder) RecordGraphCache(hit bool) {
	label := "miss"
	if hit {
		label = "hit"
	}
	r.graphCache.WithLabelValues(label).Inc()
}

var _ Recorder = (*PromRecorder)(nil)
