package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/atharv3903/towdispatch/internal/cache"
)

// Result summarizes one closed-loop run. Latencies are in milliseconds.
type Result struct {
	Workers    int
	Total      int64
	Errors     int64
	Dispatches int64
	None       int64
	AvgLatency float64
	P50        float64
	P95        float64
	P99        float64
	Throughput float64
	Graph      cache.Stats
}

// NoneRate is the share of successful dispatches that found no truck.
func (r Result) NoneRate() float64 {
	if r.Dispatches == 0 {
		return 0
	}
	return float64(r.None) / float64(r.Dispatches) * 100
}

func (r Result) GraphHitRate() float64 {
	if r.Graph.Gets == 0 {
		return 0
	}
	return float64(r.Graph.Hits) / float64(r.Graph.Gets) * 100
}

func summarize(workers int, elapsed time.Duration, t *tally) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	res := Result{
		Workers:    workers,
		Total:      t.total,
		Errors:     t.errors,
		Dispatches: t.dispatch,
		None:       t.none,
		AvgLatency: avgMillis(t.latencies),
	}
	res.P50, res.P95, res.P99 = percentiles(t.latencies)
	if elapsed > 0 {
		res.Throughput = float64(t.total) / elapsed.Seconds()
	}
	return res
}

func avgMillis(l []time.Duration) float64 {
	if len(l) == 0 {
		return 0
	}
	var sum time.Duration
	for _, x := range l {
		sum += x
	}
	return millis(sum) / float64(len(l))
}

func percentiles(l []time.Duration) (p50, p95, p99 float64) {
	if len(l) == 0 {
		return 0, 0, 0
	}
	tmp := make([]time.Duration, len(l))
	copy(tmp, l)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	idx := func(p float64) int {
		i := int(float64(len(tmp)) * p)
		if i >= len(tmp) {
			i = len(tmp) - 1
		}
		return i
	}
	return millis(tmp[idx(0.50)]), millis(tmp[idx(0.95)]), millis(tmp[idx(0.99)])
}

func millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func printSummary(w io.Writer, results []Result) {
	fmt.Fprintln(w, "\n========== LOADGEN SUMMARY ==========")
	for _, r := range results {
		fmt.Fprintf(w, "workers=%d requests=%d errors=%d rps=%.2f\n", r.Workers, r.Total, r.Errors, r.Throughput)
		fmt.Fprintf(w, "  latency avg=%.2fms p50=%.2fms p95=%.2fms p99=%.2fms\n", r.AvgLatency, r.P50, r.P95, r.P99)
		fmt.Fprintf(w, "  none available: %.1f%% of %d dispatches\n", r.NoneRate(), r.Dispatches)
		if r.Graph.Gets > 0 {
			fmt.Fprintf(w, "  graph cache hit rate: %.1f%% (gets=%d, hits=%d, puts=%d, evictions=%d)\n",
				r.GraphHitRate(), r.Graph.Gets, r.Graph.Hits, r.Graph.Puts, r.Graph.Evictions)
		}
	}
	fmt.Fprintln(w, "=====================================")
}

var csvHeader = []string{"workers", "avg_ms", "p50", "p95", "p99", "throughput", "errors", "total", "none_pct", "graph_hit_pct"}

func writeCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	for _, r := range results {
		row := []string{
			strconv.Itoa(r.Workers), f(r.AvgLatency), f(r.P50), f(r.P95), f(r.P99), f(r.Throughput),
			strconv.FormatInt(r.Errors, 10), strconv.FormatInt(r.Total, 10), f(r.NoneRate()), f(r.GraphHitRate()),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
