package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atharv3903/towdispatch/internal/cache"
	"github.com/atharv3903/towdispatch/internal/model"
)

type loadgen struct {
	client *http.Client
	server string
	orders []int64
	trucks []int64
	churn  float64
}

// tally is shared by the workers of one run.
type tally struct {
	mu        sync.Mutex
	latencies []time.Duration
	total     int64
	errors    int64
	none      int64
	dispatch  int64
}

func (t *tally) add(lat time.Duration, dispatched, none, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	if failed {
		t.errors++
		return
	}
	t.latencies = append(t.latencies, lat)
	if dispatched {
		t.dispatch++
		if none {
			t.none++
		}
	}
}

// run keeps workers requests in flight until dur elapses.
func (l *loadgen) run(ctx context.Context, workers int, dur time.Duration) Result {
	ctx, cancel := context.WithTimeout(ctx, dur)
	defer cancel()

	t := &tally{}
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		seed := time.Now().UnixNano() + int64(w)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				if len(l.trucks) > 0 && rng.Float64() < l.churn {
					lat, err := l.flipStatus(ctx, rng)
					if ctx.Err() != nil {
						break
					}
					t.add(lat, false, false, err != nil)
					continue
				}
				lat, none, err := l.nearest(ctx, l.orders[rng.Intn(len(l.orders))])
				if ctx.Err() != nil {
					break
				}
				t.add(lat, true, none, err != nil)
			}
			return nil
		})
	}
	_ = g.Wait()
	return summarize(workers, time.Since(start), t)
}

func (l *loadgen) nearest(ctx context.Context, orderID int64) (time.Duration, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/orders/%d/nearest-tow-truck", l.server, orderID), nil)
	if err != nil {
		return 0, false, err
	}
	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return time.Since(start), false, err
	}
	defer resp.Body.Close()

	var body model.NearestTowTruckResponse
	err = json.NewDecoder(resp.Body).Decode(&body)
	lat := time.Since(start)
	if resp.StatusCode != http.StatusOK {
		return lat, false, fmt.Errorf("order %d: status %d", orderID, resp.StatusCode)
	}
	if err != nil {
		return lat, false, err
	}
	return lat, !body.Found, nil
}

func (l *loadgen) flipStatus(ctx context.Context, rng *rand.Rand) (time.Duration, error) {
	status := model.TruckAvailable
	if rng.Intn(2) == 0 {
		status = model.TruckBusy
	}
	payload, _ := json.Marshal(map[string]string{"status": status})
	id := l.trucks[rng.Intn(len(l.trucks))]
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/api/tow-trucks/%d/status", l.server, id), bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return time.Since(start), err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	lat := time.Since(start)
	if resp.StatusCode != http.StatusNoContent {
		return lat, fmt.Errorf("truck %d: status %d", id, resp.StatusCode)
	}
	return lat, nil
}

func (l *loadgen) clearCache(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.server+"/debug/clear_cache", nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (l *loadgen) graphStats(ctx context.Context) (cache.Stats, error) {
	var st cache.Stats
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.server+"/debug/graphcache_stats", nil)
	if err != nil {
		return st, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	err = json.NewDecoder(resp.Body).Decode(&st)
	return st, err
}
