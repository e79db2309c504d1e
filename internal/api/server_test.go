package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atharv3903/towdispatch/internal/cache"
	"github.com/atharv3903/towdispatch/internal/dispatch"
	"github.com/atharv3903/towdispatch/internal/domain"
	"github.com/atharv3903/towdispatch/internal/model"
)

type fakeDispatcher struct {
	results     map[int64]dispatch.Result
	err         error
	dist        model.Distance
	invalidated []int64
	cleared     int
}

func (f *fakeDispatcher) NearestAvailable(_ context.Context, orderID int64) (dispatch.Result, error) {
	if f.err != nil {
		return dispatch.Result{}, f.err
	}
	res, ok := f.results[orderID]
	if !ok {
		return dispatch.Result{}, domain.NewErrorf(domain.ErrNotFound, "order %d not found", orderID)
	}
	return res, nil
}

func (f *fakeDispatcher) Distance(context.Context, int64, int64, int64) (model.Distance, error) {
	return f.dist, f.err
}

func (f *fakeDispatcher) Invalidate(areaID int64) { f.invalidated = append(f.invalidated, areaID) }
func (f *fakeDispatcher) ClearGraphs()            { f.cleared++ }
func (f *fakeDispatcher) GraphStats() cache.Stats { return cache.Stats{Gets: 3, Hits: 2, Entries: 1} }

type fakeTrucks struct {
	trucks   map[int64]model.TowTruck
	filter   model.TruckFilter
	location map[int64]int64
	status   map[int64]string
}

func newFakeTrucks() *fakeTrucks {
	return &fakeTrucks{
		trucks: map[int64]model.TowTruck{
			7: {ID: 7, DriverID: 70, Status: model.TruckAvailable, AreaID: 1, NodeID: 3},
		},
		location: map[int64]int64{},
		status:   map[int64]string{},
	}
}

func (f *fakeTrucks) TowTruck(_ context.Context, id int64) (model.TowTruck, error) {
	t, ok := f.trucks[id]
	if !ok {
		return model.TowTruck{}, domain.NewErrorf(domain.ErrNotFound, "tow truck %d not found", id)
	}
	return t, nil
}

func (f *fakeTrucks) ListTowTrucks(_ context.Context, filter model.TruckFilter) ([]model.TowTruck, error) {
	f.filter = filter
	var out []model.TowTruck
	for _, t := range f.trucks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTrucks) UpdateLocation(_ context.Context, truckID, nodeID int64) error {
	if _, ok := f.trucks[truckID]; !ok {
		return domain.NewErrorf(domain.ErrNotFound, "tow truck %d not found", truckID)
	}
	f.location[truckID] = nodeID
	return nil
}

func (f *fakeTrucks) UpdateStatus(_ context.Context, truckID int64, status string) error {
	f.status[truckID] = status
	return nil
}

func newTestServer(t *testing.T, d *fakeDispatcher, tr *fakeTrucks) *Server {
	t.Helper()
	s, err := New(d, tr, Options{})
	require.NoError(t, err)
	return s
}

func do(s http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &fakeDispatcher{}, newFakeTrucks())
	rec := do(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestNearestFound(t *testing.T) {
	truck := model.TowTruck{ID: 2, DriverID: 20, Status: model.TruckAvailable, AreaID: 1, NodeID: 4}
	d := &fakeDispatcher{results: map[int64]dispatch.Result{
		1: {DispatchID: "abc", OrderID: 1, AreaID: 1, Outcome: dispatch.Assigned, Truck: &truck, Distance: 10},
	}}
	s := newTestServer(t, d, newFakeTrucks())

	rec := do(s, http.MethodGet, "/api/orders/1/nearest-tow-truck", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.NearestTowTruckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Found)
	assert.Equal(t, "abc", resp.DispatchID)
	require.NotNil(t, resp.Distance)
	assert.EqualValues(t, 10, *resp.Distance)
	require.NotNil(t, resp.TowTruck)
	assert.EqualValues(t, 2, resp.TowTruck.ID)
	assert.Empty(t, resp.Reason)
}

func TestNearestNoneAvailable(t *testing.T) {
	d := &fakeDispatcher{results: map[int64]dispatch.Result{
		1: {OrderID: 1, Outcome: dispatch.TooFar, Distance: 10_000_001},
		2: {OrderID: 2, Outcome: dispatch.NoCandidates},
	}}
	s := newTestServer(t, d, newFakeTrucks())

	for id, reason := range map[string]string{"1": "too_far", "2": "no_candidates"} {
		rec := do(s, http.MethodGet, "/api/orders/"+id+"/nearest-tow-truck", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp model.NearestTowTruckResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Found)
		assert.Equal(t, reason, resp.Reason)
		assert.Nil(t, resp.TowTruck)
		assert.Nil(t, resp.Distance)
	}
}

func TestNearestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"unknown order", "/api/orders/99/nearest-tow-truck", nil, http.StatusNotFound},
		{"bad id", "/api/orders/abc/nearest-tow-truck", nil, http.StatusBadRequest},
		{"internal", "/api/orders/1/nearest-tow-truck",
			domain.NewErrorf(domain.ErrInternal, "connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeDispatcher{err: tt.err}, newFakeTrucks())
			rec := do(s, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	d := &fakeDispatcher{err: domain.NewErrorf(domain.ErrInternal, "dsn user:secret@tcp")}
	s := newTestServer(t, d, newFakeTrucks())

	rec := do(s, http.MethodGet, "/api/orders/1/nearest-tow-truck", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestListTrucks(t *testing.T) {
	tr := newFakeTrucks()
	s := newTestServer(t, &fakeDispatcher{}, tr)

	rec := do(s, http.MethodGet, "/api/tow-trucks?page=2&page_size=-1&status=busy&area=4", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []model.TowTruckDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 1)
	assert.Equal(t, 2, tr.filter.Page)
	assert.Equal(t, -1, tr.filter.PageSize)
	assert.Equal(t, model.TruckBusy, tr.filter.Status)
	require.NotNil(t, tr.filter.AreaID)
	assert.EqualValues(t, 4, *tr.filter.AreaID)
}

func TestListTrucksDefaults(t *testing.T) {
	tr := newFakeTrucks()
	s := newTestServer(t, &fakeDispatcher{}, tr)

	rec := do(s, http.MethodGet, "/api/tow-trucks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, tr.filter.Page)
	assert.Equal(t, 20, tr.filter.PageSize)
	assert.Nil(t, tr.filter.AreaID)
}

func TestListTrucksRejectsBadQuery(t *testing.T) {
	s := newTestServer(t, &fakeDispatcher{}, newFakeTrucks())
	for _, q := range []string{"page=-1", "page_size=0", "page_size=-2", "area=x", "status=parked"} {
		rec := do(s, http.MethodGet, "/api/tow-trucks?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListTrucksRejectsOverflowingOffset(t *testing.T) {
	tr := newFakeTrucks()
	s := newTestServer(t, &fakeDispatcher{}, tr)

	rec := do(s, http.MethodGet, fmt.Sprintf("/api/tow-trucks?page=%d&page_size=10", math.MaxInt/10+1), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, fmt.Sprintf("/api/tow-trucks?page=%d&page_size=10", math.MaxInt/10), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, fmt.Sprintf("/api/tow-trucks?page=%d&page_size=-1", math.MaxInt), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetTruck(t *testing.T) {
	s := newTestServer(t, &fakeDispatcher{}, newFakeTrucks())

	rec := do(s, http.MethodGet, "/api/tow-trucks/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dto model.TowTruckDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.EqualValues(t, 70, dto.DriverID)

	rec = do(s, http.MethodGet, "/api/tow-trucks/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateLocation(t *testing.T) {
	tr := newFakeTrucks()
	s := newTestServer(t, &fakeDispatcher{}, tr)

	rec := do(s, http.MethodPut, "/api/tow-trucks/7/location", `{"node_id": 0}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	v, ok := tr.location[7]
	assert.True(t, ok)
	assert.EqualValues(t, 0, v)

	rec = do(s, http.MethodPut, "/api/tow-trucks/7/location", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPut, "/api/tow-trucks/7/location", `{"node_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPut, "/api/tow-trucks/8/location", `{"node_id": 1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	tr := newFakeTrucks()
	s := newTestServer(t, &fakeDispatcher{}, tr)

	rec := do(s, http.MethodPut, "/api/tow-trucks/7/status", `{"status": "busy"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, model.TruckBusy, tr.status[7])

	rec = do(s, http.MethodPut, "/api/tow-trucks/7/status", `{"status": "parked"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ErrValidation)
}

func TestDistance(t *testing.T) {
	d := &fakeDispatcher{dist: 12}
	s := newTestServer(t, d, newFakeTrucks())

	rec := do(s, http.MethodGet, "/api/areas/1/distance?src=1&dst=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.DistanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Reachable)
	require.NotNil(t, resp.Distance)
	assert.EqualValues(t, 12, *resp.Distance)

	d.dist = model.Unreachable
	rec = do(s, http.MethodGet, "/api/areas/1/distance?src=1&dst=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = model.DistanceResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Reachable)
	assert.Nil(t, resp.Distance)

	rec = do(s, http.MethodGet, "/api/areas/1/distance?src=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheEndpoints(t *testing.T) {
	d := &fakeDispatcher{}
	s := newTestServer(t, d, newFakeTrucks())

	rec := do(s, http.MethodPost, "/api/areas/5/invalidate", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int64{5}, d.invalidated)

	rec = do(s, http.MethodPost, "/debug/clear_cache", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, d.cleared)

	rec = do(s, http.MethodGet, "/debug/graphcache_stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 2, st.Hits)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := New(&fakeDispatcher{}, newFakeTrucks(), Options{Registerer: reg, Gatherer: reg})
	require.NoError(t, err)

	do(s, http.MethodGet, "/api/tow-trucks/7", "")
	do(s, http.MethodGet, "/api/tow-trucks/8", "")

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "towdispatch_http_requests_total"))

	rec := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/tow-trucks/{truckID}"`)
	assert.Contains(t, rec.Body.String(), `status="404"`)
}
