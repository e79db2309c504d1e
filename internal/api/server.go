package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atharv3903/towdispatch/internal/cache"
	"github.com/atharv3903/towdispatch/internal/dispatch"
	"github.com/atharv3903/towdispatch/internal/domain"
	"github.com/atharv3903/towdispatch/internal/logger"
	"github.com/atharv3903/towdispatch/internal/model"
)

// Dispatcher answers nearest tow truck and distance queries.
type Dispatcher interface {
	NearestAvailable(ctx context.Context, orderID int64) (dispatch.Result, error)
	Distance(ctx context.Context, areaID, src, dst int64) (model.Distance, error)
	Invalidate(areaID int64)
	ClearGraphs()
	GraphStats() cache.Stats
}

type TruckRepository interface {
	TowTruck(ctx context.Context, id int64) (model.TowTruck, error)
	ListTowTrucks(ctx context.Context, f model.TruckFilter) ([]model.TowTruck, error)
	UpdateLocation(ctx context.Context, truckID, nodeID int64) error
	UpdateStatus(ctx context.Context, truckID int64, status string) error
}

// Options configures optional parts of the server. A nil Registerer disables
// HTTP metrics, a nil Gatherer disables the metrics endpoint.
type Options struct {
	Logger      logger.Logger
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
	MetricsPath string
}

type Server struct {
	Router chi.Router

	dispatcher Dispatcher
	trucks     TruckRepository
	log        logger.Logger
	validate   *validator.Validate
}

func New(d Dispatcher, t TruckRepository, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = logger.NopLogger{}
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	s := &Server{
		Router:     chi.NewRouter(),
		dispatcher: d,
		trucks:     t,
		log:        opts.Logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}

	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.RealIP)
	s.Router.Use(middleware.Recoverer)
	if opts.Registerer != nil {
		m, err := newHTTPMetrics(opts.Registerer)
		if err != nil {
			return nil, err
		}
		s.Router.Use(m.middleware)
	}
	if opts.Gatherer != nil {
		s.Router.Handle(opts.MetricsPath, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.Router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	s.Router.Route("/api", func(r chi.Router) {
		r.Get("/orders/{orderID}/nearest-tow-truck", s.handleNearest)

		r.Route("/tow-trucks", func(r chi.Router) {
			r.Get("/", s.handleListTrucks)
			r.Get("/{truckID}", s.handleGetTruck)
			r.Put("/{truckID}/location", s.handleUpdateLocation)
			r.Put("/{truckID}/status", s.handleUpdateStatus)
		})

		r.Get("/areas/{areaID}/distance", s.handleDistance)
		r.Post("/areas/{areaID}/invalidate", s.handleInvalidate)
	})

	// Hard reset of every shared graph:
	// curl -X POST http://127.0.0.1:8080/debug/clear_cache
	s.Router.Post("/debug/clear_cache", func(w http.ResponseWriter, r *http.Request) {
		s.dispatcher.ClearGraphs()
		w.Write([]byte("cleared"))
	})

	s.Router.Get("/debug/graphcache_stats", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, s.dispatcher.GraphStats())
	})
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}

	res, err := s.dispatcher.NearestAvailable(r.Context(), orderID)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	render.JSON(w, r, NearestResponse(res))
}

func (s *Server) handleListTrucks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.TruckFilter{PageSize: 20, Status: q.Get("status")}

	var err error
	if v := q.Get("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil || f.Page < 0 {
			render.Render(w, r, ErrInvalidRequest(errors.New("page must be a non-negative integer")))
			return
		}
	}
	if v := q.Get("page_size"); v != "" {
		if f.PageSize, err = strconv.Atoi(v); err != nil || f.PageSize == 0 || f.PageSize < -1 {
			render.Render(w, r, ErrInvalidRequest(errors.New("page_size must be positive or -1")))
			return
		}
	}
	if f.PageSize > 0 && f.Page > math.MaxInt/f.PageSize {
		render.Render(w, r, ErrInvalidRequest(errors.New("page is out of range")))
		return
	}
	if v := q.Get("area"); v != "" {
		area, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			render.Render(w, r, ErrInvalidRequest(errors.New("area must be an integer")))
			return
		}
		f.AreaID = &area
	}
	if f.Status != "" {
		if err := s.validate.Var(f.Status, "oneof=available busy offline"); err != nil {
			render.Render(w, r, ErrValidation(err))
			return
		}
	}

	trucks, err := s.trucks.ListTowTrucks(r.Context(), f)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	out := make([]model.TowTruckDTO, 0, len(trucks))
	for _, t := range trucks {
		out = append(out, model.NewTowTruckDTO(t))
	}
	render.JSON(w, r, out)
}

func (s *Server) handleGetTruck(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "truckID")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	t, err := s.trucks.TowTruck(r.Context(), id)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	render.JSON(w, r, model.NewTowTruckDTO(t))
}

type locationRequest struct {
	NodeID *int64 `json:"node_id" validate:"required"`
}

func (*locationRequest) Bind(*http.Request) error { return nil }

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=available busy offline"`
}

func (*statusRequest) Bind(*http.Request) error { return nil }

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "truckID")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	req := &locationRequest{}
	if !s.bind(w, r, req) {
		return
	}
	if err := s.trucks.UpdateLocation(r.Context(), id, *req.NodeID); err != nil {
		s.renderErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "truckID")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	req := &statusRequest{}
	if !s.bind(w, r, req) {
		return
	}
	if err := s.trucks.UpdateStatus(r.Context(), id, req.Status); err != nil {
		s.renderErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDistance(w http.ResponseWriter, r *http.Request) {
	areaID, err := pathID(r, "areaID")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	q := r.URL.Query()
	src, err := strconv.ParseInt(q.Get("src"), 10, 64)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(errors.New("src must be an integer")))
		return
	}
	dst, err := strconv.ParseInt(q.Get("dst"), 10, 64)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(errors.New("dst must be an integer")))
		return
	}

	d, err := s.dispatcher.Distance(r.Context(), areaID, src, dst)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	render.JSON(w, r, DistanceResponse(areaID, src, dst, d))
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	areaID, err := pathID(r, "areaID")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	s.dispatcher.Invalidate(areaID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bind(w http.ResponseWriter, r *http.Request, v render.Binder) bool {
	if err := render.Bind(r, v); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		render.Render(w, r, ErrValidation(err))
		return false
	}
	return true
}

func (s *Server) renderErr(w http.ResponseWriter, r *http.Request, err error) {
	if domain.CodeOf(err) == domain.ErrInternal {
		s.log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	render.Render(w, r, ErrDomain(err))
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return id, nil
}

// NearestResponse converts a dispatch result to its JSON form.
func NearestResponse(res dispatch.Result) model.NearestTowTruckResponse {
	resp := model.NearestTowTruckResponse{Found: res.Found(), DispatchID: res.DispatchID}
	if !res.Found() {
		resp.Reason = string(res.Outcome)
		return resp
	}
	dist := int64(res.Distance)
	dto := model.NewTowTruckDTO(*res.Truck)
	resp.Distance = &dist
	resp.TowTruck = &dto
	return resp
}

func DistanceResponse(areaID, src, dst int64, d model.Distance) model.DistanceResponse {
	resp := model.DistanceResponse{AreaID: areaID, Src: src, Dst: dst, Reachable: d.Reachable()}
	if d.Reachable() {
		v := int64(d)
		resp.Distance = &v
	}
	return resp
}
