/*
Api serves the operator surface of the market maker.

	GET  /healthz                   stream health
	GET  /metrics                   prometheus collectors
	GET  /api/v1/status             latest tick report and latency stats
	GET  /api/v1/latch              stop-profit latch
	POST /api/v1/latch/clear        clear the latch out of band
	POST /api/v1/orders/cancel-all  cancel every resting order
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"marketmaker/internal/core"
	"marketmaker/internal/obs"
	"marketmaker/internal/risk"
	"marketmaker/pkg/exception"
)

const shutdownTimeout = 5 * time.Second

// LatchStore is the durable stop-profit latch.
type LatchStore interface {
	Load(ctx context.Context) (risk.Latch, error)
	Save(ctx context.Context, latch risk.Latch) error
}

// Canceler cancels every resting order of the quoted symbol.
type Canceler interface {
	CancelAll(ctx context.Context) error
}

type Deps struct {
	Board    *core.ReportBoard
	Latch    LatchStore
	Canceler Canceler
	Gatherer prometheus.Gatherer
	Metrics  *obs.Metrics
	// Healthy reports whether the market stream is connected.
	Healthy        func() bool
	AllowedOrigins []string
}

type Server struct {
	deps   Deps
	router *mux.Router
}

func NewServer(deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{deps: deps, router: mux.NewRouter()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/latch", s.handleGetLatch).Methods(http.MethodGet)
	api.HandleFunc("/latch/clear", s.handleClearLatch).Methods(http.MethodPost)
	api.HandleFunc("/orders/cancel-all", s.handleCancelAll).Methods(http.MethodPost)
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// Run serves on addr until ctx is done or a shutdown signal arrives.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.Infof("admin api listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sys.Shutdown():
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

/*
	Handlers
*/

type healthResponse struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Report  *core.Report `json:"report"`
	Latency obs.Latency  `json:"latency"`
}

type latchResponse struct {
	Set bool `json:"set"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Healthy != nil && !s.deps.Healthy() {
		respondJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "stream disconnected"})
		return
	}
	respondJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Latency: s.deps.Metrics.Latency()}
	if r, ok := s.deps.Board.Load(); ok {
		resp.Report = &r
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetLatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Latch == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "latch store not configured")
		return
	}
	latch, err := s.deps.Latch.Load(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "latch_load", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, latchResponse{Set: latch.Set})
}

func (s *Server) handleClearLatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Latch == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "latch store not configured")
		return
	}
	if err := s.deps.Latch.Save(r.Context(), risk.Latch{}); err != nil {
		respondError(w, http.StatusInternalServerError, "latch_save", err.Error())
		return
	}
	logs.Warnf("stop profit latch cleared by operator")
	respondJSON(w, http.StatusOK, latchResponse{Set: false})
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	if s.deps.Canceler == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "no running engine")
		return
	}
	if err := s.deps.Canceler.CancelAll(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, exception.ErrEngineNotRunning) || errors.Is(err, exception.ErrNilInstance) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, "cancel_all", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, healthResponse{Status: "canceled"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigStd.NewEncoder(w).Encode(data); err != nil {
		logs.Errorf("encode response, err: %+v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: code, Message: message})
}
