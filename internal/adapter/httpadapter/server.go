package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/floodwatch/internal/session"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionState is what the server reads from the watched session.
type SessionState interface {
	sharedobs.ReadinessChecker
	View() session.View
}

// Status is the /status response body.
type Status struct {
	Region   string `json:"region"`
	Epoch    uint64 `json:"epoch"`
	Loaded   bool   `json:"loaded"`
	Warnings int    `json:"warnings"`
	Cached   int    `json:"cached"`
	Pending  int    `json:"pending"`
	Failed   int    `json:"failed"`
	ListErr  string `json:"list_error,omitempty"`
}

// Server serves liveness, readiness, session status, and metrics while
// watch mode runs.
type Server struct {
	httpServer *http.Server
	state      SessionState
	logger     *slog.Logger
}

// NewServer routes /healthz, /readyz, /status, and /metrics. Readiness
// turns green once the session has loaded a warning list.
func NewServer(addr string, state SessionState, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		state:  state,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(state))
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	v := s.state.View()
	st := Status{
		Region:   v.RegionCode,
		Epoch:    v.Epoch,
		Loaded:   v.Loaded,
		Warnings: len(v.WarningIDs),
		Cached:   len(v.Warnings),
		Pending:  v.Pending,
		Failed:   len(v.FetchErrors),
	}
	if v.ListErr != nil {
		st.ListErr = v.ListErr.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.logger.Warn("write status response", "error", err)
	}
}

// Start blocks serving until Shutdown; it returns http.ErrServerClosed then.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP lets tests drive the routes without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
