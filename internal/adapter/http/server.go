package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
)

// Matcher runs event matching on behalf of the API.
type Matcher interface {
	MatchEvent(ctx context.Context, event domain.CalendarEvent) domain.MatchResult
	ProcessBatch(ctx context.Context, events []domain.CalendarEvent) ([]domain.MatchResult, error)
	ProcessBatchWindow(ctx context.Context, events []domain.CalendarEvent, w domain.Window) ([]domain.MatchResult, error)
	ProcessRaw(ctx context.Context) ([]domain.MatchResult, int, error)
}

// Subscriber hands out realtime message streams.
type Subscriber interface {
	Subscribe() (uint64, <-chan domain.Broadcast)
	Unsubscribe(id uint64)
}

// Deps are the collaborators behind the API routes. Stream is optional; when
// nil, /stream responds 503.
type Deps struct {
	Matcher    Matcher
	Disasters  domain.DisasterStore
	Matches    domain.MatchStore
	Stream     Subscriber
	Ready      sharedobs.ReadinessChecker
	HotspotMin int
}

// Server exposes the matching API alongside health, readiness, and metrics.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers every route.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	if deps.HotspotMin < 1 {
		deps.HotspotMin = domain.DefaultHotspotMinOccurrences
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("POST /match", s.handleMatch)
	mux.HandleFunc("POST /process-batch", s.handleProcessBatch)
	mux.HandleFunc("GET /disasters", s.handleDisasters)
	mux.HandleFunc("GET /matched-events", s.handleMatchedEvents)
	mux.HandleFunc("POST /raw-events/process", s.handleProcessRaw)
	mux.HandleFunc("GET /hotspots", s.handleHotspots)
	mux.HandleFunc("GET /statistics", s.handleStatistics)
	mux.HandleFunc("GET /stream", s.handleStream)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Status: "error", Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
