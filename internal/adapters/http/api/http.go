// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/walkplan/internal/domain/schedule"
	"github.com/okian/walkplan/internal/domain/types"
	"github.com/okian/walkplan/internal/domain/walk"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider

	// SubmitWalk queues a posting; types.ErrBackpressure signals a full queue.
	SubmitWalk(ctx context.Context, w walk.Walk) (types.Submission, error)
	OpenWalks(ctx context.Context, from, to time.Time) ([]walk.Walk, error)

	PutWalker(ctx context.Context, w walk.Walker) error
	Walker(ctx context.Context, id string) (walk.Walker, error)

	Schedule(ctx context.Context, walkerID string, from, to time.Time) (schedule.Schedule, error)
	CheckConflicts(ctx context.Context, walkerID, walkID string) (types.ConflictCheck, error)
	Assign(ctx context.Context, walkerID, walkID string) (types.Assignment, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	walksHandler   *WalksHandler
	walkersHandler *WalkersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		walksHandler:   NewWalksHandler(deps),
		walkersHandler: NewWalkersHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /walks", MetricsMiddleware(s.walksHandler.HandlePostWalk, "walks"))
	mux.HandleFunc("GET /walks", MetricsMiddleware(s.walksHandler.HandleListWalks, "walks"))

	mux.HandleFunc("PUT /walkers/{id}", MetricsMiddleware(s.walkersHandler.HandlePutWalker, "walkers"))
	mux.HandleFunc("GET /walkers/{id}", MetricsMiddleware(s.walkersHandler.HandleGetWalker, "walkers"))
	mux.HandleFunc("GET /walkers/{id}/schedule", MetricsMiddleware(s.walkersHandler.HandleSchedule, "schedule"))
	mux.HandleFunc("POST /walkers/{id}/conflicts", MetricsMiddleware(s.walkersHandler.HandleConflicts, "conflicts"))
	mux.HandleFunc("POST /walkers/{id}/assignments", MetricsMiddleware(s.walkersHandler.HandleAssign, "assignments"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError derives status and code from err.
func writeError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func parseTime(name, v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return time.Time{}, fmt.Errorf("missing %s", name)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; must be RFC3339", name)
	}
	return t, nil
}

// parseWindow reads the from and to query parameters.
func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, err := parseTime("from", q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTime("to", q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
