package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/okian/walkplan/internal/domain/types"
	"github.com/okian/walkplan/internal/domain/walk"
)

// WalkDependencies defines the interface for walk intake and listing.
type WalkDependencies interface {
	SubmitWalk(ctx context.Context, w walk.Walk) (types.Submission, error)
	OpenWalks(ctx context.Context, from, to time.Time) ([]walk.Walk, error)
}

// WalksHandler handles /walks requests.
type WalksHandler struct {
	deps WalkDependencies
}

// NewWalksHandler creates a new walks handler.
func NewWalksHandler(deps WalkDependencies) *WalksHandler {
	return &WalksHandler{deps: deps}
}

// walkRequest mirrors the OpenAPI schema for POST /walks. The id is
// optional; the duration is derived from start and end.
type walkRequest struct {
	ID         string          `json:"id"`
	Start      string          `json:"start"`
	End        string          `json:"end"`
	Dog        walk.DogProfile `json:"dog"`
	DistanceKm *float64        `json:"distance_km"`
}

func (req walkRequest) toWalk() (walk.Walk, error) {
	start, err := parseTime("start", req.Start)
	if err != nil {
		return walk.Walk{}, err
	}
	end, err := parseTime("end", req.End)
	if err != nil {
		return walk.Walk{}, err
	}
	return walk.Walk{
		ID:         strings.TrimSpace(req.ID),
		Start:      start,
		End:        end,
		Dog:        req.Dog,
		DistanceKm: req.DistanceKm,
	}, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostWalk handles POST /walks: 202 when queued, 200 for a repeated
// id, 429 when the intake queue is full.
func (h *WalksHandler) HandlePostWalk(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_walk"

	var req walkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	wk, err := req.toWalk()
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	sub, err := h.deps.SubmitWalk(r.Context(), wk)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if sub.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", ID: sub.ID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", ID: sub.ID})
}

// HandleListWalks handles GET /walks?from=&to=.
func (h *WalksHandler) HandleListWalks(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_walks"

	from, to, err := parseWindow(r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	walks, err := h.deps.OpenWalks(r.Context(), from, to)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, walks)
}
