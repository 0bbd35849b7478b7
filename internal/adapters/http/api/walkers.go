package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/walkplan/internal/domain/schedule"
	"github.com/okian/walkplan/internal/domain/types"
	"github.com/okian/walkplan/internal/domain/walk"
)

// WalkerDependencies defines the interface for walker operations.
type WalkerDependencies interface {
	PutWalker(ctx context.Context, w walk.Walker) error
	Walker(ctx context.Context, id string) (walk.Walker, error)
	Schedule(ctx context.Context, walkerID string, from, to time.Time) (schedule.Schedule, error)
	CheckConflicts(ctx context.Context, walkerID, walkID string) (types.ConflictCheck, error)
	Assign(ctx context.Context, walkerID, walkID string) (types.Assignment, error)
}

// WalkersHandler handles /walkers/{id} requests.
type WalkersHandler struct {
	deps WalkerDependencies
}

// NewWalkersHandler creates a new walkers handler.
func NewWalkersHandler(deps WalkerDependencies) *WalkersHandler {
	return &WalkersHandler{deps: deps}
}

type walkRef struct {
	WalkID string `json:"walk_id"`
}

type conflictResponse struct {
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Check   *types.ConflictCheck `json:"check"`
}

func walkerID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", errors.New("missing walker id")
	}
	return id, nil
}

func decodeWalkRef(r *http.Request) (string, error) {
	var ref walkRef
	if err := decodeJSON(r, &ref); err != nil {
		return "", err
	}
	if strings.TrimSpace(ref.WalkID) == "" {
		return "", errors.New("missing walk_id")
	}
	return ref.WalkID, nil
}

// HandlePutWalker handles PUT /walkers/{id}. The path id wins over an empty
// body id; a different body id is rejected.
func (h *WalkersHandler) HandlePutWalker(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_walker"

	id, err := walkerID(r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var body walk.Walker
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if body.ID != "" && body.ID != id {
		writeError(w, WrapKind(op, ErrBadRequest, errors.New("body id does not match path")))
		return
	}
	body.ID = id

	if err := h.deps.PutWalker(r.Context(), body); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	stored, err := h.deps.Walker(r.Context(), id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// HandleGetWalker handles GET /walkers/{id}.
func (h *WalkersHandler) HandleGetWalker(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_walker"

	id, err := walkerID(r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	walker, err := h.deps.Walker(r.Context(), id)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, walker)
}

// HandleSchedule handles GET /walkers/{id}/schedule?from=&to=.
func (h *WalkersHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "api.schedule"

	id, err := walkerID(r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	from, to, err := parseWindow(r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	s, err := h.deps.Schedule(r.Context(), id, from, to)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleConflicts handles POST /walkers/{id}/conflicts.
func (h *WalkersHandler) HandleConflicts(w http.ResponseWriter, r *http.Request) {
	const op = "api.conflicts"

	id, err := walkerID(r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	walkID, err := decodeWalkRef(r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	chk, err := h.deps.CheckConflicts(r.Context(), id, walkID)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, chk)
}

// HandleAssign handles POST /walkers/{id}/assignments: 200 with the updated
// walker, or 409 with the conflict report and alternatives.
func (h *WalkersHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	const op = "api.assign"

	id, err := walkerID(r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	walkID, err := decodeWalkRef(r)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	a, err := h.deps.Assign(r.Context(), id, walkID)
	if errors.Is(err, types.ErrConflict) && a.Check != nil {
		writeJSON(w, http.StatusConflict, conflictResponse{Code: "conflict", Message: Wrap(op, err).Error(), Check: a.Check})
		return
	}
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}
