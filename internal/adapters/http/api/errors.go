package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/walkplan/internal/adapters/repository"
	"github.com/okian/walkplan/internal/domain/types"
)

// ErrBadRequest marks errors caused by a malformed request.
var ErrBadRequest = errors.New("bad request")

// Error carries the handler operation and a sentinel kind next to the cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// WrapKind attaches op and kind to err.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap attaches op to err.
func Wrap(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// statusOf maps an error to an HTTP status and a machine-readable code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, types.ErrInvalidWalk),
		errors.Is(err, types.ErrInvalidWalker),
		errors.Is(err, types.ErrInvalidWindow),
		errors.Is(err, types.ErrWindowTooLarge):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrWalkNotFound),
		errors.Is(err, repository.ErrWalkerNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, types.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, types.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
