// Package repository keeps the pool of open walks and the walker registry
// the scheduling engine reads its snapshots from.
package repository

import (
	"context"
	"time"

	"github.com/okian/walkplan/internal/domain/walk"
)

// CommitCheck inspects a walker and an open walk under the store's write
// lock. A non-nil error aborts the commit and is returned unchanged.
type CommitCheck func(walker walk.Walker, w walk.Walk) error

// Store provides read/write access to open walks and walker profiles.
// Values returned are copies; callers may keep them.
type Store interface {
	// PutWalk inserts or replaces an open walk. It reports whether the id
	// was new.
	PutWalk(ctx context.Context, w walk.Walk) (bool, error)

	// GetWalk returns an open walk. Returns ErrWalkNotFound if unknown.
	GetWalk(ctx context.Context, id string) (walk.Walk, error)

	// Window returns open walks whose start is in [from, to), ordered by
	// start then id.
	Window(ctx context.Context, from, to time.Time) ([]walk.Walk, error)

	// CountWalks returns the number of open walks.
	CountWalks(ctx context.Context) int

	// PutWalker inserts or replaces a walker profile.
	PutWalker(ctx context.Context, w walk.Walker) error

	// GetWalker returns a walker profile. Returns ErrWalkerNotFound if
	// unknown.
	GetWalker(ctx context.Context, id string) (walk.Walker, error)

	// CountWalkers returns the number of walker profiles.
	CountWalkers(ctx context.Context) int

	// Commit atomically moves an open walk into a walker's committed list
	// once check passes, and returns the updated walker.
	Commit(ctx context.Context, walkerID, walkID string, check CommitCheck) (walk.Walker, error)
}
