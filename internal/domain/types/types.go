// Package types contains the shapes exchanged between the service and the
// HTTP API, so that neither has to import the other.
package types

import (
	"github.com/okian/walkplan/internal/domain/alternatives"
	"github.com/okian/walkplan/internal/domain/conflict"
	"github.com/okian/walkplan/internal/domain/scoring"
	"github.com/okian/walkplan/internal/domain/walk"
)

// Submission acknowledges a walk posting.
type Submission struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// ConflictCheck is the answer to "may this walker take this walk".
// Breakdown explains Value term by term. Alternatives are only searched
// when the report has conflicts.
type ConflictCheck struct {
	Walk         walk.Walk           `json:"walk"`
	Value        float64             `json:"value"`
	Breakdown    scoring.Breakdown   `json:"breakdown"`
	Report       conflict.Report     `json:"report"`
	Alternatives []alternatives.Slot `json:"alternatives"`
}

// Assignment is the outcome of committing a walk to a walker. On ErrConflict
// Check explains why and Walker is unchanged.
type Assignment struct {
	Walker walk.Walker    `json:"walker"`
	Walk   walk.Walk      `json:"walk"`
	Check  *ConflictCheck `json:"check,omitempty"`
}

// Stats is a point-in-time view of the service.
type Stats struct {
	Started        bool  `json:"started"`
	WorkerCount    int   `json:"worker_count"`
	QueueCapacity  int   `json:"queue_capacity"`
	QueueLength    int   `json:"queue_length"`
	DedupeSize     int   `json:"dedupe_size"`
	DedupeEntries  int   `json:"dedupe_entries"`
	OpenWalks      int   `json:"open_walks"`
	Walkers        int   `json:"walkers"`
	WalksStored    int64 `json:"walks_stored"`
	WalksFailed    int64 `json:"walks_failed"`
	CacheAvailable bool  `json:"cache_available"`
}
