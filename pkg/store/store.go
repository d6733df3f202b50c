// Package store records placement runs.
//
// A [Run] is a small document describing one execution: which composition
// was placed, with which seed, how it ended and where its result lives.
// Backends implement [Store]:
//   - [MemoryStore]: in-process, used by tests and a bare API server
//   - [FileStore]: one JSON file per run, used by the CLI
//   - [MongoStore]: a MongoDB collection, used by shared API deployments
//
// Runs are created with [NewRun], which assigns a random UUID.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Status is the outcome of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Done reports whether the run has ended.
func (s Status) Done() bool { return s != StatusRunning && s != "" }

// Run describes one placement run.
type Run struct {
	ID              string        `json:"id" bson:"_id"`
	Composition     string        `json:"composition" bson:"composition"`
	CompositionHash string        `json:"composition_hash" bson:"composition_hash"`
	Seed            uint64        `json:"seed" bson:"seed"`
	Status          Status        `json:"status" bson:"status"`
	Progress        int           `json:"progress" bson:"progress"`
	Particles       int           `json:"particles" bson:"particles"`
	Skipped         int           `json:"skipped,omitempty" bson:"skipped,omitempty"`
	Corrections     int           `json:"corrections,omitempty" bson:"corrections,omitempty"`
	CacheKey        string        `json:"cache_key,omitempty" bson:"cache_key,omitempty"`
	CacheHit        bool          `json:"cache_hit,omitempty" bson:"cache_hit,omitempty"`
	Outputs         []string      `json:"outputs,omitempty" bson:"outputs,omitempty"`
	Error           string        `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	FinishedAt      time.Time     `json:"finished_at,omitzero" bson:"finished_at,omitempty"`
	Duration        time.Duration `json:"duration,omitempty" bson:"duration,omitempty"`
}

// NewRun creates a running record with a fresh ID.
func NewRun(composition, hash string, seed uint64) *Run {
	return &Run{
		ID:              uuid.NewString(),
		Composition:     composition,
		CompositionHash: hash,
		Seed:            seed,
		Status:          StatusRunning,
		CreatedAt:       time.Now().UTC(),
	}
}

// Finish marks the run as ended with the given status. err may be nil.
func (r *Run) Finish(status Status, err error) {
	r.Status = status
	r.FinishedAt = time.Now().UTC()
	r.Duration = r.FinishedAt.Sub(r.CreatedAt)
	if err != nil {
		r.Error = err.Error()
	}
}

// ValidID reports whether id has the form NewRun generates.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Store persists run records.
type Store interface {
	// Get returns the run with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Run, error)

	// Put creates or replaces a run.
	Put(ctx context.Context, run *Run) error

	// List returns up to limit runs, newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]*Run, error)

	// Delete removes a run. Deleting a missing run is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}
