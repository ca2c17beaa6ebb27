// Package snapshot saves, lists, loads and deletes named planning states on
// device storage and, for an authenticated owner, on a remote store.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/sprint-budget/internal/budget"
)

// ErrNotFound is returned when no snapshot matches the requested id.
var ErrNotFound = errors.New("snapshot not found")

// State is the saved part of a planning session. The projection is stored
// for convenience only; it is always derivable from the other fields.
type State struct {
	Parameters    budget.Parameters  `json:"parameters"`
	Iterations    []budget.Iteration `json:"iterations"`
	Projection    []budget.Point     `json:"projection,omitempty"`
	VisibleSeries []string           `json:"visibleSeries,omitempty"`
}

// NewState captures a plan.
func NewState(plan *budget.Plan) State {
	return State{
		Parameters:    plan.Parameters,
		Iterations:    plan.Ledger.Iterations(),
		Projection:    plan.Projection(),
		VisibleSeries: append([]string(nil), plan.VisibleSeries...),
	}
}

// Snapshot is a named, timestamped save of a planning state.
type Snapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
	// Remote marks records that came from the remote store in a merged listing.
	Remote bool  `json:"remote,omitempty"`
	State  State `json:"state"`
}

// Backend is one place snapshots are kept.
type Backend interface {
	// Create stores s and returns it with the id the backend assigned.
	Create(ctx context.Context, owner string, s Snapshot) (Snapshot, error)
	// List returns the owner's snapshots, newest first.
	List(ctx context.Context, owner string) ([]Snapshot, error)
	// Delete removes one snapshot of the owner, or returns ErrNotFound.
	Delete(ctx context.Context, owner, id string) error
	// DeleteBefore removes every snapshot created before threshold and
	// returns how many were removed.
	DeleteBefore(ctx context.Context, threshold time.Time) (int, error)
}

// RemoteError reports a failed remote call after the local part of an
// operation completed.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err is a remote failure whose local counterpart
// succeeded.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
