// Package saga implements the saga state machine (Instance), the
// coordinator that drives it through forward execution and
// compensation, and the repository that persists its snapshot
// alongside the outbox row that triggered it.
//
// The three-way result taxonomy (success / RetryLater / LostLease) is
// exported as sentinel errors rather than string-matched, per
// spec.md §9: callers use errors.Is against ErrRetryLater and
// ErrLostLease, the same sentinel-error idiom the teacher uses for
// ErrDuplicateOperation and ErrAccountNotFound in postgres.go.
package saga

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrRetryLater signals a transient conflict (a lease held by another
// worker, or an optimistic write conflict). The caller must save
// current state and propagate; the outbox re-queues with a short
// delay and does not count this as a failed attempt.
var ErrRetryLater = errors.New("saga: retry later")

// ErrLostLease signals that a lease expired while the holder still
// believed it owned the resource. Safe to retry because every
// effectful call downstream is idempotent.
var ErrLostLease = errors.New("saga: lost lease")

// State is one of the seven saga lifecycle states of spec.md §3.
type State string

const (
	StateCreated      State = "Created"
	StateRunning      State = "Running"
	StateCompleted    State = "Completed"
	StateFailed       State = "Failed"
	StateCompensating State = "Compensating"
	StateCompensated  State = "Compensated"
	StateFatalError   State = "FatalError"
)

// IsTerminal reports whether no further coordinator work is possible
// from this state.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCompensated, StateFatalError:
		return true
	default:
		return false
	}
}

// Snapshot is the durable, type-erased representation of a saga: the
// shape stored in and loaded from the repository. DataJSON is
// deserialized into the caller's concrete data type by Repository.Load.
type Snapshot struct {
	ID        string
	State     State
	Cursor    int
	DataJSON  []byte
	DataType  string
	ErrorLog  []string
	CreatedAt int64 // unix seconds; neither Repository implementation populates it
}

// hydrateFromSnapshot deserializes snap.DataJSON into TData and
// rehydrates an Instance from the snapshot's state, cursor, and error
// log. Every Repository implementation loads through this so the
// snapshot shape stays the one source of truth for what was persisted.
func hydrateFromSnapshot[TData any](snap *Snapshot, steps []Step[TData]) (*Instance[TData], error) {
	var data TData
	if err := json.Unmarshal(snap.DataJSON, &data); err != nil {
		return nil, fmt.Errorf("saga: corrupt snapshot data (fatal): %w", err)
	}

	state := snap.State
	if !isKnownState(state) {
		state = StateFailed
	}

	inst := NewInstance(snap.ID, &data, steps)
	inst.LoadState(state, snap.Cursor, snap.ErrorLog)
	return inst, nil
}
