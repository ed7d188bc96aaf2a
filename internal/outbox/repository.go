package outbox

import (
	"context"
	"time"
)

// Repository is the outbox's storage contract: every method maps to
// one step of the worker loop in spec.md §4.F.
type Repository interface {
	// ScoutNext returns the id of the oldest message eligible for
	// dispatch (unprocessed, unleased or lease-expired), or found=false
	// if the queue is empty. Read-only — the actual exclusivity
	// guarantee comes from Claim.
	ScoutNext(ctx context.Context) (id string, found bool, err error)

	// Claim conditionally assigns the lease to workerID. ok is false
	// if another worker won the race (0 rows affected) — the caller
	// should loop immediately, without sleeping.
	Claim(ctx context.Context, id, workerID string, ttl time.Duration) (ok bool, err error)

	// Load reads the claimed row.
	Load(ctx context.Context, id string) (*Message, error)

	// Finalize marks a message durably processed and releases its
	// lease.
	Finalize(ctx context.Context, id string) error

	// Release puts a message back in the eligible pool after a
	// dispatch failure: it clears locked_by, sets locked_until to
	// now+delay, records lastError, and — per spec.md §4.F's
	// distinction between RetryLater (no increment) and every other
	// failure kind (increment) — bumps attempt_count only when
	// incrementAttempt is true.
	Release(ctx context.Context, id string, delay time.Duration, incrementAttempt bool, lastError string) error
}
