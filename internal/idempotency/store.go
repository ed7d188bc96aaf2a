// Package idempotency implements the lease-or-takeover key store of
// spec.md §4.A: named keys are claimed by an owner for a bounded TTL,
// and sealed once the owner's effectful work is durably recorded
// elsewhere. Saga steps use it for their step-lock keys; the domain
// idempotency key of a step's effect is enforced by the ledger's unique
// reference_id, and the outbox worker leases rows in its own table.
package idempotency

import (
	"context"
	"time"
)

// ClaimResult is the outcome of TryClaim.
type ClaimResult int

const (
	// Acquired means the caller now holds the lease and should proceed.
	Acquired ClaimResult = iota
	// AlreadyConsumed means the key was already sealed by a prior
	// Complete call; the caller's work is done, it should treat this
	// as success without redoing it.
	AlreadyConsumed
	// LockedByOther means another owner currently holds an unexpired
	// lease; the caller should back off and retry later.
	LockedByOther
)

func (r ClaimResult) String() string {
	switch r {
	case Acquired:
		return "Acquired"
	case AlreadyConsumed:
		return "AlreadyConsumed"
	case LockedByOther:
		return "LockedByOther"
	default:
		return "Unknown"
	}
}

// CompleteResult is the outcome of Complete.
type CompleteResult int

const (
	// Completed means the key is now sealed (or already was, by this
	// same owner or a prior idempotent call).
	Completed CompleteResult = iota
	// LostLease means the lease had already expired or been taken by
	// another owner by the time Complete ran — the caller's TTL was
	// too short, or the process stalled.
	LostLease
)

// Store is the lease-or-takeover contract of spec.md §4.A. Every
// method is safe to call concurrently from any number of owners; the
// store itself is the single point of serialization.
type Store interface {
	// TryClaim inserts a fresh row, or takes over an expired/unheld
	// lease, in a single round-trip against the backing store. See
	// spec.md §4.A for the full insert-or-takeover semantics.
	TryClaim(ctx context.Context, key, ownerID string, ttl time.Duration) (ClaimResult, error)

	// Complete seals key if ownerID still holds it, or reports success
	// if it was already sealed (idempotent). Returns LostLease
	// otherwise.
	Complete(ctx context.Context, key, ownerID string) (CompleteResult, error)

	// IsConsumed is a read-only diagnostic check, not part of the
	// claim/complete protocol itself.
	IsConsumed(ctx context.Context, key string) (bool, error)
}
