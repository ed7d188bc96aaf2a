// Package ledger implements the idempotent debit/credit domain service
// of spec.md §4.B: append-only entries keyed by a caller-supplied
// idempotency key, a tombstone ("AbortMarker") that permanently
// forbids any further operation under a compensated key, and a bounded
// retry for the debit/compensate race.
//
// Amounts are int64 minor units (cents), matching the teacher's
// models.Account.Balance convention.
package ledger

import "context"

// Result is the idempotent-operation outcome taxonomy of spec.md §4.B.
type Result int

const (
	Success Result = iota
	IdempotentSuccess
	Conflict
	Rejected
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case IdempotentSuccess:
		return "IdempotentSuccess"
	case Conflict:
		return "Conflict"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// EntryType distinguishes the three row kinds of spec.md §3. Debit is
// stored as a negative amount, Credit positive, AbortMarker always 0 —
// the type column is still explicit because an AbortMarker is a
// tombstone, not merely "a transaction for zero".
type EntryType int

const (
	Debit EntryType = iota
	Credit
	AbortMarker
)

// Service is the ledger contract of spec.md §4.B. Every operation is
// keyed by an idempotency key and must behave identically on first
// call and any repeat with the same key.
type Service interface {
	// TryDebit appends a debit if the account's balance would stay at
	// or above the overdraft limit, unless key is tombstoned (Rejected)
	// or already has a entry of a different kind (Conflict).
	TryDebit(ctx context.Context, accountID int, amountCents int64, key string) (Result, error)

	// TryCredit appends a credit under key; a tombstoned key returns
	// Conflict (a credit was never owed an "occupy forever" semantics
	// the way a compensated debit is).
	TryCredit(ctx context.Context, accountID int, amountCents int64, key string) (Result, error)

	// TryCompensateDebit reverses a debit previously made under
	// originalKey: refunds it if present, or tombstones originalKey if
	// it never arrived (so a later, delayed debit can never apply).
	TryCompensateDebit(ctx context.Context, accountID int, amountCents int64, originalKey string) (Result, error)

	// Balance sums every entry for accountID. Documented in spec.md §9
	// as non-scalable by design — correctness, not strategy, is the
	// requirement.
	Balance(ctx context.Context, accountID int) (int64, error)
}

func refundKey(originalKey string) string {
	return "Refund_" + originalKey
}
