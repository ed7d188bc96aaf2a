// Package outbox implements the transactional outbox worker of
// spec.md §4.F: it scouts for the oldest eligible message, claims it
// under a lease, dispatches it to a type-specific handler, and
// finalizes or releases it for retry depending on the outcome.
package outbox

import "time"

// Message is the durable row shape of spec.md §3. ProcessedAt set
// means terminal; dispatch order is CreatedAt ascending among
// unprocessed, unleased rows.
type Message struct {
	ID           string
	Type         string
	PayloadJSON  []byte
	CreatedAt    time.Time
	ProcessedAt  *time.Time
	AttemptCount int
	LastError    *string
	LockedBy     *string
	LockedUntil  *time.Time
}
