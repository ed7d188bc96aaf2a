// Package events publishes saga lifecycle notifications: one event per
// terminal outcome the outbox worker reaches when dispatching a
// StartSaga message, grounded on the teacher's messaging package
// (AccountCreatedEvent and friends), generalized from banking events
// to saga lifecycle events.
package events

import "time"

// SagaCompletedEvent fires when a saga's coordinator drives it to
// StateCompleted.
type SagaCompletedEvent struct {
	SagaID    string    `json:"saga_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SagaCompensatedEvent fires when every executed step's Compensate
// call has succeeded after a permanent step failure.
type SagaCompensatedEvent struct {
	SagaID    string    `json:"saga_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// SagaFatalEvent fires when compensation itself cannot complete —
// operator intervention is required.
type SagaFatalEvent struct {
	SagaID    string    `json:"saga_id"`
	Errors    []string  `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}
