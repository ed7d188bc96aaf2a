package handlers

import "context"

// SagaStatus is the type-erased view of a saga returned to HTTP
// clients, independent of the saga's own data shape.
type SagaStatus struct {
	SagaID      string
	State       string
	CurrentStep int
	Errors      []string
}

// HandlerDependencies breaks the circular dependency between handlers
// and the composition root, same shape as the teacher's
// api/handlers.HandlerDependencies.
type HandlerDependencies interface {
	// CreateTransferSaga validates nothing beyond what the handler
	// itself checks; it persists a new saga and its triggering outbox
	// row and returns the generated saga id.
	CreateTransferSaga(ctx context.Context, fromAccountID, toAccountID int, amountCents int64) (string, error)

	// GetSagaStatus reports a saga's current state, or found=false if
	// no saga exists under sagaID.
	GetSagaStatus(ctx context.Context, sagaID string) (status SagaStatus, found bool, err error)
}
