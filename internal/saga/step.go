package saga

import "context"

// Step is the polymorphic capability a saga drives through, per
// spec.md §4.G: a name for logging/compensation-log messages, a
// forward action, and its compensation. TData is the saga's own data
// shape (e.g. transfer.Data); both methods must be idempotent.
//
// Shape grounded on ARM-software-golang-utils/utils/transaction/saga's
// ITransactionStep (Execute/Compensate over a shared argument value),
// generalized here to a typed data value instead of a generic
// map[string]any bag, and with no orchestration logic of its own —
// ordering and compensation fan-out live in Coordinator, not in the
// step, since the coordinator must persist a cursor between every step
// (ITransactionStep's execution groups are in-memory only).
type Step[TData any] interface {
	Name() string
	Execute(ctx context.Context, data *TData) error
	Compensate(ctx context.Context, data *TData) error
}
