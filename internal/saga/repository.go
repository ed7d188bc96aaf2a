package saga

import "context"

// Repository owns the saga snapshot (spec.md §3, Ownership) and the
// one atomic write that creates a saga alongside its triggering outbox
// row (spec.md §4.C). It is generic over the saga's data type — this
// repo wires exactly one concrete instantiation (transfer.Data, see
// internal/components), but the shape supports adding further saga
// types the same way the source's "tagged-variant saga types" note
// (spec.md §9) describes.
type Repository[TData any] interface {
	// CreateSaga atomically inserts the saga snapshot (Created, cursor
	// 0, empty error log) and a "StartSaga" outbox row referencing it.
	// Neither row exists if the call returns an error.
	CreateSaga(ctx context.Context, sagaID string, data *TData) error

	// Save upserts the snapshot by id with the instance's current
	// state, cursor, error log, and data. Called after every cursor
	// change and state transition.
	Save(ctx context.Context, inst *Instance[TData]) error

	// Load reads the snapshot, deserializes its data into TData,
	// attaches steps, and rehydrates state/cursor/error log. Returns
	// (nil, nil) if no snapshot exists for sagaID. An unrecognized
	// state string rehydrates as Failed (spec.md §4.C) so compensation
	// can still run.
	Load(ctx context.Context, sagaID string, steps []Step[TData]) (*Instance[TData], error)
}
