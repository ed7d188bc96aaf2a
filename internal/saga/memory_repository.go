package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryRepository is an in-memory Repository used by the coordinator
// and instance unit tests, grounded on the teacher's in-memory
// repository fallback (src/db/inMemoryDB.go, src/diplomat/database/
// inmemory.go) — same role: exercise the same interface as the
// Postgres implementation without a database.
type MemoryRepository[TData any] struct {
	mu   sync.Mutex
	rows map[string]*Snapshot
}

func NewMemoryRepository[TData any]() *MemoryRepository[TData] {
	return &MemoryRepository[TData]{rows: make(map[string]*Snapshot)}
}

func (r *MemoryRepository[TData]) CreateSaga(_ context.Context, sagaID string, data *TData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("saga: marshal data: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[sagaID]; exists {
		return fmt.Errorf("saga: %s already exists", sagaID)
	}
	r.rows[sagaID] = &Snapshot{ID: sagaID, State: StateCreated, Cursor: 0, DataJSON: payload, ErrorLog: []string{}}
	return nil
}

func (r *MemoryRepository[TData]) Save(_ context.Context, inst *Instance[TData]) error {
	payload, err := json.Marshal(inst.Data())
	if err != nil {
		return fmt.Errorf("saga: marshal data: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[inst.ID()] = &Snapshot{
		ID:       inst.ID(),
		State:    inst.State(),
		Cursor:   inst.Cursor(),
		DataJSON: payload,
		ErrorLog: append([]string(nil), inst.ErrorLog()...),
	}
	return nil
}

func (r *MemoryRepository[TData]) Load(_ context.Context, sagaID string, steps []Step[TData]) (*Instance[TData], error) {
	r.mu.Lock()
	snap, ok := r.rows[sagaID]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}

	return hydrateFromSnapshot(snap, steps)
}
