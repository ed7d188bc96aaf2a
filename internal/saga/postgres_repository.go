package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository[TData] over the sagas and
// outbox_messages tables (db/schema.sql), grounded on the teacher's
// AtomicDepositWithIdempotency transactional pattern in
// internal/infrastructure/database/postgres/postgres.go: one pgx
// transaction, a conditional read, a write, and a commit.
type PostgresRepository[TData any] struct {
	pool     *pgxpool.Pool
	dataType string
}

// NewPostgresRepository builds a repository for one saga data type.
// dataType is the human-readable tag persisted in sagas.data_type —
// it has no bearing on (de)serialization, which always uses
// encoding/json against TData.
func NewPostgresRepository[TData any](pool *pgxpool.Pool, dataType string) *PostgresRepository[TData] {
	return &PostgresRepository[TData]{pool: pool, dataType: dataType}
}

func (r *PostgresRepository[TData]) CreateSaga(ctx context.Context, sagaID string, data *TData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("saga: marshal data: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("saga: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO sagas (id, state, cursor, data_json, data_type, error_log)
		VALUES ($1, $2, 0, $3, $4, '{}')
	`, sagaID, string(StateCreated), payload, r.dataType)
	if err != nil {
		return fmt.Errorf("saga: insert snapshot: %w", err)
	}

	outboxPayload, err := json.Marshal(map[string]string{"SagaId": sagaID})
	if err != nil {
		return fmt.Errorf("saga: marshal outbox payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_messages (id, type, payload_json, created_at, attempt_count)
		VALUES ($1, 'StartSaga', $2, now(), 0)
	`, uuid.New().String(), outboxPayload)
	if err != nil {
		return fmt.Errorf("saga: insert outbox row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("saga: commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository[TData]) Save(ctx context.Context, inst *Instance[TData]) error {
	payload, err := json.Marshal(inst.Data())
	if err != nil {
		return fmt.Errorf("saga: marshal data: %w", err)
	}

	snap := Snapshot{
		ID:       inst.ID(),
		State:    inst.State(),
		Cursor:   inst.Cursor(),
		DataJSON: payload,
		DataType: r.dataType,
		ErrorLog: inst.ErrorLog(),
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO sagas (id, state, cursor, data_json, data_type, error_log)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			cursor = EXCLUDED.cursor,
			data_json = EXCLUDED.data_json,
			error_log = EXCLUDED.error_log
	`, snap.ID, string(snap.State), snap.Cursor, snap.DataJSON, snap.DataType, snap.ErrorLog)
	if err != nil {
		return fmt.Errorf("saga: save snapshot: %w", err)
	}
	return nil
}

func (r *PostgresRepository[TData]) Load(ctx context.Context, sagaID string, steps []Step[TData]) (*Instance[TData], error) {
	var (
		stateStr string
		snap     = &Snapshot{ID: sagaID, DataType: r.dataType}
	)

	err := r.pool.QueryRow(ctx, `
		SELECT state, cursor, data_json, error_log
		FROM sagas
		WHERE id = $1
	`, sagaID).Scan(&stateStr, &snap.Cursor, &snap.DataJSON, &snap.ErrorLog)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("saga: load snapshot: %w", err)
	}
	snap.State = State(stateStr)

	return hydrateFromSnapshot(snap, steps)
}

func isKnownState(s State) bool {
	switch s {
	case StateCreated, StateRunning, StateCompleted, StateFailed, StateCompensating, StateCompensated, StateFatalError:
		return true
	default:
		return false
	}
}
