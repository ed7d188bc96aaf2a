package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository over the outbox_messages
// table (db/schema.sql), grounded on the teacher's lease/claim-style
// conditional updates in postgres.go (getAccountMutex's row-level
// exclusivity idea, translated from an in-process mutex to a
// database-level lease so any number of worker processes can
// coordinate through it).
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) ScoutNext(ctx context.Context) (string, bool, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM outbox_messages
		WHERE processed_at IS NULL
			AND (locked_until IS NULL OR locked_until < now())
		ORDER BY created_at ASC
		LIMIT 1
	`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("outbox: scout: %w", err)
	}
	return id, true, nil
}

func (r *PostgresRepository) Claim(ctx context.Context, id, workerID string, ttl time.Duration) (bool, error) {
	lockedUntil := time.Now().Add(ttl)
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbox_messages
		SET locked_by = $1, locked_until = $2
		WHERE id = $3
			AND processed_at IS NULL
			AND (locked_until IS NULL OR locked_until < now())
	`, workerID, lockedUntil, id)
	if err != nil {
		return false, fmt.Errorf("outbox: claim: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) Load(ctx context.Context, id string) (*Message, error) {
	var m Message
	err := r.pool.QueryRow(ctx, `
		SELECT id, type, payload_json, created_at, processed_at, attempt_count, last_error, locked_by, locked_until
		FROM outbox_messages
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Type, &m.PayloadJSON, &m.CreatedAt, &m.ProcessedAt, &m.AttemptCount, &m.LastError, &m.LockedBy, &m.LockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("outbox: load: %w", err)
	}
	return &m, nil
}

func (r *PostgresRepository) Finalize(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_messages
		SET processed_at = now(), locked_by = NULL, locked_until = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("outbox: finalize: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Release(ctx context.Context, id string, delay time.Duration, incrementAttempt bool, lastError string) error {
	if len(lastError) > 500 {
		lastError = lastError[:500]
	}
	lockedUntil := time.Now().Add(delay)

	query := `
		UPDATE outbox_messages
		SET locked_by = NULL, locked_until = $1, last_error = $2
		WHERE id = $3
	`
	if incrementAttempt {
		query = `
			UPDATE outbox_messages
			SET locked_by = NULL, locked_until = $1, last_error = $2, attempt_count = attempt_count + 1
			WHERE id = $3
		`
	}

	_, err := r.pool.Exec(ctx, query, lockedUntil, lastError, id)
	if err != nil {
		return fmt.Errorf("outbox: release: %w", err)
	}
	return nil
}
