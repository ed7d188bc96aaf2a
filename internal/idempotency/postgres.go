package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over the idempotency_keys table
// (db/schema.sql), grounded on the teacher's
// AtomicDepositWithIdempotency transactional idempotency check in
// internal/infrastructure/database/postgres/postgres.go, generalized
// from "deposit-shaped" rows into the lease-or-takeover protocol of
// spec.md §4.A.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// TryClaim is the single atomic insert-or-takeover round-trip required
// by spec.md §4.A: an upsert whose UPDATE branch is gated by the
// "not consumed and not currently held" predicate, so the row is only
// overwritten when the caller is actually entitled to it.
func (s *PostgresStore) TryClaim(ctx context.Context, key, ownerID string, ttl time.Duration) (ClaimResult, error) {
	lockedUntil := time.Now().Add(ttl)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, created_at, is_consumed, locked_by, locked_until)
		VALUES ($1, now(), false, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			locked_by = EXCLUDED.locked_by,
			locked_until = EXCLUDED.locked_until
		WHERE idempotency_keys.is_consumed = false
			AND (idempotency_keys.locked_until IS NULL OR idempotency_keys.locked_until < now())
	`, key, ownerID, lockedUntil)
	if err != nil {
		return 0, fmt.Errorf("idempotency: try claim: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return Acquired, nil
	}

	// The upsert's WHERE guard didn't match: the row exists, isn't
	// ours to take. This diagnostic read is intentionally not part of
	// the atomic step — the caller's only reaction to either outcome
	// is to stop (spec.md §4.A).
	consumed, err := s.IsConsumed(ctx, key)
	if err != nil {
		return 0, err
	}
	if consumed {
		return AlreadyConsumed, nil
	}
	return LockedByOther, nil
}

func (s *PostgresStore) Complete(ctx context.Context, key, ownerID string) (CompleteResult, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE idempotency_keys
		SET is_consumed = true, locked_by = NULL, locked_until = NULL
		WHERE key = $1 AND locked_by = $2
	`, key, ownerID)
	if err != nil {
		return 0, fmt.Errorf("idempotency: complete: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return Completed, nil
	}

	consumed, err := s.IsConsumed(ctx, key)
	if err != nil {
		return 0, err
	}
	if consumed {
		return Completed, nil
	}
	return LostLease, nil
}

func (s *PostgresStore) IsConsumed(ctx context.Context, key string) (bool, error) {
	var consumed bool
	err := s.pool.QueryRow(ctx, `
		SELECT is_consumed FROM idempotency_keys WHERE key = $1
	`, key).Scan(&consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("idempotency: is consumed: %w", err)
	}
	return consumed, nil
}
