package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"saga-orchestrator/internal/metrics"
)

// maxCompensationAttempts bounds TryCompensateDebit's retry loop per
// spec.md §4.B ("Bounded retry (≤5 attempts)").
const maxCompensationAttempts uint = 5

// PostgresService implements Service over the ledger_entries table
// (db/schema.sql), grounded on the teacher's
// AtomicDepositWithIdempotency transaction-plus-unique-constraint
// pattern in internal/infrastructure/database/postgres/postgres.go.
// The compensation retry loop uses avast/retry-go/v4, grounded on
// ARM-software-golang-utils/utils/retry's RetryIf wrapper around the
// same library.
type PostgresService struct {
	pool            *pgxpool.Pool
	overdraftCents  int64
}

func NewPostgresService(pool *pgxpool.Pool, overdraftLimitCents int64) *PostgresService {
	return &PostgresService{pool: pool, overdraftCents: overdraftLimitCents}
}

func (s *PostgresService) TryDebit(ctx context.Context, accountID int, amountCents int64, key string) (result Result, err error) {
	defer func() { metrics.RecordLedgerOperation("debit", result.String()) }()

	existing, err := s.readByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		switch existing.entryType {
		case Debit:
			return IdempotentSuccess, nil
		case AbortMarker:
			return Rejected, nil
		default:
			return Conflict, nil
		}
	}

	balance, err := s.Balance(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if balance-amountCents < s.overdraftCents {
		return Rejected, nil
	}

	err = s.insert(ctx, accountID, -amountCents, Debit, key, "debit")
	if err == nil {
		return Success, nil
	}
	if !isUniqueViolation(err) {
		return 0, err
	}

	// Raced with another writer under the same key: re-read and
	// classify as in the presence branch above.
	existing, readErr := s.readByKey(ctx, key)
	if readErr != nil {
		return 0, readErr
	}
	if existing == nil {
		return Conflict, nil
	}
	switch existing.entryType {
	case Debit:
		return IdempotentSuccess, nil
	case AbortMarker:
		return Rejected, nil
	default:
		return Conflict, nil
	}
}

func (s *PostgresService) TryCredit(ctx context.Context, accountID int, amountCents int64, key string) (result Result, err error) {
	defer func() { metrics.RecordLedgerOperation("credit", result.String()) }()

	existing, err := s.readByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		if existing.entryType == Credit {
			return IdempotentSuccess, nil
		}
		// A tombstoned or otherwise-occupied key: a credit has no
		// "nothing to refund" fallback the way compensation does, so
		// it's just a conflict.
		return Conflict, nil
	}

	err = s.insert(ctx, accountID, amountCents, Credit, key, "credit")
	if err == nil {
		return Success, nil
	}
	if !isUniqueViolation(err) {
		return 0, err
	}

	existing, readErr := s.readByKey(ctx, key)
	if readErr != nil {
		return 0, readErr
	}
	if existing != nil && existing.entryType == Credit {
		return IdempotentSuccess, nil
	}
	return Conflict, nil
}

// errRaced marks an attempt that lost a race against a concurrent
// writer and should simply be retried, as opposed to a genuine
// infrastructure error which should abort the retry loop immediately.
var errRaced = errors.New("ledger: compensation attempt raced")

func (s *PostgresService) TryCompensateDebit(ctx context.Context, accountID int, amountCents int64, originalKey string) (result Result, retErr error) {
	defer func() { metrics.RecordLedgerOperation("compensate", result.String()) }()

	err := retry.Do(
		func() error {
			r, done, err := s.compensateOnce(ctx, accountID, amountCents, originalKey)
			if err != nil {
				return err
			}
			if !done {
				return errRaced
			}
			result = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(maxCompensationAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errRaced) }),
	)

	if err == nil {
		return result, nil
	}
	if errors.Is(err, errRaced) {
		// Retry budget exhausted on nothing but races (spec.md §4.B:
		// "After the attempt budget is exhausted, return Conflict").
		return Conflict, nil
	}
	return 0, err
}

// compensateOnce performs one attempt of the compensation protocol.
// done is false when a concurrent writer raced this attempt and the
// caller should retry the whole attempt.
func (s *PostgresService) compensateOnce(ctx context.Context, accountID int, amountCents int64, originalKey string) (result Result, done bool, err error) {
	existing, err := s.readByKey(ctx, originalKey)
	if err != nil {
		return 0, false, err
	}

	if existing != nil && existing.entryType == AbortMarker {
		return IdempotentSuccess, true, nil
	}

	if existing != nil && existing.entryType == Debit {
		rKey := refundKey(originalKey)
		refund, err := s.readByKey(ctx, rKey)
		if err != nil {
			return 0, false, err
		}
		if refund != nil && refund.entryType == Credit {
			return IdempotentSuccess, true, nil
		}

		err = s.insert(ctx, accountID, amountCents, Credit, rKey, "refund")
		if err == nil {
			return Success, true, nil
		}
		if isUniqueViolation(err) {
			return 0, false, nil // raced: another refund landed, re-loop
		}
		return 0, false, err
	}

	// No original debit on record yet: tombstone the key so a delayed
	// debit can never apply (spec.md §4.B, §8 scenario 5).
	err = s.insert(ctx, accountID, 0, AbortMarker, originalKey, "compensation tombstone")
	if err == nil {
		return Success, true, nil
	}
	if isUniqueViolation(err) {
		return 0, false, nil // a debit raced in; next attempt refunds it
	}
	return 0, false, err
}

func (s *PostgresService) Balance(ctx context.Context, accountID int) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1
	`, accountID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("ledger: balance: %w", err)
	}
	return sum, nil
}

type entryRow struct {
	entryType EntryType
}

func (s *PostgresService) readByKey(ctx context.Context, key string) (*entryRow, error) {
	var entryType int
	err := s.pool.QueryRow(ctx, `
		SELECT type FROM ledger_entries WHERE reference_id = $1
	`, key).Scan(&entryType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read by key: %w", err)
	}
	return &entryRow{entryType: EntryType(entryType)}, nil
}

func (s *PostgresService) insert(ctx context.Context, accountID int, amountCents int64, entryType EntryType, key, reason string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_entries (account_id, amount, type, reference_id, created_at, reason)
		VALUES ($1, $2, $3, $4, now(), $5)
	`, accountID, amountCents, int(entryType), key, reason)
	if err != nil {
		return fmt.Errorf("ledger: insert: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
