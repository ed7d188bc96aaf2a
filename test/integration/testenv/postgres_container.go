// Package testenv provides a shared Postgres testcontainer for
// integration tests, grounded on the teacher's
// test/integration/testenv/postgres_container.go: one container
// started lazily and reused across the whole test binary, schema
// applied once via the raw DDL file rather than a migration runner.
package testenv

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	containerOnce sync.Once
	containerErr  error
	pool          *pgxpool.Pool
)

// PostgresPool returns the shared pool, starting the container and
// applying db/schema.sql on first call.
func PostgresPool(t *testing.T) *pgxpool.Pool {
	containerOnce.Do(func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("sagas"),
			postgres.WithUsername("sagas"),
			postgres.WithPassword("sagas_secure_pass"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			containerErr = err
			return
		}

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = err
			return
		}

		p, err := pgxpool.New(ctx, connStr)
		if err != nil {
			containerErr = err
			return
		}

		schema, err := os.ReadFile(filepath.Join("..", "..", "..", "db", "schema.sql"))
		if err != nil {
			containerErr = err
			return
		}
		if _, err := p.Exec(ctx, string(schema)); err != nil {
			containerErr = err
			return
		}

		pool = p
	})

	require.NoError(t, containerErr, "failed to initialize postgres testcontainer")
	return pool
}

// Truncate clears every domain table between tests so each test starts
// from a clean slate without paying container-start cost again.
func Truncate(t *testing.T, p *pgxpool.Pool) {
	_, err := p.Exec(context.Background(), `
		TRUNCATE sagas, idempotency_keys, outbox_messages, ledger_entries
	`)
	require.NoError(t, err)
}
