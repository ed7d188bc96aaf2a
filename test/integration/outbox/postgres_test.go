package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saga-orchestrator/internal/outbox"
	"saga-orchestrator/test/integration/testenv"
)

func newRepo(t *testing.T) *outbox.PostgresRepository {
	pool := testenv.PostgresPool(t)
	testenv.Truncate(t, pool)
	return outbox.NewPostgresRepository(pool)
}

func TestPostgresRepository_ScoutNextFindsOldestEligibleMessage(t *testing.T) {
	pool := testenv.PostgresPool(t)
	testenv.Truncate(t, pool)
	repo := outbox.NewPostgresRepository(pool)
	ctx := context.Background()

	older := uuid.New().String()
	newer := uuid.New().String()

	_, err := pool.Exec(ctx, `
		INSERT INTO outbox_messages (id, type, payload_json, created_at, attempt_count)
		VALUES ($1, 'StartSaga', '{}', now() - interval '1 minute', 0)
	`, older)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO outbox_messages (id, type, payload_json, created_at, attempt_count)
		VALUES ($1, 'StartSaga', '{}', now(), 0)
	`, newer)
	require.NoError(t, err)

	id, found, err := repo.ScoutNext(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, older, id)
}

func TestPostgresRepository_ClaimIsExclusiveBetweenWorkers(t *testing.T) {
	pool := testenv.PostgresPool(t)
	testenv.Truncate(t, pool)
	repo := outbox.NewPostgresRepository(pool)
	ctx := context.Background()

	id := uuid.New().String()
	_, err := pool.Exec(ctx, `
		INSERT INTO outbox_messages (id, type, payload_json, created_at, attempt_count)
		VALUES ($1, 'StartSaga', '{}', now(), 0)
	`, id)
	require.NoError(t, err)

	claimedA, err := repo.Claim(ctx, id, "worker-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimedA)

	claimedB, err := repo.Claim(ctx, id, "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimedB)
}

func TestPostgresRepository_FinalizeMarksProcessed(t *testing.T) {
	repo := newRepo(t)
	pool := testenv.PostgresPool(t)
	ctx := context.Background()

	id := uuid.New().String()
	_, err := pool.Exec(ctx, `
		INSERT INTO outbox_messages (id, type, payload_json, created_at, attempt_count)
		VALUES ($1, 'StartSaga', '{}', now(), 0)
	`, id)
	require.NoError(t, err)

	require.NoError(t, repo.Finalize(ctx, id))

	_, found, err := repo.ScoutNext(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPostgresRepository_ReleaseWithIncrementBumpsAttemptCount(t *testing.T) {
	repo := newRepo(t)
	pool := testenv.PostgresPool(t)
	ctx := context.Background()

	id := uuid.New().String()
	_, err := pool.Exec(ctx, `
		INSERT INTO outbox_messages (id, type, payload_json, created_at, attempt_count)
		VALUES ($1, 'StartSaga', '{}', now(), 0)
	`, id)
	require.NoError(t, err)

	require.NoError(t, repo.Release(ctx, id, time.Millisecond, true, "boom"))
	time.Sleep(10 * time.Millisecond)

	msg, err := repo.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, msg.AttemptCount)
	require.NotNil(t, msg.LastError)
	assert.Equal(t, "boom", *msg.LastError)
}

func TestPostgresRepository_ReleaseWithoutIncrementLeavesAttemptCountUnchanged(t *testing.T) {
	repo := newRepo(t)
	pool := testenv.PostgresPool(t)
	ctx := context.Background()

	id := uuid.New().String()
	_, err := pool.Exec(ctx, `
		INSERT INTO outbox_messages (id, type, payload_json, created_at, attempt_count)
		VALUES ($1, 'StartSaga', '{}', now(), 0)
	`, id)
	require.NoError(t, err)

	require.NoError(t, repo.Release(ctx, id, time.Millisecond, false, "retry later"))
	time.Sleep(10 * time.Millisecond)

	msg, err := repo.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, msg.AttemptCount)
}
