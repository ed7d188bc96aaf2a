package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saga-orchestrator/internal/idempotency"
	"saga-orchestrator/test/integration/testenv"
)

func TestPostgresStore_TryClaimAcquiresFreshKey(t *testing.T) {
	pool := testenv.PostgresPool(t)
	testenv.Truncate(t, pool)
	store := idempotency.NewPostgresStore(pool)

	result, err := store.TryClaim(context.Background(), "key-1", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, idempotency.Acquired, result)
}

func TestPostgresStore_TryClaimRejectsActiveLeaseFromOtherOwner(t *testing.T) {
	pool := testenv.PostgresPool(t)
	testenv.Truncate(t, pool)
	store := idempotency.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := store.TryClaim(ctx, "key-2", "owner-a", time.Minute)
	require.NoError(t, err)

	result, err := store.TryClaim(ctx, "key-2", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, idempotency.LockedByOther, result)
}

func TestPostgresStore_TryClaimTakesOverExpiredLease(t *testing.T) {
	pool := testenv.PostgresPool(t)
	testenv.Truncate(t, pool)
	store := idempotency.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := store.TryClaim(ctx, "key-3", "owner-a", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	result, err := store.TryClaim(ctx, "key-3", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, idempotency.Acquired, result)
}

func TestPostgresStore_CompleteThenTryClaimIsAlreadyConsumed(t *testing.T) {
	pool := testenv.PostgresPool(t)
	testenv.Truncate(t, pool)
	store := idempotency.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := store.TryClaim(ctx, "key-4", "owner-a", time.Minute)
	require.NoError(t, err)

	completeResult, err := store.Complete(ctx, "key-4", "owner-a")
	require.NoError(t, err)
	assert.Equal(t, idempotency.Completed, completeResult)

	result, err := store.TryClaim(ctx, "key-4", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, idempotency.AlreadyConsumed, result)

	consumed, err := store.IsConsumed(ctx, "key-4")
	require.NoError(t, err)
	assert.True(t, consumed)
}

func TestPostgresStore_CompleteAfterLeaseLostReportsLostLease(t *testing.T) {
	pool := testenv.PostgresPool(t)
	testenv.Truncate(t, pool)
	store := idempotency.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := store.TryClaim(ctx, "key-5", "owner-a", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = store.TryClaim(ctx, "key-5", "owner-b", time.Minute)
	require.NoError(t, err)

	result, err := store.Complete(ctx, "key-5", "owner-a")
	require.NoError(t, err)
	assert.Equal(t, idempotency.LostLease, result)
}
