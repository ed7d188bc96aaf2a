package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saga-orchestrator/internal/config"
	"saga-orchestrator/internal/saga"
)

// fakeRepository is an in-process stand-in for Repository, enough to
// drive Worker through one scout/claim/load/finalize-or-release cycle
// without a database.
type fakeRepository struct {
	mu       sync.Mutex
	messages map[string]*Message
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{messages: make(map[string]*Message)}
}

func (f *fakeRepository) put(m *Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[m.ID] = m
}

func (f *fakeRepository) ScoutNext(_ context.Context) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for id, m := range f.messages {
		if m.ProcessedAt != nil {
			continue
		}
		if m.LockedUntil != nil && m.LockedUntil.After(now) {
			continue
		}
		return id, true, nil
	}
	return "", false, nil
}

func (f *fakeRepository) Claim(_ context.Context, id, workerID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return false, nil
	}
	now := time.Now()
	if m.LockedUntil != nil && m.LockedUntil.After(now) {
		return false, nil
	}
	until := now.Add(ttl)
	lockedBy := workerID
	m.LockedBy = &lockedBy
	m.LockedUntil = &until
	return true, nil
}

func (f *fakeRepository) Load(_ context.Context, id string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeRepository) Finalize(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil
	}
	now := time.Now()
	m.ProcessedAt = &now
	m.LockedBy = nil
	m.LockedUntil = nil
	return nil
}

func (f *fakeRepository) Release(_ context.Context, id string, delay time.Duration, incrementAttempt bool, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil
	}
	until := time.Now().Add(delay)
	m.LockedBy = nil
	m.LockedUntil = &until
	m.LastError = &lastError
	if incrementAttempt {
		m.AttemptCount++
	}
	return nil
}

func testSagaConfig() config.SagaConfig {
	return config.SagaConfig{
		WorkerCount:            1,
		EmptyQueueDelay:        10 * time.Millisecond,
		LeaseTTL:               time.Second,
		TransientConflictDelay: 10 * time.Millisecond,
		LostLeaseDelay:         10 * time.Millisecond,
		MaxAttemptsBeforeDLQ:   3,
		StepLeaseDefault:       time.Second,
		OverdraftLimitCents:    0,
	}
}

func TestWorker_DispatchSuccessFinalizesMessage(t *testing.T) {
	repo := newFakeRepository()
	repo.put(&Message{ID: "m1", Type: "StartSaga", PayloadJSON: []byte(`{"SagaId":"s1"}`), CreatedAt: time.Now()})

	w := NewWorker(repo, "worker-1", testSagaConfig())
	w.Register("StartSaga", func(ctx context.Context, payload []byte) error { return nil })

	ok := w.runOnce(context.Background())
	require.True(t, ok)

	m, err := repo.Load(context.Background(), "m1")
	require.NoError(t, err)
	assert.NotNil(t, m.ProcessedAt)
}

func TestWorker_RetryLaterReleasesWithoutIncrementingAttempt(t *testing.T) {
	repo := newFakeRepository()
	repo.put(&Message{ID: "m1", Type: "StartSaga", PayloadJSON: []byte(`{}`), CreatedAt: time.Now(), AttemptCount: 2})

	w := NewWorker(repo, "worker-1", testSagaConfig())
	w.Register("StartSaga", func(ctx context.Context, payload []byte) error { return saga.ErrRetryLater })

	w.runOnce(context.Background())

	m, err := repo.Load(context.Background(), "m1")
	require.NoError(t, err)
	assert.Nil(t, m.ProcessedAt)
	assert.Equal(t, 2, m.AttemptCount, "RetryLater must not increment attempt_count")
}

func TestWorker_LostLeaseReleasesAndIncrementsAttempt(t *testing.T) {
	repo := newFakeRepository()
	repo.put(&Message{ID: "m1", Type: "StartSaga", PayloadJSON: []byte(`{}`), CreatedAt: time.Now(), AttemptCount: 0})

	w := NewWorker(repo, "worker-1", testSagaConfig())
	w.Register("StartSaga", func(ctx context.Context, payload []byte) error { return saga.ErrLostLease })

	w.runOnce(context.Background())

	m, err := repo.Load(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.AttemptCount)
}

func TestWorker_GenericFailureIncrementsAttemptAndBacksOff(t *testing.T) {
	repo := newFakeRepository()
	repo.put(&Message{ID: "m1", Type: "StartSaga", PayloadJSON: []byte(`{}`), CreatedAt: time.Now(), AttemptCount: 0})

	w := NewWorker(repo, "worker-1", testSagaConfig())
	w.Register("StartSaga", func(ctx context.Context, payload []byte) error { return errors.New("boom") })

	w.runOnce(context.Background())

	m, err := repo.Load(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.AttemptCount)
	require.NotNil(t, m.LastError)
	assert.Contains(t, *m.LastError, "boom")
	require.NotNil(t, m.LockedUntil)
	assert.WithinDuration(t, time.Now().Add(backoffFor(1)), *m.LockedUntil, time.Second)
}

func TestWorker_UnknownTypeIsFinalizedWithoutDispatch(t *testing.T) {
	repo := newFakeRepository()
	repo.put(&Message{ID: "m1", Type: "SomethingElse", PayloadJSON: []byte(`{}`), CreatedAt: time.Now()})

	w := NewWorker(repo, "worker-1", testSagaConfig())

	w.runOnce(context.Background())

	m, err := repo.Load(context.Background(), "m1")
	require.NoError(t, err)
	assert.NotNil(t, m.ProcessedAt)
}

func TestBackoffFor(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoffFor(1))
	assert.Equal(t, 25*time.Second, backoffFor(5))
	assert.Equal(t, 60*time.Second, backoffFor(20))
}
