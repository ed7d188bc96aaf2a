package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saga-orchestrator/internal/idempotency"
	"saga-orchestrator/internal/ledger"
	"saga-orchestrator/internal/saga"
)

func newTestData() *Data {
	return &Data{
		SagaID:        "saga-1",
		FromAccountID: 1,
		ToAccountID:   2,
		AmountCents:   5000,
	}
}

func TestDebitSenderStep_ExecuteDebitsFromAccount(t *testing.T) {
	idem := idempotency.NewMemoryStore()
	ledgerSvc := ledger.NewMemoryService(-50000)
	step := NewDebitSenderStep(idem, ledgerSvc, 2*time.Minute)

	data := newTestData()
	err := step.Execute(context.Background(), data)
	require.NoError(t, err)

	balance, err := ledgerSvc.Balance(context.Background(), data.FromAccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(-5000), balance)
}

func TestDebitSenderStep_ExecuteIsIdempotentOnReplay(t *testing.T) {
	idem := idempotency.NewMemoryStore()
	ledgerSvc := ledger.NewMemoryService(-50000)
	step := NewDebitSenderStep(idem, ledgerSvc, 2*time.Minute)

	data := newTestData()
	require.NoError(t, step.Execute(context.Background(), data))
	require.NoError(t, step.Execute(context.Background(), data))

	balance, err := ledgerSvc.Balance(context.Background(), data.FromAccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(-5000), balance, "replaying the step must not double the debit")
}

func TestDebitSenderStep_ExecuteRejectsInsufficientFunds(t *testing.T) {
	idem := idempotency.NewMemoryStore()
	ledgerSvc := ledger.NewMemoryService(0)
	step := NewDebitSenderStep(idem, ledgerSvc, 2*time.Minute)

	data := newTestData()
	err := step.Execute(context.Background(), data)
	require.Error(t, err)
	assert.False(t, errors.Is(err, saga.ErrRetryLater))
}

func TestDebitSenderStep_CompensateRefundsDebit(t *testing.T) {
	idem := idempotency.NewMemoryStore()
	ledgerSvc := ledger.NewMemoryService(-50000)
	step := NewDebitSenderStep(idem, ledgerSvc, 2*time.Minute)

	data := newTestData()
	require.NoError(t, step.Execute(context.Background(), data))
	require.NoError(t, step.Compensate(context.Background(), data))

	balance, err := ledgerSvc.Balance(context.Background(), data.FromAccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestDebitSenderStep_CompensateBeforeExecuteTombstonesKey(t *testing.T) {
	idem := idempotency.NewMemoryStore()
	ledgerSvc := ledger.NewMemoryService(-50000)
	step := NewDebitSenderStep(idem, ledgerSvc, 2*time.Minute)

	data := newTestData()
	require.NoError(t, step.Compensate(context.Background(), data))

	// a debit that arrives after compensation has already tombstoned
	// the key must never apply; the ledger rejects it, so Execute fails
	// permanently.
	require.Error(t, step.Execute(context.Background(), data))
	balance, err := ledgerSvc.Balance(context.Background(), data.FromAccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestCreditReceiverStep_ExecuteCreditsToAccount(t *testing.T) {
	idem := idempotency.NewMemoryStore()
	ledgerSvc := ledger.NewMemoryService(-50000)
	step := NewCreditReceiverStep(idem, ledgerSvc, 2*time.Minute, 0)

	data := newTestData()
	require.NoError(t, step.Execute(context.Background(), data))

	balance, err := ledgerSvc.Balance(context.Background(), data.ToAccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance, "must credit ToAccountID, not FromAccountID")
}

func TestCreditReceiverStep_ExecuteRejectsOverAmountLimit(t *testing.T) {
	idem := idempotency.NewMemoryStore()
	ledgerSvc := ledger.NewMemoryService(-50000)
	step := NewCreditReceiverStep(idem, ledgerSvc, 2*time.Minute, 1000)

	data := newTestData()
	data.AmountCents = 5000

	err := step.Execute(context.Background(), data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmountOverLimit))

	balance, err := ledgerSvc.Balance(context.Background(), data.ToAccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance, "a rejected credit must not land")
}

func TestCreditReceiverStep_CompensateIsNoOp(t *testing.T) {
	idem := idempotency.NewMemoryStore()
	ledgerSvc := ledger.NewMemoryService(-50000)
	step := NewCreditReceiverStep(idem, ledgerSvc, 2*time.Minute, 0)

	data := newTestData()
	require.NoError(t, step.Execute(context.Background(), data))
	require.NoError(t, step.Compensate(context.Background(), data))

	balance, err := ledgerSvc.Balance(context.Background(), data.ToAccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance, "compensating the credit step must not reverse the credit")
}
