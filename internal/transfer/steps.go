package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"saga-orchestrator/internal/idempotency"
	"saga-orchestrator/internal/ledger"
	"saga-orchestrator/internal/saga"
)

// ErrAmountOverLimit is a permanent, non-retryable rejection: the
// transfer amount exceeds the configured per-transfer ceiling. It
// triggers compensation of every step already executed.
var ErrAmountOverLimit = errors.New("transfer: amount exceeds per-transfer limit")

// DebitSenderStep and CreditReceiverStep both follow the canonical
// step pattern: claim a technical step-lock, perform the effectful
// call under a separate domain idempotency key, translate the
// collaborator's Result into the step's own Execute contract, then
// seal the lock. Neither releases the lock on failure — a dead lease
// simply expires and the next attempt reclaims it.

type DebitSenderStep struct {
	idem      idempotency.Store
	ledger    ledger.Service
	stepLease time.Duration
}

type CreditReceiverStep struct {
	idem        idempotency.Store
	ledger      ledger.Service
	stepLease   time.Duration
	amountLimit int64
}

func NewDebitSenderStep(idem idempotency.Store, ledgerSvc ledger.Service, stepLease time.Duration) *DebitSenderStep {
	return &DebitSenderStep{idem: idem, ledger: ledgerSvc, stepLease: stepLease}
}

func NewCreditReceiverStep(idem idempotency.Store, ledgerSvc ledger.Service, stepLease time.Duration, amountLimitCents int64) *CreditReceiverStep {
	return &CreditReceiverStep{idem: idem, ledger: ledgerSvc, stepLease: stepLease, amountLimit: amountLimitCents}
}

func (s *DebitSenderStep) Name() string { return "DebitSender" }

func (s *DebitSenderStep) Execute(ctx context.Context, data *Data) error {
	stepKey := fmt.Sprintf("DebitSender_Step_Lock_%s", data.SagaID)
	ownerID := uuid.New().String()

	claim, err := s.idem.TryClaim(ctx, stepKey, ownerID, s.stepLease)
	if err != nil {
		return fmt.Errorf("debit sender: claim step lock: %w", err)
	}
	switch claim {
	case idempotency.AlreadyConsumed:
		return nil
	case idempotency.LockedByOther:
		return saga.ErrRetryLater
	}

	domainKey := fmt.Sprintf("Debit_%s", data.SagaID)
	result, err := s.ledger.TryDebit(ctx, data.FromAccountID, data.AmountCents, domainKey)
	if err != nil {
		return fmt.Errorf("debit sender: ledger debit: %w", err)
	}
	switch result {
	case ledger.Success, ledger.IdempotentSuccess:
		// fall through to seal the step lock
	case ledger.Conflict:
		return saga.ErrRetryLater
	case ledger.Rejected:
		return fmt.Errorf("debit sender: insufficient funds for account %d", data.FromAccountID)
	}

	if _, err := s.idem.Complete(ctx, stepKey, ownerID); err != nil {
		return fmt.Errorf("debit sender: complete step lock: %w", err)
	}
	return nil
}

func (s *DebitSenderStep) Compensate(ctx context.Context, data *Data) error {
	domainKey := fmt.Sprintf("Debit_%s", data.SagaID)
	_, err := s.ledger.TryCompensateDebit(ctx, data.FromAccountID, data.AmountCents, domainKey)
	if err != nil {
		return fmt.Errorf("debit sender: compensate: %w", err)
	}
	return nil
}

func (s *CreditReceiverStep) Name() string { return "CreditReceiver" }

func (s *CreditReceiverStep) Execute(ctx context.Context, data *Data) error {
	if s.amountLimit > 0 && data.AmountCents > s.amountLimit {
		return ErrAmountOverLimit
	}

	stepKey := fmt.Sprintf("CreditReceiver_Step_Lock_%s", data.SagaID)
	ownerID := uuid.New().String()

	claim, err := s.idem.TryClaim(ctx, stepKey, ownerID, s.stepLease)
	if err != nil {
		return fmt.Errorf("credit receiver: claim step lock: %w", err)
	}
	switch claim {
	case idempotency.AlreadyConsumed:
		return nil
	case idempotency.LockedByOther:
		return saga.ErrRetryLater
	}

	domainKey := fmt.Sprintf("Credit_%s", data.SagaID)
	result, err := s.ledger.TryCredit(ctx, data.ToAccountID, data.AmountCents, domainKey)
	if err != nil {
		return fmt.Errorf("credit receiver: ledger credit: %w", err)
	}
	switch result {
	case ledger.Success, ledger.IdempotentSuccess:
		// fall through to seal the step lock
	case ledger.Conflict:
		return saga.ErrRetryLater
	case ledger.Rejected:
		return fmt.Errorf("credit receiver: rejected for account %d", data.ToAccountID)
	}

	if _, err := s.idem.Complete(ctx, stepKey, ownerID); err != nil {
		return fmt.Errorf("credit receiver: complete step lock: %w", err)
	}
	return nil
}

// Compensate is a no-op: a credit that already landed is not reversed
// by this saga (only the debit is); if the credit never ran, there is
// nothing to undo.
func (s *CreditReceiverStep) Compensate(_ context.Context, _ *Data) error {
	return nil
}
