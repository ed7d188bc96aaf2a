package saga

import (
	"context"
	"errors"
	"fmt"

	"saga-orchestrator/internal/logging"
	"saga-orchestrator/internal/metrics"
)

// Coordinator drives one saga instance to quiescence: forward
// execution step by step, and reverse-order compensation on permanent
// failure. Exactly the algorithm of spec.md §4.E.
type Coordinator[TData any] struct {
	repo Repository[TData]
}

func NewCoordinator[TData any](repo Repository[TData]) *Coordinator[TData] {
	return &Coordinator[TData]{repo: repo}
}

// Process drives inst to a terminal state, or returns ErrRetryLater /
// ErrLostLease if the outbox should re-dispatch it later, or a
// permanent error if the saga snapshot itself is unusable (e.g. a
// Save failure).
//
// ctx cancellation is honored between steps and is passed through to
// each step's Execute/Compensate, per spec.md §5 (cooperative
// cancellation at every suspension point).
func (c *Coordinator[TData]) Process(ctx context.Context, inst *Instance[TData]) error {
	if inst.State().IsTerminal() {
		return nil
	}

	// Resume straight into compensation after a restart that found the
	// saga already failed or mid-compensation.
	if inst.State() == StateCompensating || inst.State() == StateFailed {
		if inst.State() == StateFailed {
			inst.MarkCompensating()
			if err := c.repo.Save(ctx, inst); err != nil {
				return err
			}
		}
		return c.compensate(ctx, inst)
	}

	if inst.State() == StateCreated {
		inst.MarkRunning()
		if err := c.repo.Save(ctx, inst); err != nil {
			return err
		}
	}

	for !inst.State().IsTerminal() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		step := inst.CurrentStep()
		if step == nil {
			inst.state = StateCompleted // cursor already == len: finalize Completed
			if err := c.repo.Save(ctx, inst); err != nil {
				return err
			}
			metrics.RecordSagaOutcome("completed")
			return nil
		}

		err := step.Execute(ctx, inst.Data())
		if err == nil {
			metrics.RecordStepExecution(step.Name(), "success")
			inst.Advance()
			if saveErr := c.repo.Save(ctx, inst); saveErr != nil {
				return saveErr
			}
			if inst.State() == StateCompleted {
				metrics.RecordSagaOutcome("completed")
				return nil
			}
			continue
		}

		if errors.Is(err, ErrRetryLater) {
			metrics.RecordStepExecution(step.Name(), "retry_later")
			if saveErr := c.repo.Save(ctx, inst); saveErr != nil {
				return saveErr
			}
			return ErrRetryLater
		}
		if errors.Is(err, ErrLostLease) {
			metrics.RecordStepExecution(step.Name(), "lost_lease")
			if saveErr := c.repo.Save(ctx, inst); saveErr != nil {
				return saveErr
			}
			return ErrLostLease
		}

		// Permanent step failure: fail forward, then compensate.
		metrics.RecordStepExecution(step.Name(), "failed")
		inst.Fail(fmt.Sprintf("%s: %v", step.Name(), err))
		inst.MarkCompensating()
		if saveErr := c.repo.Save(ctx, inst); saveErr != nil {
			return saveErr
		}
		return c.compensate(ctx, inst)
	}

	return nil
}

// compensate runs the reverse-order compensation loop of spec.md
// §4.E step 5: every executed step is compensated regardless of
// earlier compensation failures, so as many side effects as possible
// are undone before the saga is finalized.
func (c *Coordinator[TData]) compensate(ctx context.Context, inst *Instance[TData]) error {
	compensationFailed := false

	for _, executed := range inst.ExecutedStepsReverse() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := executed.Step.Compensate(ctx, inst.Data())
		if err == nil {
			continue
		}

		if errors.Is(err, ErrRetryLater) || errors.Is(err, ErrLostLease) {
			if saveErr := c.repo.Save(ctx, inst); saveErr != nil {
				return saveErr
			}
			return err
		}

		compensationFailed = true
		inst.appendCompensationFailure(executed.Step.Name(), err)
	}

	if compensationFailed {
		inst.MarkFatal("Manual review required")
	} else {
		inst.MarkCompensated()
	}

	if err := c.repo.Save(ctx, inst); err != nil {
		return err
	}

	if compensationFailed {
		metrics.RecordSagaOutcome("fatal")
		logging.Warn("saga finalized with unresolved compensation", map[string]interface{}{
			"saga_id": inst.ID(),
		})
	} else {
		metrics.RecordSagaOutcome("compensated")
	}
	return nil
}
