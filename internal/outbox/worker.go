package outbox

import (
	"context"
	"errors"
	"time"

	"saga-orchestrator/internal/config"
	"saga-orchestrator/internal/logging"
	"saga-orchestrator/internal/metrics"
	"saga-orchestrator/internal/saga"
)

// Handler processes one message's payload. It must return
// saga.ErrRetryLater or saga.ErrLostLease (via errors.Is) for the two
// recoverable dispositions of spec.md §7; any other error is treated
// as a permanent dispatch failure.
type Handler func(ctx context.Context, payload []byte) error

// Worker runs the scout/claim/load/dispatch/finalize loop of
// spec.md §4.F. Any number of Workers can run against the same
// Repository concurrently and safely — mutual exclusion comes from
// the lease, not from in-process locking, grounded on the teacher's
// AsyncProducer goroutine + graceful-shutdown-via-context pattern
// (internal/infrastructure/messaging/kafka/async_producer.go).
type Worker struct {
	repo     Repository
	workerID string
	cfg      config.SagaConfig
	handlers map[string]Handler
}

func NewWorker(repo Repository, workerID string, cfg config.SagaConfig) *Worker {
	return &Worker{
		repo:     repo,
		workerID: workerID,
		cfg:      cfg,
		handlers: make(map[string]Handler),
	}
}

// Register wires the handler for one outbox message type. Only
// "StartSaga" is registered by the composition root today; any other
// type dispatched at runtime is logged and marked processed rather
// than looped on forever (spec.md §4.F step 4, §6 "Unknown types").
func (w *Worker) Register(messageType string, h Handler) {
	w.handlers[messageType] = h
}

// Run drives the loop until ctx is canceled. Cancellation is honored
// between iterations and while sleeping; an in-flight handler call
// receives the same ctx and is expected to abort cleanly.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !w.runOnce(ctx) {
			return
		}
	}
}

// runOnce executes a single loop iteration. It returns false only when
// the context has been canceled mid-iteration, signaling Run to stop.
func (w *Worker) runOnce(ctx context.Context) bool {
	id, found, err := w.repo.ScoutNext(ctx)
	if err != nil {
		logging.Error("outbox: scout failed", err, nil)
		return w.sleep(ctx, 5*time.Second)
	}
	if !found {
		return w.sleep(ctx, w.cfg.EmptyQueueDelay)
	}

	claimed, err := w.repo.Claim(ctx, id, w.workerID, w.cfg.LeaseTTL)
	if err != nil {
		logging.Error("outbox: claim failed", err, nil)
		return w.sleep(ctx, 5*time.Second)
	}
	if !claimed {
		// Another worker won the race: loop immediately, no sleep.
		return ctx.Err() == nil
	}

	msg, err := w.repo.Load(ctx, id)
	if err != nil || msg == nil {
		logging.Error("outbox: load failed after claim", err, map[string]interface{}{"message_id": id})
		return w.sleep(ctx, 5*time.Second)
	}

	w.dispatch(ctx, msg)
	return ctx.Err() == nil
}

func (w *Worker) dispatch(ctx context.Context, msg *Message) {
	handler, known := w.handlers[msg.Type]
	if !known {
		logging.Warn("outbox: unknown message type, marking processed", map[string]interface{}{
			"message_id": msg.ID,
			"type":       msg.Type,
		})
		if err := w.repo.Finalize(ctx, msg.ID); err != nil {
			logging.Error("outbox: finalize of unknown-type message failed", err, map[string]interface{}{"message_id": msg.ID})
		}
		metrics.RecordOutboxOutcome("unknown_type")
		return
	}

	start := time.Now()
	err := handler(ctx, msg.PayloadJSON)
	metrics.OutboxDispatchDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		if fErr := w.repo.Finalize(ctx, msg.ID); fErr != nil {
			logging.Error("outbox: finalize failed", fErr, map[string]interface{}{"message_id": msg.ID})
		}
		metrics.RecordOutboxOutcome("finalized")
		return
	}

	switch {
	case errors.Is(err, saga.ErrRetryLater):
		w.release(ctx, msg, w.cfg.TransientConflictDelay, false, err)
		metrics.RecordOutboxOutcome("retry_later")
	case errors.Is(err, saga.ErrLostLease):
		w.release(ctx, msg, w.cfg.LostLeaseDelay, true, err)
		metrics.RecordOutboxOutcome("lost_lease")
	default:
		nextAttempt := msg.AttemptCount + 1
		delay := backoffFor(nextAttempt)
		w.release(ctx, msg, delay, true, err)
		metrics.RecordOutboxOutcome("failed")
		if nextAttempt >= w.cfg.MaxAttemptsBeforeDLQ {
			logging.Warn("outbox: message exceeded max attempts, operator review required", map[string]interface{}{
				"message_id":    msg.ID,
				"attempt_count": nextAttempt,
			})
		}
	}
}

func (w *Worker) release(ctx context.Context, msg *Message, delay time.Duration, incrementAttempt bool, cause error) {
	if err := w.repo.Release(ctx, msg.ID, delay, incrementAttempt, cause.Error()); err != nil {
		logging.Error("outbox: release failed", err, map[string]interface{}{"message_id": msg.ID})
	}
}

// backoffFor implements spec.md §4.F step 6's formula: min(60s, 5s *
// (attempt_count+1)), where attemptCount is already the post-increment
// value.
func backoffFor(attemptCount int) time.Duration {
	d := time.Duration(attemptCount) * 5 * time.Second
	if d > 60*time.Second {
		return 60 * time.Second
	}
	return d
}

// sleep waits for d or ctx cancellation, whichever comes first, and
// reports whether the loop should continue.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
