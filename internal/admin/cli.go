// Package admin implements the three-command operator REPL of
// spec.md §6: create a saga, resume one by id, or exit. There is no
// corresponding interactive-shell pattern in the surrounding library
// stack (the pack's CLIs are flag-based subcommand tools, not REPLs),
// so this loop is built directly on bufio.Scanner rather than forcing
// an ill-fitting dependency onto a three-command prompt.
package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"saga-orchestrator/internal/logging"
	"saga-orchestrator/internal/saga"
	"saga-orchestrator/internal/transfer"
)

// Dependencies is the subset of the composition root the CLI needs.
type Dependencies interface {
	SagaRepository() saga.Repository[transfer.Data]
	SagaSteps() []saga.Step[transfer.Data]
	SagaCoordinator() *saga.Coordinator[transfer.Data]
}

// Run drives the REPL against in and out until "exit" or EOF.
func Run(ctx context.Context, deps Dependencies, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "saga admin — commands: create, resume <id>, exit")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "create":
			handleCreate(ctx, deps, out)
		case "resume":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: resume <saga-id>")
				continue
			}
			handleResume(ctx, deps, out, fields[1])
		case "exit", "quit":
			fmt.Fprintln(out, "bye")
			return
		default:
			fmt.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
}

// handleCreate generates a synthetic transfer and persists it via
// CreateSaga, exactly the durable-write half of POST /transfers —
// dispatch still happens through the outbox worker, not inline here.
func handleCreate(ctx context.Context, deps Dependencies, out io.Writer) {
	sagaID := uuid.New().String()
	data := &transfer.Data{
		SagaID:        sagaID,
		FromAccountID: 1,
		ToAccountID:   2,
		AmountCents:   1000,
	}

	if err := deps.SagaRepository().CreateSaga(ctx, sagaID, data); err != nil {
		logging.Error("admin: create saga failed", err, nil)
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "created saga %s (from=%d to=%d amount=%d)\n", sagaID, data.FromAccountID, data.ToAccountID, data.AmountCents)
}

// handleResume loads a saga by id and drives it one more time through
// the coordinator — the same operation the outbox worker performs,
// exposed directly for operators unsticking a saga manually.
func handleResume(ctx context.Context, deps Dependencies, out io.Writer, sagaID string) {
	inst, err := deps.SagaRepository().Load(ctx, sagaID, deps.SagaSteps())
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	if inst == nil {
		fmt.Fprintf(out, "no saga found with id %s\n", sagaID)
		return
	}

	if err := deps.SagaCoordinator().Process(ctx, inst); err != nil {
		fmt.Fprintf(out, "process returned: %v\n", err)
		return
	}
	fmt.Fprintf(out, "saga %s now in state %s (cursor=%s)\n", inst.ID(), inst.State(), strconv.Itoa(inst.Cursor()))
}
