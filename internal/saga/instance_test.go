package saga

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type noopStep struct{ name string }

func (s noopStep) Name() string                               { return s.name }
func (s noopStep) Execute(ctx context.Context, data *int) error { return nil }
func (s noopStep) Compensate(ctx context.Context, data *int) error { return nil }

func TestInstance_AdvanceCompletesAfterLastStep(t *testing.T) {
	data := 0
	steps := []Step[int]{noopStep{"a"}, noopStep{"b"}}
	inst := NewInstance("s1", &data, steps)
	inst.MarkRunning()

	inst.Advance()
	assert.Equal(t, StateRunning, inst.State())
	assert.Equal(t, 1, inst.Cursor())

	inst.Advance()
	assert.Equal(t, StateCompleted, inst.State())
	assert.Equal(t, 2, inst.Cursor())
}

func TestInstance_CurrentStepReturnsNilPastEnd(t *testing.T) {
	data := 0
	steps := []Step[int]{noopStep{"a"}}
	inst := NewInstance("s1", &data, steps)
	inst.MarkRunning()
	inst.Advance()

	assert.Nil(t, inst.CurrentStep())
}

func TestInstance_MarkRunningIsNoOpOutsideCreated(t *testing.T) {
	data := 0
	inst := NewInstance("s1", &data, nil)
	inst.MarkRunning()
	inst.MarkRunning()
	assert.Equal(t, StateRunning, inst.State())
}

func TestInstance_FailIsNoOpFromTerminalState(t *testing.T) {
	data := 0
	inst := NewInstance("s1", &data, nil)
	inst.LoadState(StateCompleted, 0, nil)
	inst.Fail("boom")
	assert.Equal(t, StateCompleted, inst.State())
	assert.Empty(t, inst.ErrorLog())
}

func TestInstance_LoadStateSelfHealsCompletedWhenCursorAtEnd(t *testing.T) {
	data := 0
	steps := []Step[int]{noopStep{"a"}}
	inst := NewInstance("s1", &data, steps)
	inst.LoadState(StateRunning, 1, nil)
	assert.Equal(t, StateCompleted, inst.State())
}

func TestInstance_ExecutedStepsReverseOrdersFromCursorDown(t *testing.T) {
	data := 0
	steps := []Step[int]{noopStep{"a"}, noopStep{"b"}, noopStep{"c"}}
	inst := NewInstance("s1", &data, steps)
	inst.MarkRunning()
	inst.Advance()
	inst.Advance()

	executed := inst.ExecutedStepsReverse()
	assert.Len(t, executed, 2)
	assert.Equal(t, "b", executed[0].Step.Name())
	assert.Equal(t, "a", executed[1].Step.Name())
}

func TestInstance_MarkCompensatingValidFromFailedOrRunning(t *testing.T) {
	data := 0
	inst := NewInstance("s1", &data, nil)
	inst.LoadState(StateFailed, 0, nil)
	inst.MarkCompensating()
	assert.Equal(t, StateCompensating, inst.State())

	running := NewInstance("s2", &data, nil)
	running.MarkRunning()
	running.MarkCompensating()
	assert.Equal(t, StateCompensating, running.State())
}

func TestInstance_MarkFatalAppendsReasonAndFinalizes(t *testing.T) {
	data := 0
	inst := NewInstance("s1", &data, nil)
	inst.LoadState(StateCompensating, 0, nil)
	inst.MarkFatal("manual review required")
	assert.Equal(t, StateFatalError, inst.State())
	assert.Contains(t, inst.ErrorLog(), "manual review required")
}
