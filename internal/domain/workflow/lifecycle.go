package workflow

import "sync"

var (
	stepLifecycleOnce    sync.Once
	stepLifecycleBuilder StateMachineBuilder
)

// stepLifecycle returns the shared step transition table.
//
//	pending     -> in_progress | blocked | skipped
//	in_progress -> completed | skipped | blocked
//	blocked     -> pending | in_progress
//
// completed and skipped have no outgoing transitions.
func stepLifecycle() StateMachineBuilder {
	stepLifecycleOnce.Do(func() {
		b := NewBuilder()

		b.Configure(StatePending).
			Permit(TriggerStart, StateInProgress).
			Permit(TriggerBlock, StateBlocked).
			Permit(TriggerSkip, StateSkipped)

		b.Configure(StateInProgress).
			Permit(TriggerComplete, StateCompleted).
			Permit(TriggerSkip, StateSkipped).
			Permit(TriggerBlock, StateBlocked)

		b.Configure(StateBlocked).
			Permit(TriggerUnblock, StatePending).
			Permit(TriggerResume, StateInProgress)

		stepLifecycleBuilder = b
	})
	return stepLifecycleBuilder
}

// NewStepMachine returns a machine for a step currently in status
func NewStepMachine(status string) (StateMachine, error) {
	return stepLifecycle().Build(State(status))
}

// CanTransition reports whether a step may move directly from one status to another
func CanTransition(from, to string) bool {
	m, err := NewStepMachine(from)
	if err != nil {
		return false
	}
	for _, s := range m.PermittedTargets() {
		if s == State(to) {
			return true
		}
	}
	return false
}

var stepStatusOrder = []State{StatePending, StateInProgress, StateBlocked, StateCompleted, StateSkipped}

// AllowedTransitions lists the statuses a step in from may be advanced to
func AllowedTransitions(from string) []string {
	out := make([]string, 0, len(stepStatusOrder))
	for _, to := range stepStatusOrder {
		if CanTransition(from, string(to)) {
			out = append(out, string(to))
		}
	}
	return out
}
