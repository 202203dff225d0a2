package workflow

import "context"

// StateMachine tracks a step's current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// TransitionTo fires whichever trigger leads from the current state to
	// the target state and returns it
	TransitionTo(ctx context.Context, target State) (Trigger, error)

	// PermittedTargets returns the states reachable in one transition
	PermittedTargets() []State
}
