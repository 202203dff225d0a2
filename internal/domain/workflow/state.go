package workflow

import "github.com/garyjia/people-workflow/internal/domain/entity"

// State is the lifecycle status of an instance step
type State string

const (
	StatePending    State = entity.StepStatusPending
	StateInProgress State = entity.StepStatusInProgress
	StateCompleted  State = entity.StepStatusCompleted
	StateSkipped    State = entity.StepStatusSkipped
	StateBlocked    State = entity.StepStatusBlocked
)

var validStates = map[State]bool{
	StatePending:    true,
	StateInProgress: true,
	StateCompleted:  true,
	StateSkipped:    true,
	StateBlocked:    true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateSkipped:   true,
}

// IsTerminal returns true if the step counts toward instance completion
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known step status
func (s State) IsValid() bool {
	return validStates[s]
}
