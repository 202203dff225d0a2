package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a step status change is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	ErrTemplateNotFound    = errors.New("template not found")
	ErrTemplateNotEligible = errors.New("template is not active and enabled")
	ErrEmptyTemplate       = errors.New("template has no steps")
	ErrTemplateInUse       = errors.New("template has instances")
	ErrDuplicateOrderIndex = errors.New("duplicate order index among siblings")
	ErrInvalidTemplate     = errors.New("invalid template definition")

	ErrInstanceNotFound = errors.New("instance not found")
	ErrInstanceTerminal = errors.New("instance is completed or cancelled")
	ErrInstanceOnHold   = errors.New("instance is on hold")
	ErrStepNotFound     = errors.New("step not found")
)
