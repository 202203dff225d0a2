package workflow

import (
	"errors"

	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
)

// ErrInvalidRequest marks a request that failed field validation
var ErrInvalidRequest = errors.New("invalid request")

// RejectedError reports that an instantiation request was refused before any
// write happened. Err carries the underlying sentinel.
type RejectedError struct {
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	return "instantiation rejected: " + e.Reason
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

func reject(err error, reason string) *RejectedError {
	return &RejectedError{Reason: reason, Err: err}
}

// IsRejected reports whether err is a RejectedError
func IsRejected(err error) bool {
	var rej *RejectedError
	return errors.As(err, &rej)
}

// isRejectionCause lists template lookup failures that become rejections
func isRejectionCause(err error) bool {
	return errors.Is(err, domainwf.ErrTemplateNotFound) ||
		errors.Is(err, domainwf.ErrTemplateNotEligible) ||
		errors.Is(err, domainwf.ErrEmptyTemplate)
}
