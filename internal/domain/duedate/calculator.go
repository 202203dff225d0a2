// Package duedate computes step and workflow deadlines from day offsets.
package duedate

import (
	"time"

	"github.com/garyjia/people-workflow/internal/domain/entity"
)

const day = 24 * time.Hour

func addDays(t time.Time, days int) *time.Time {
	due := t.Add(time.Duration(days) * day)
	return &due
}

// WorkflowDue returns the instance deadline, or nil when the template sets none
func WorkflowDue(start time.Time, defaultDueDays *int) *time.Time {
	if defaultDueDays == nil {
		return nil
	}
	return addDays(start, *defaultDueDays)
}

// Initial returns a step's due date at instantiation. Steps anchored to the
// previous step stay unset until that predecessor completes, unless they are
// first among their siblings.
func Initial(start time.Time, offsetDays *int, anchor string, hasPredecessor bool) *time.Time {
	if offsetDays == nil {
		return nil
	}
	if anchor == entity.DueAnchorPreviousStep && hasPredecessor {
		return nil
	}
	return addDays(start, *offsetDays)
}

// Recompute returns the due date of a step promoted after its predecessor
// completed. Only previous-step anchors move; nil means keep the current value.
func Recompute(predecessorDoneAt time.Time, offsetDays *int, anchor string) *time.Time {
	if offsetDays == nil || anchor != entity.DueAnchorPreviousStep {
		return nil
	}
	return addDays(predecessorDoneAt, *offsetDays)
}

// IsOverdue reports whether a step in status with deadline due is late at now
func IsOverdue(due *time.Time, status string, now time.Time) bool {
	if due == nil {
		return false
	}
	if status == entity.StepStatusCompleted || status == entity.StepStatusSkipped {
		return false
	}
	return now.After(*due)
}
