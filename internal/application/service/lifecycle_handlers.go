package service

import (
	"context"
	"time"

	"github.com/garyjia/people-workflow/internal/application/dispatcher"
	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/event"
)

// NewStepNotificationHandler tells the assignee of a started step about it.
// Unassigned steps are ignored.
func NewStepNotificationHandler(notifier port.Notifier, logger Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt.Type != event.TypeStepStarted {
			return nil
		}

		n := port.StepNotification{
			OrgID:        evt.OrgID,
			InstanceID:   evt.InstanceID,
			InstanceName: evt.GetPayloadString(event.KeyInstanceName),
			StepID:       evt.GetPayloadInt(event.KeyStepID),
			StepName:     evt.GetPayloadString(event.KeyStepName),
			AssigneeID:   evt.GetPayloadString(event.KeyAssigneeID),
		}
		if n.AssigneeID == "" {
			return nil
		}
		if raw := evt.GetPayloadString(event.KeyDueAt); raw != "" {
			if due, err := time.Parse(time.RFC3339, raw); err == nil {
				n.DueAt = &due
			}
		}

		if err := notifier.NotifyStepStarted(ctx, n); err != nil {
			logger.Warn("Step notification failed",
				"instance_id", n.InstanceID,
				"step_id", n.StepID,
				"assignee_id", n.AssigneeID,
				"error", err)
			return err
		}
		return nil
	}
}

// NewPublishHandler forwards every lifecycle event to publisher
func NewPublishHandler(publisher port.EventPublisher) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		return publisher.Publish(ctx, evt)
	}
}
