package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
)

// CancelInstance moves a non-terminal instance to cancelled
func (e *engineImpl) CancelInstance(ctx context.Context, instanceID int64, actorID, reason string) (*entity.Instance, error) {
	return e.changeInstanceStatus(ctx, instanceID, actorID, reason, entity.InstanceStatusCancelled)
}

// HoldInstance pauses an in-progress instance
func (e *engineImpl) HoldInstance(ctx context.Context, instanceID int64, actorID, reason string) (*entity.Instance, error) {
	return e.changeInstanceStatus(ctx, instanceID, actorID, reason, entity.InstanceStatusOnHold)
}

// ResumeInstance returns an on-hold instance to in_progress
func (e *engineImpl) ResumeInstance(ctx context.Context, instanceID int64, actorID string) (*entity.Instance, error) {
	return e.changeInstanceStatus(ctx, instanceID, actorID, "", entity.InstanceStatusInProgress)
}

var instanceStatusEvents = map[string]event.Type{
	entity.InstanceStatusCancelled:  event.TypeInstanceCancelled,
	entity.InstanceStatusOnHold:     event.TypeInstanceOnHold,
	entity.InstanceStatusInProgress: event.TypeInstanceResumed,
}

func (e *engineImpl) changeInstanceStatus(ctx context.Context, instanceID int64, actorID, reason, status string) (inst *entity.Instance, err error) {
	ctx, span := e.startSpan(ctx, "set_instance_status")
	span.SetAttributes(
		attribute.Int64("instance.id", instanceID),
		attribute.String("instance.target", status),
	)
	defer func() { endSpan(span, err) }()

	var previous string
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.instances.GetForUpdate(txCtx, instanceID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %d", domainwf.ErrInstanceNotFound, instanceID)
		}
		if current.IsTerminal() {
			return fmt.Errorf("%w: instance %d is %s", domainwf.ErrInstanceTerminal, current.ID, current.Status)
		}
		if err := checkInstanceTransition(current.Status, status); err != nil {
			return fmt.Errorf("instance %d: %w", current.ID, err)
		}

		if err := e.instances.UpdateStatus(txCtx, current.ID, status, nil); err != nil {
			return err
		}
		previous = current.Status
		current.Status = status
		inst = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Instance status changed",
		"instance_id", inst.ID,
		"from", previous,
		"to", status,
		"actor_id", actorID)

	e.emit(ctx, event.NewEvent(instanceStatusEvents[status], inst.OrgID, inst.ID, map[string]interface{}{
		event.KeyPreviousStatus: previous,
		event.KeyStatus:         status,
		event.KeyActorID:        actorID,
		event.KeyReason:         reason,
	}))

	return inst, nil
}

// checkInstanceTransition allows cancel from any live status, hold only from
// in_progress and resume only from on_hold
func checkInstanceTransition(from, to string) error {
	switch to {
	case entity.InstanceStatusCancelled:
		return nil
	case entity.InstanceStatusOnHold:
		if from == entity.InstanceStatusInProgress || from == entity.InstanceStatusPending {
			return nil
		}
	case entity.InstanceStatusInProgress:
		if from == entity.InstanceStatusOnHold {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", domainwf.ErrInvalidTransition, from, to)
}
