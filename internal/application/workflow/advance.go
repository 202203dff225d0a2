package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/garyjia/people-workflow/internal/domain/duedate"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
)

// AdvanceStep moves one step to the requested status. When the step becomes
// terminal the instance progress is recounted and either the instance
// completes or the next step is promoted.
func (e *engineImpl) AdvanceStep(ctx context.Context, req AdvanceRequest) (result *AdvanceResult, err error) {
	ctx, span := e.startSpan(ctx, "advance_step")
	span.SetAttributes(
		attribute.Int64("step.id", req.StepID),
		attribute.String("step.target", req.Status),
	)
	defer func() { endSpan(span, err) }()

	target := domainwf.State(req.Status)
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domainwf.ErrInvalidState, req.Status)
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		res, err := e.advanceInTx(txCtx, req, target)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.StepTransition(result.PreviousStatus, result.Step.Status)
	if result.Promoted != nil {
		e.metrics.StepTransition(entity.StepStatusPending, entity.StepStatusInProgress)
	}
	if result.InstanceCompleted {
		e.metrics.InstanceCompleted(result.Instance.Module)
	}

	e.logger.Info("Step advanced",
		"step_id", result.Step.ID,
		"instance_id", result.Instance.ID,
		"from", result.PreviousStatus,
		"to", result.Step.Status,
		"actor_id", req.ActorID)

	e.emitAdvance(ctx, req, result)
	return result, nil
}

func (e *engineImpl) advanceInTx(ctx context.Context, req AdvanceRequest, target domainwf.State) (*AdvanceResult, error) {
	located, err := e.steps.GetByID(ctx, req.StepID)
	if err != nil {
		return nil, err
	}
	if located == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrStepNotFound, req.StepID)
	}

	inst, err := e.instances.GetForUpdate(ctx, located.InstanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrInstanceNotFound, located.InstanceID)
	}
	if inst.IsTerminal() {
		return nil, fmt.Errorf("%w: instance %d is %s", domainwf.ErrInstanceTerminal, inst.ID, inst.Status)
	}
	if inst.Status == entity.InstanceStatusOnHold {
		return nil, fmt.Errorf("%w: instance %d", domainwf.ErrInstanceOnHold, inst.ID)
	}

	// Re-read every step under the instance lock
	all, err := e.steps.ListByInstance(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	step := findStep(all, req.StepID)
	if step == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrStepNotFound, req.StepID)
	}

	machine, err := domainwf.NewStepMachine(step.Status)
	if err != nil {
		return nil, err
	}
	if _, err := machine.TransitionTo(ctx, target); err != nil {
		return nil, fmt.Errorf("step %d: %w", step.ID, err)
	}

	if target == domainwf.StateInProgress && step.IsRoot() && e.linear() {
		if other := rootInProgress(all, step.ID); other != nil {
			return nil, fmt.Errorf("%w: root step %d is already in progress", domainwf.ErrInvalidTransition, other.ID)
		}
	}

	now := e.now()
	previous := step.Status
	step.Status = target.String()
	if target == domainwf.StateInProgress && step.StartedAt == nil {
		startedAt := now
		step.StartedAt = &startedAt
	}
	if target == domainwf.StateInProgress && step.DueAt == nil && step.DueAnchor == entity.DueAnchorPreviousStep {
		// started by hand after a deferred promotion
		base := now
		if prev := domainwf.Predecessor(step, all); prev != nil {
			base = *prev.CompletedAt
		}
		step.DueAt = duedate.Recompute(base, step.DueOffsetDays, step.DueAnchor)
	}
	if target.IsTerminal() {
		completedAt := now
		step.CompletedAt = &completedAt
		step.CompletedByID = req.ActorID
	}
	step.Notes = appendNotes(step.Notes, req.Notes)

	if err := e.steps.Update(ctx, step); err != nil {
		return nil, err
	}

	result := &AdvanceResult{
		Step:           step,
		PreviousStatus: previous,
		Instance:       inst,
	}
	if !target.IsTerminal() {
		return result, nil
	}

	finished, err := e.steps.CountTerminal(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	if err := e.instances.UpdateProgress(ctx, inst.ID, finished); err != nil {
		return nil, err
	}
	inst.CompletedSteps = finished

	if finished >= inst.TotalSteps {
		completedAt := now
		if err := e.instances.UpdateStatus(ctx, inst.ID, entity.InstanceStatusCompleted, &completedAt); err != nil {
			return nil, err
		}
		inst.Status = entity.InstanceStatusCompleted
		inst.CompletedAt = &completedAt
		result.InstanceCompleted = true
		return result, nil
	}

	promoted, err := e.promoteNext(ctx, inst, step, all)
	if err != nil {
		return nil, err
	}
	result.Promoted = promoted
	return result, nil
}

// promoteNext starts the step the selector picks after done, if any
func (e *engineImpl) promoteNext(ctx context.Context, inst *entity.Instance, done *entity.InstanceStep, all []*entity.InstanceStep) (*entity.InstanceStep, error) {
	var edges []*entity.TemplateEdge
	if e.selector.Name() == domainwf.ProgressionGraph {
		var err error
		edges, err = e.templates.ListEdges(ctx, inst.TemplateID)
		if err != nil {
			return nil, err
		}
	}

	next := e.selector.Next(done, all, edges)
	if next == nil {
		return nil, nil
	}
	if next.IsRoot() && e.linear() {
		if other := rootInProgress(all, next.ID); other != nil {
			e.logger.Info("Promotion deferred while another root step is in progress",
				"instance_id", inst.ID,
				"next_step_id", next.ID,
				"active_step_id", other.ID)
			return nil, nil
		}
	}

	startedAt := *done.CompletedAt
	next.Status = entity.StepStatusInProgress
	next.StartedAt = &startedAt
	if due := duedate.Recompute(startedAt, next.DueOffsetDays, next.DueAnchor); due != nil {
		next.DueAt = due
	}

	if err := e.steps.Update(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (e *engineImpl) linear() bool {
	return e.selector.Name() == domainwf.ProgressionLinear
}

func (e *engineImpl) emitAdvance(ctx context.Context, req AdvanceRequest, result *AdvanceResult) {
	inst := result.Instance
	advanced := event.NewEvent(event.TypeStepAdvanced, inst.OrgID, inst.ID, map[string]interface{}{
		event.KeyStepID:         result.Step.ID,
		event.KeyStepName:       result.Step.Name,
		event.KeyPreviousStatus: result.PreviousStatus,
		event.KeyStatus:         result.Step.Status,
		event.KeyActorID:        req.ActorID,
	})

	events := []*event.Event{advanced}
	if result.Step.Status == entity.StepStatusInProgress && result.PreviousStatus != entity.StepStatusInProgress {
		events = append(events, stepStartedEvent(inst, result.Step).WithCorrelation(advanced.CorrelationID))
	}
	if result.Promoted != nil {
		events = append(events, stepStartedEvent(inst, result.Promoted).WithCorrelation(advanced.CorrelationID))
	}
	if result.InstanceCompleted {
		completed := event.NewEvent(event.TypeInstanceCompleted, inst.OrgID, inst.ID, map[string]interface{}{
			event.KeyTemplateID:   inst.TemplateID,
			event.KeyEntityType:   inst.EntityType,
			event.KeyEntityID:     inst.EntityID,
			event.KeyInstanceName: inst.Name,
			event.KeyActorID:      req.ActorID,
		})
		events = append(events, completed.WithCorrelation(advanced.CorrelationID))
	}

	e.emit(ctx, events...)
}

func findStep(steps []*entity.InstanceStep, id int64) *entity.InstanceStep {
	for _, s := range steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// rootInProgress returns a root step other than exceptID that is in progress
func rootInProgress(steps []*entity.InstanceStep, exceptID int64) *entity.InstanceStep {
	for _, s := range steps {
		if s.ID != exceptID && s.IsRoot() && s.Status == entity.StepStatusInProgress {
			return s
		}
	}
	return nil
}

func appendNotes(existing, notes string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return existing
	}
	if existing == "" {
		return notes
	}
	return existing + "\n" + notes
}
