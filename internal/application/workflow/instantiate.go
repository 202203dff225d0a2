package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/garyjia/people-workflow/internal/domain/assignee"
	"github.com/garyjia/people-workflow/internal/domain/duedate"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
)

// plannedStep is a template step in creation order with its resolved values
type plannedStep struct {
	tpl            *entity.TemplateStep
	parent         *entity.TemplateStep
	hasPredecessor bool
	assignee       assignee.Result
}

// Instantiate creates an instance and all of its steps in one transaction
func (e *engineImpl) Instantiate(ctx context.Context, req InstantiateRequest) (inst *entity.Instance, err error) {
	ctx, span := e.startSpan(ctx, "instantiate")
	span.SetAttributes(
		attribute.Int64("template.id", req.TemplateID),
		attribute.String("org.id", req.OrgID),
		attribute.String("entity.type", req.EntityType),
		attribute.String("entity.id", req.EntityID),
	)
	defer func() { endSpan(span, err) }()

	begin := time.Now()

	if err := req.Validate(); err != nil {
		return nil, reject(fmt.Errorf("%w: %v", ErrInvalidRequest, err), err.Error())
	}

	tpl, err := e.templates.GetActiveTemplate(ctx, req.TemplateID, req.OrgID)
	if err != nil {
		if isRejectionCause(err) {
			return nil, reject(err, err.Error())
		}
		return nil, fmt.Errorf("failed to load template %d: %w", req.TemplateID, err)
	}

	tplSteps, err := e.templates.ListSteps(ctx, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of template %d: %w", tpl.ID, err)
	}
	if len(tplSteps) == 0 {
		return nil, reject(domainwf.ErrEmptyTemplate, fmt.Sprintf("template %d has no steps", tpl.ID))
	}

	plan := planSteps(tplSteps)

	binding := assignee.Binding{
		OrgID:       req.OrgID,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		TriggeredBy: req.TriggeredBy,
	}
	// Directory lookups run before the transaction so no write lock is held
	for _, p := range plan {
		p.assignee = assignee.Resolve(ctx, p.tpl.Assignment, p.tpl.DefaultAssigneeID, binding, e.directory)
		if !p.assignee.Assigned() && p.assignee.Reason != "" {
			e.logger.Warn("Step left unassigned",
				"template_id", tpl.ID,
				"template_step_id", p.tpl.ID,
				"policy", p.tpl.Assignment.Kind,
				"reason", p.assignee.Reason)
		}
	}

	now := e.now()
	owner := req.OwnerID
	if owner == "" {
		owner = tpl.DefaultOwnerID
	}

	inst = &entity.Instance{
		TemplateID:  tpl.ID,
		OrgID:       req.OrgID,
		Module:      tpl.Module,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		EntityName:  req.EntityName,
		Name:        instanceName(tpl.Name, req.EntityName),
		Status:      entity.InstanceStatusInProgress,
		OwnerID:     owner,
		TriggeredBy: req.TriggeredBy,
		StartedAt:   now,
		DueAt:       duedate.WorkflowDue(now, tpl.DefaultDueDays),
		TotalSteps:  len(plan),
	}

	var started *entity.InstanceStep
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.instances.Create(txCtx, inst); err != nil {
			return fmt.Errorf("failed to create instance: %w", err)
		}

		created := make(map[int64]int64, len(plan))
		for i, p := range plan {
			step := buildStep(inst, p, now)
			if p.parent != nil {
				parentID := created[p.parent.ID]
				step.ParentStepID = &parentID
			}
			// plan[0] is the lowest-order root
			if i == 0 {
				step.Status = entity.StepStatusInProgress
				startedAt := now
				step.StartedAt = &startedAt
			}
			if err := e.steps.Create(txCtx, step); err != nil {
				return fmt.Errorf("failed to create step %q: %w", p.tpl.Name, err)
			}
			created[p.tpl.ID] = step.ID
			if i == 0 {
				started = step
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Instantiation failed",
			"template_id", tpl.ID,
			"entity_type", req.EntityType,
			"entity_id", req.EntityID,
			"error", err)
		return nil, err
	}

	e.metrics.InstanceCreated(inst.Module)
	e.metrics.ObserveInstantiate(time.Since(begin))
	span.SetAttributes(attribute.Int64("instance.id", inst.ID))

	e.logger.Info("Workflow instance created",
		"instance_id", inst.ID,
		"template_id", tpl.ID,
		"entity_type", inst.EntityType,
		"entity_id", inst.EntityID,
		"total_steps", inst.TotalSteps)

	createdEvt := event.NewEvent(event.TypeInstanceCreated, inst.OrgID, inst.ID, map[string]interface{}{
		event.KeyTemplateID:   tpl.ID,
		event.KeyEntityType:   inst.EntityType,
		event.KeyEntityID:     inst.EntityID,
		event.KeyEntityName:   inst.EntityName,
		event.KeyInstanceName: inst.Name,
		event.KeyActorID:      inst.TriggeredBy,
	})
	e.emit(ctx, createdEvt, stepStartedEvent(inst, started).WithCorrelation(createdEvt.CorrelationID))

	return inst, nil
}

// planSteps orders template steps depth first: each sibling group by order
// index, parents before their children. Steps whose parent is not part of the
// template are treated as roots.
func planSteps(steps []*entity.TemplateStep) []*plannedStep {
	byID := make(map[int64]*entity.TemplateStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	children := make(map[int64][]*entity.TemplateStep)
	var roots []*entity.TemplateStep
	for _, s := range steps {
		if s.ParentStepID != nil {
			if _, ok := byID[*s.ParentStepID]; ok {
				children[*s.ParentStepID] = append(children[*s.ParentStepID], s)
				continue
			}
		}
		roots = append(roots, s)
	}

	plan := make([]*plannedStep, 0, len(steps))
	var walk func(group []*entity.TemplateStep, parent *entity.TemplateStep)
	walk = func(group []*entity.TemplateStep, parent *entity.TemplateStep) {
		sortSiblings(group)
		for i, s := range group {
			plan = append(plan, &plannedStep{tpl: s, parent: parent, hasPredecessor: i > 0})
			walk(children[s.ID], s)
		}
	}
	walk(roots, nil)

	return plan
}

func sortSiblings(group []*entity.TemplateStep) {
	sort.SliceStable(group, func(i, j int) bool {
		if group[i].OrderIndex != group[j].OrderIndex {
			return group[i].OrderIndex < group[j].OrderIndex
		}
		return group[i].ID < group[j].ID
	})
}

func buildStep(inst *entity.Instance, p *plannedStep, now time.Time) *entity.InstanceStep {
	tplID := p.tpl.ID
	return &entity.InstanceStep{
		InstanceID:     inst.ID,
		TemplateStepID: &tplID,
		OrderIndex:     p.tpl.OrderIndex,
		Kind:           p.tpl.Kind,
		Name:           p.tpl.Name,
		Description:    p.tpl.Description,
		Status:         entity.StepStatusPending,
		AssigneeID:     p.assignee.AssigneeID,
		DueOffsetDays:  p.tpl.DueOffsetDays,
		DueAnchor:      p.tpl.DueAnchor,
		DueAt:          duedate.Initial(now, p.tpl.DueOffsetDays, p.tpl.DueAnchor, p.hasPredecessor),
		Required:       p.tpl.Required,
	}
}

func instanceName(templateName, entityName string) string {
	if entityName == "" {
		return templateName
	}
	return templateName + " - " + entityName
}

func stepStartedEvent(inst *entity.Instance, step *entity.InstanceStep) *event.Event {
	payload := map[string]interface{}{
		event.KeyStepID:       step.ID,
		event.KeyStepName:     step.Name,
		event.KeyAssigneeID:   step.AssigneeID,
		event.KeyInstanceName: inst.Name,
	}
	if step.DueAt != nil {
		payload[event.KeyDueAt] = step.DueAt.Format(time.RFC3339)
	}
	return event.NewEvent(event.TypeStepStarted, inst.OrgID, inst.ID, payload)
}
