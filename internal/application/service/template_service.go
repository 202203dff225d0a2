package service

import (
	"context"
	"fmt"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
	"github.com/garyjia/people-workflow/pkg/utils"
)

// TemplateDetail is a template with its steps and edges
type TemplateDetail struct {
	Template *entity.Template       `json:"template"`
	Steps    []*entity.TemplateStep `json:"steps"`
	Edges    []*entity.TemplateEdge `json:"edges"`
}

// TemplateService manages workflow templates
type TemplateService interface {
	CreateTemplate(ctx context.Context, tpl *entity.Template) error
	GetTemplate(ctx context.Context, id int64) (*TemplateDetail, error)
	// GetActiveTemplate returns a template that may be instantiated by orgID
	GetActiveTemplate(ctx context.Context, templateID int64, orgID string) (*entity.Template, error)
	ListTemplates(ctx context.Context, orgID, module string) ([]*entity.Template, error)
	SetStatus(ctx context.Context, id int64, status string) (*entity.Template, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) (*entity.Template, error)
	DeleteTemplate(ctx context.Context, id int64) error

	AddStep(ctx context.Context, step *entity.TemplateStep) error
	// ListSteps returns steps ordered by parent then order index, roots first
	ListSteps(ctx context.Context, templateID int64) ([]*entity.TemplateStep, error)
	AddEdge(ctx context.Context, edge *entity.TemplateEdge) error
	ListEdges(ctx context.Context, templateID int64) ([]*entity.TemplateEdge, error)
}

type templateServiceImpl struct {
	repo      port.TemplateRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(repo port.TemplateRepository, txManager port.TransactionManager, logger Logger) TemplateService {
	return &templateServiceImpl{
		repo:      repo,
		txManager: txManager,
		logger:    logger,
	}
}

// CreateTemplate validates and stores a new template. New templates start as drafts.
func (s *templateServiceImpl) CreateTemplate(ctx context.Context, tpl *entity.Template) error {
	tpl.Name = utils.SanitizeString(tpl.Name)
	if tpl.Name == "" {
		return fmt.Errorf("%w: name is required", domainwf.ErrInvalidTemplate)
	}
	if err := utils.ValidateIdentifier("org_id", tpl.OrgID); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrInvalidTemplate, err)
	}
	if err := utils.ValidateIdentifier("module", tpl.Module); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrInvalidTemplate, err)
	}
	if tpl.DefaultDueDays != nil && *tpl.DefaultDueDays < 0 {
		return fmt.Errorf("%w: default_due_days must not be negative", domainwf.ErrInvalidTemplate)
	}
	if tpl.Status == "" {
		tpl.Status = entity.TemplateStatusDraft
	}
	// activation goes through SetStatus once steps exist
	if err := utils.OneOf("status", tpl.Status, entity.TemplateStatusDraft); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrInvalidTemplate, err)
	}

	if err := s.repo.Create(ctx, tpl); err != nil {
		s.logger.Error("Failed to create template", "error", err, "name", tpl.Name)
		return err
	}

	s.logger.Info("Template created", "id", tpl.ID, "org_id", tpl.OrgID, "name", tpl.Name)
	return nil
}

// GetTemplate returns a template with its steps and edges
func (s *templateServiceImpl) GetTemplate(ctx context.Context, id int64) (*TemplateDetail, error) {
	tpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.repo.ListSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	edges, err := s.repo.ListEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TemplateDetail{Template: tpl, Steps: steps, Edges: edges}, nil
}

// GetActiveTemplate returns ErrTemplateNotFound for a template outside orgID
// and ErrTemplateNotEligible for one that is not active and enabled
func (s *templateServiceImpl) GetActiveTemplate(ctx context.Context, templateID int64, orgID string) (*entity.Template, error) {
	tpl, err := s.repo.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil || tpl.OrgID != orgID {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrTemplateNotFound, templateID)
	}
	if !tpl.IsEligible() {
		return nil, fmt.Errorf("%w: template %d is %s (enabled=%t)", domainwf.ErrTemplateNotEligible, tpl.ID, tpl.Status, tpl.Enabled)
	}
	return tpl, nil
}

// ListTemplates lists an organization's templates, optionally for one module
func (s *templateServiceImpl) ListTemplates(ctx context.Context, orgID, module string) ([]*entity.Template, error) {
	return s.repo.List(ctx, orgID, module)
}

var templateTransitions = map[string]string{
	entity.TemplateStatusDraft:  entity.TemplateStatusActive,
	entity.TemplateStatusActive: entity.TemplateStatusArchived,
}

// SetStatus moves a template forward through draft, active and archived.
// Activation needs at least one step.
func (s *templateServiceImpl) SetStatus(ctx context.Context, id int64, status string) (*entity.Template, error) {
	tpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl.Status == status {
		return tpl, nil
	}
	if templateTransitions[tpl.Status] != status {
		return nil, fmt.Errorf("%w: template %s -> %s", domainwf.ErrInvalidTransition, tpl.Status, status)
	}

	if status == entity.TemplateStatusActive {
		steps, err := s.repo.ListSteps(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(steps) == 0 {
			return nil, fmt.Errorf("%w: %d", domainwf.ErrEmptyTemplate, id)
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.logger.Info("Template status changed", "id", id, "from", tpl.Status, "to", status)
	tpl.Status = status
	return tpl, nil
}

// SetEnabled toggles whether an active template may be instantiated
func (s *templateServiceImpl) SetEnabled(ctx context.Context, id int64, enabled bool) (*entity.Template, error) {
	tpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetEnabled(ctx, id, enabled); err != nil {
		return nil, err
	}
	tpl.Enabled = enabled
	return tpl, nil
}

// DeleteTemplate removes a template that no instance references
func (s *templateServiceImpl) DeleteTemplate(ctx context.Context, id int64) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.load(txCtx, id); err != nil {
			return err
		}
		n, err := s.repo.CountInstances(txCtx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d instance(s) reference template %d", domainwf.ErrTemplateInUse, n, id)
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return err
		}
		s.logger.Info("Template deleted", "id", id)
		return nil
	})
}

// AddStep validates a step definition and appends it to its template
func (s *templateServiceImpl) AddStep(ctx context.Context, step *entity.TemplateStep) error {
	applyStepDefaults(step)
	if err := validateStep(step); err != nil {
		return err
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		tpl, err := s.load(txCtx, step.TemplateID)
		if err != nil {
			return err
		}
		if tpl.Status == entity.TemplateStatusArchived {
			return fmt.Errorf("%w: template %d is archived", domainwf.ErrInvalidTemplate, tpl.ID)
		}

		if step.ParentStepID != nil {
			parent, err := s.repo.GetStep(txCtx, *step.ParentStepID)
			if err != nil {
				return err
			}
			if parent == nil || parent.TemplateID != step.TemplateID {
				return fmt.Errorf("%w: parent step %d is not part of template %d", domainwf.ErrInvalidTemplate, *step.ParentStepID, step.TemplateID)
			}
		}

		existing, err := s.repo.ListSteps(txCtx, step.TemplateID)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if sameParent(other.ParentStepID, step.ParentStepID) && other.OrderIndex == step.OrderIndex {
				return fmt.Errorf("%w: order index %d is taken by %q", domainwf.ErrDuplicateOrderIndex, step.OrderIndex, other.Name)
			}
		}

		if err := s.repo.CreateStep(txCtx, step); err != nil {
			return err
		}
		s.logger.Info("Template step added", "template_id", step.TemplateID, "step_id", step.ID, "name", step.Name)
		return nil
	})
}

// ListSteps returns the steps of a template
func (s *templateServiceImpl) ListSteps(ctx context.Context, templateID int64) ([]*entity.TemplateStep, error) {
	return s.repo.ListSteps(ctx, templateID)
}

// AddEdge links two steps of the same template
func (s *templateServiceImpl) AddEdge(ctx context.Context, edge *entity.TemplateEdge) error {
	if edge.Condition == "" {
		edge.Condition = entity.EdgeAlways
	}
	if err := utils.OneOf("condition", edge.Condition,
		entity.EdgeAlways, entity.EdgeIfApproved, entity.EdgeIfRejected, entity.EdgeConditional); err != nil {
		return fmt.Errorf("%w: %v", domainwf.ErrInvalidTemplate, err)
	}
	if edge.FromStepID == edge.ToStepID {
		return fmt.Errorf("%w: edge cannot point at its own step", domainwf.ErrInvalidTemplate)
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.load(txCtx, edge.TemplateID); err != nil {
			return err
		}
		for _, id := range []int64{edge.FromStepID, edge.ToStepID} {
			step, err := s.repo.GetStep(txCtx, id)
			if err != nil {
				return err
			}
			if step == nil || step.TemplateID != edge.TemplateID {
				return fmt.Errorf("%w: step %d is not part of template %d", domainwf.ErrInvalidTemplate, id, edge.TemplateID)
			}
		}
		return s.repo.CreateEdge(txCtx, edge)
	})
}

// ListEdges returns the edges of a template
func (s *templateServiceImpl) ListEdges(ctx context.Context, templateID int64) ([]*entity.TemplateEdge, error) {
	return s.repo.ListEdges(ctx, templateID)
}

func (s *templateServiceImpl) load(ctx context.Context, id int64) (*entity.Template, error) {
	tpl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrTemplateNotFound, id)
	}
	return tpl, nil
}

func applyStepDefaults(step *entity.TemplateStep) {
	step.Name = utils.SanitizeString(step.Name)
	if step.Kind == "" {
		step.Kind = entity.StepKindTask
	}
	if step.Assignment.Kind == "" {
		step.Assignment.Kind = entity.AssignmentUnassigned
	}
	if step.DueAnchor == "" {
		step.DueAnchor = entity.DueAnchorWorkflowStart
	}
	if step.AttachmentPolicy == "" {
		step.AttachmentPolicy = entity.AttachmentNone
	}
}

func validateStep(step *entity.TemplateStep) error {
	if step.Name == "" {
		return fmt.Errorf("%w: step name is required", domainwf.ErrInvalidTemplate)
	}
	if step.OrderIndex < 0 {
		return fmt.Errorf("%w: order_index must not be negative", domainwf.ErrInvalidTemplate)
	}
	if step.DueOffsetDays != nil && *step.DueOffsetDays < 0 {
		return fmt.Errorf("%w: due_offset_days must not be negative", domainwf.ErrInvalidTemplate)
	}

	checks := []error{
		utils.OneOf("kind", step.Kind,
			entity.StepKindTask, entity.StepKindNotification, entity.StepKindGateway, entity.StepKindGroup),
		utils.OneOf("assignment.kind", step.Assignment.Kind,
			entity.AssignmentSpecificUser, entity.AssignmentRole, entity.AssignmentDynamicManager,
			entity.AssignmentDynamicCreator, entity.AssignmentUnassigned),
		utils.OneOf("due_anchor", step.DueAnchor, entity.DueAnchorWorkflowStart, entity.DueAnchorPreviousStep),
		utils.OneOf("attachment_policy", step.AttachmentPolicy,
			entity.AttachmentNone, entity.AttachmentOptional, entity.AttachmentRequired),
	}
	for _, err := range checks {
		if err != nil {
			return fmt.Errorf("%w: %v", domainwf.ErrInvalidTemplate, err)
		}
	}

	switch step.Assignment.Kind {
	case entity.AssignmentRole:
		if step.Assignment.RoleID == "" {
			return fmt.Errorf("%w: role assignment needs role_id", domainwf.ErrInvalidTemplate)
		}
	case entity.AssignmentSpecificUser:
		if step.Assignment.UserID == "" && step.DefaultAssigneeID == "" {
			return fmt.Errorf("%w: specific_user assignment needs user_id", domainwf.ErrInvalidTemplate)
		}
	}
	return nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
