package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/infrastructure/persistence/sqlstore"
)

// TemplateRepository implements port.TemplateRepository
type TemplateRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sqlstore.DB, logger *zap.Logger) port.TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

const templateColumns = `id, org_id, name, description, module, trigger_type, status, enabled,
	default_owner_id, default_due_days, created_at, updated_at`

// Create inserts a template
func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.Template) error {
	now := utcNow()
	if tpl.Status == "" {
		tpl.Status = entity.TemplateStatusDraft
	}
	if tpl.TriggerType == "" {
		tpl.TriggerType = entity.TriggerTypeManual
	}

	query := `
		INSERT INTO workflow_templates (
			org_id, name, description, module, trigger_type, status, enabled,
			default_owner_id, default_due_days, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	id, err := r.db.Insert(ctx, query,
		tpl.OrgID,
		tpl.Name,
		tpl.Description,
		tpl.Module,
		tpl.TriggerType,
		tpl.Status,
		tpl.Enabled,
		tpl.DefaultOwnerID,
		tpl.DefaultDueDays,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create template", zap.String("name", tpl.Name), zap.Error(err))
		return fmt.Errorf("failed to create template: %w", err)
	}

	tpl.ID = id
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	return nil
}

// GetByID retrieves a template by ID, returning nil when absent
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*entity.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM workflow_templates WHERE id = ?`

	tpl, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get template by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

// List returns an organization's templates, optionally filtered by module
func (r *TemplateRepository) List(ctx context.Context, orgID, module string) ([]*entity.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM workflow_templates WHERE org_id = ?`
	args := []interface{}{orgID}
	if module != "" {
		query += ` AND module = ?`
		args = append(args, module)
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list templates", zap.String("org_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*entity.Template, 0)
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// UpdateStatus sets the lifecycle status
func (r *TemplateRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE workflow_templates SET status = ?, updated_at = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, status, utcNow(), id); err != nil {
		r.logger.Error("Failed to update template status", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update template status: %w", err)
	}
	return nil
}

// SetEnabled toggles the enabled flag
func (r *TemplateRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	query := `UPDATE workflow_templates SET enabled = ?, updated_at = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, enabled, utcNow(), id); err != nil {
		r.logger.Error("Failed to update template enabled flag", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update template enabled flag: %w", err)
	}
	return nil
}

// Delete removes a template with its steps and edges. Instances referencing
// it make the foreign key reject the delete.
func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM workflow_templates WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete template", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}

// CountInstances counts instances created from a template
func (r *TemplateRepository) CountInstances(ctx context.Context, templateID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_instances WHERE template_id = ?`, templateID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count template instances: %w", err)
	}
	return count, nil
}

const templateStepColumns = `id, template_id, parent_step_id, order_index, kind, name, description,
	assignment_kind, assignment_user_id, assignment_role_id, default_assignee_id,
	due_offset_days, due_anchor, required, attachment_policy, created_at`

// CreateStep inserts a template step
func (r *TemplateRepository) CreateStep(ctx context.Context, step *entity.TemplateStep) error {
	now := utcNow()
	if step.DueAnchor == "" {
		step.DueAnchor = entity.DueAnchorWorkflowStart
	}
	if step.Assignment.Kind == "" {
		step.Assignment.Kind = entity.AssignmentUnassigned
	}
	if step.AttachmentPolicy == "" {
		step.AttachmentPolicy = entity.AttachmentNone
	}

	query := `
		INSERT INTO workflow_template_steps (
			template_id, parent_step_id, order_index, kind, name, description,
			assignment_kind, assignment_user_id, assignment_role_id, default_assignee_id,
			due_offset_days, due_anchor, required, attachment_policy, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	id, err := r.db.Insert(ctx, query,
		step.TemplateID,
		step.ParentStepID,
		step.OrderIndex,
		step.Kind,
		step.Name,
		step.Description,
		step.Assignment.Kind,
		step.Assignment.UserID,
		step.Assignment.RoleID,
		step.DefaultAssigneeID,
		step.DueOffsetDays,
		step.DueAnchor,
		step.Required,
		step.AttachmentPolicy,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create template step",
			zap.Int64("template_id", step.TemplateID),
			zap.String("name", step.Name),
			zap.Error(err))
		return fmt.Errorf("failed to create template step: %w", err)
	}

	step.ID = id
	step.CreatedAt = now
	return nil
}

// GetStep retrieves a template step by ID, returning nil when absent
func (r *TemplateRepository) GetStep(ctx context.Context, id int64) (*entity.TemplateStep, error) {
	query := `SELECT ` + templateStepColumns + ` FROM workflow_template_steps WHERE id = ?`

	step, err := scanTemplateStep(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template step: %w", err)
	}
	return step, nil
}

// ListSteps returns a template's steps with roots first, then grouped by
// parent, each group in order index order
func (r *TemplateRepository) ListSteps(ctx context.Context, templateID int64) ([]*entity.TemplateStep, error) {
	query := `SELECT ` + templateStepColumns + `
		FROM workflow_template_steps
		WHERE template_id = ?
		ORDER BY COALESCE(parent_step_id, 0), order_index, id`

	rows, err := r.db.QueryContext(ctx, query, templateID)
	if err != nil {
		r.logger.Error("Failed to list template steps", zap.Int64("template_id", templateID), zap.Error(err))
		return nil, fmt.Errorf("failed to list template steps: %w", err)
	}
	defer rows.Close()

	steps := make([]*entity.TemplateStep, 0)
	for rows.Next() {
		step, err := scanTemplateStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// CreateEdge inserts a template edge
func (r *TemplateRepository) CreateEdge(ctx context.Context, edge *entity.TemplateEdge) error {
	now := utcNow()
	if edge.Condition == "" {
		edge.Condition = entity.EdgeAlways
	}

	query := `
		INSERT INTO workflow_template_edges (
			template_id, from_step_id, to_step_id, condition, condition_config, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	id, err := r.db.Insert(ctx, query,
		edge.TemplateID,
		edge.FromStepID,
		edge.ToStepID,
		edge.Condition,
		edge.ConditionConfig,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create template edge", zap.Int64("template_id", edge.TemplateID), zap.Error(err))
		return fmt.Errorf("failed to create template edge: %w", err)
	}

	edge.ID = id
	edge.CreatedAt = now
	return nil
}

// ListEdges returns a template's edges in creation order
func (r *TemplateRepository) ListEdges(ctx context.Context, templateID int64) ([]*entity.TemplateEdge, error) {
	query := `
		SELECT id, template_id, from_step_id, to_step_id, condition, condition_config, created_at
		FROM workflow_template_edges
		WHERE template_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list template edges: %w", err)
	}
	defer rows.Close()

	edges := make([]*entity.TemplateEdge, 0)
	for rows.Next() {
		var e entity.TemplateEdge
		if err := rows.Scan(&e.ID, &e.TemplateID, &e.FromStepID, &e.ToStepID, &e.Condition, &e.ConditionConfig, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template edge: %w", err)
		}
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

func scanTemplate(row rowScanner) (*entity.Template, error) {
	var tpl entity.Template
	var dueDays sql.NullInt64

	err := row.Scan(
		&tpl.ID,
		&tpl.OrgID,
		&tpl.Name,
		&tpl.Description,
		&tpl.Module,
		&tpl.TriggerType,
		&tpl.Status,
		&tpl.Enabled,
		&tpl.DefaultOwnerID,
		&dueDays,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tpl.DefaultDueDays = nullableInt(dueDays)
	return &tpl, nil
}

func scanTemplateStep(row rowScanner) (*entity.TemplateStep, error) {
	var step entity.TemplateStep
	var parentID, offset sql.NullInt64

	err := row.Scan(
		&step.ID,
		&step.TemplateID,
		&parentID,
		&step.OrderIndex,
		&step.Kind,
		&step.Name,
		&step.Description,
		&step.Assignment.Kind,
		&step.Assignment.UserID,
		&step.Assignment.RoleID,
		&step.DefaultAssigneeID,
		&offset,
		&step.DueAnchor,
		&step.Required,
		&step.AttachmentPolicy,
		&step.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	step.ParentStepID = nullableID(parentID)
	step.DueOffsetDays = nullableInt(offset)
	return &step, nil
}

var _ port.TemplateRepository = (*TemplateRepository)(nil)
