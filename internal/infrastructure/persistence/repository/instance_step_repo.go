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

// InstanceStepRepository implements port.InstanceStepRepository
type InstanceStepRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewInstanceStepRepository creates a new instance step repository
func NewInstanceStepRepository(db *sqlstore.DB, logger *zap.Logger) port.InstanceStepRepository {
	return &InstanceStepRepository{
		db:     db,
		logger: logger,
	}
}

const instanceStepColumns = `id, instance_id, template_step_id, parent_step_id, order_index, kind, name,
	description, status, assignee_id, due_offset_days, due_anchor, due_at, required,
	started_at, completed_at, completed_by_id, notes, created_at, updated_at`

// Create inserts an instance step
func (r *InstanceStepRepository) Create(ctx context.Context, step *entity.InstanceStep) error {
	now := utcNow()

	query := `
		INSERT INTO workflow_instance_steps (
			instance_id, template_step_id, parent_step_id, order_index, kind, name,
			description, status, assignee_id, due_offset_days, due_anchor, due_at, required,
			started_at, completed_at, completed_by_id, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	id, err := r.db.Insert(ctx, query,
		step.InstanceID,
		step.TemplateStepID,
		step.ParentStepID,
		step.OrderIndex,
		step.Kind,
		step.Name,
		step.Description,
		step.Status,
		step.AssigneeID,
		step.DueOffsetDays,
		step.DueAnchor,
		step.DueAt,
		step.Required,
		step.StartedAt,
		step.CompletedAt,
		step.CompletedByID,
		step.Notes,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create instance step",
			zap.Int64("instance_id", step.InstanceID),
			zap.String("name", step.Name),
			zap.Error(err))
		return fmt.Errorf("failed to create instance step: %w", err)
	}

	step.ID = id
	step.CreatedAt = now
	step.UpdatedAt = now
	return nil
}

// GetByID retrieves a step by ID, returning nil when absent
func (r *InstanceStepRepository) GetByID(ctx context.Context, id int64) (*entity.InstanceStep, error) {
	query := `SELECT ` + instanceStepColumns + ` FROM workflow_instance_steps WHERE id = ?`

	step, err := scanInstanceStep(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance step by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance step: %w", err)
	}
	return step, nil
}

// ListByInstance returns an instance's steps with roots first, then grouped
// by parent, each group in order index order
func (r *InstanceStepRepository) ListByInstance(ctx context.Context, instanceID int64) ([]*entity.InstanceStep, error) {
	query := `SELECT ` + instanceStepColumns + `
		FROM workflow_instance_steps
		WHERE instance_id = ?
		ORDER BY COALESCE(parent_step_id, 0), order_index, id`

	rows, err := r.db.QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to list instance steps", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list instance steps: %w", err)
	}
	defer rows.Close()

	steps := make([]*entity.InstanceStep, 0)
	for rows.Next() {
		step, err := scanInstanceStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// Update writes the mutable fields of a step
func (r *InstanceStepRepository) Update(ctx context.Context, step *entity.InstanceStep) error {
	now := utcNow()

	query := `
		UPDATE workflow_instance_steps SET
			status = ?, assignee_id = ?, due_at = ?, started_at = ?,
			completed_at = ?, completed_by_id = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		step.Status,
		step.AssigneeID,
		step.DueAt,
		step.StartedAt,
		step.CompletedAt,
		step.CompletedByID,
		step.Notes,
		now,
		step.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update instance step",
			zap.Int64("id", step.ID),
			zap.String("status", step.Status),
			zap.Error(err))
		return fmt.Errorf("failed to update instance step: %w", err)
	}

	step.UpdatedAt = now
	return nil
}

// CountTerminal counts completed and skipped steps of an instance
func (r *InstanceStepRepository) CountTerminal(ctx context.Context, instanceID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM workflow_instance_steps
		WHERE instance_id = ? AND status IN (?, ?)
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, instanceID, entity.StepStatusCompleted, entity.StepStatusSkipped).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count finished steps: %w", err)
	}
	return count, nil
}

func scanInstanceStep(row rowScanner) (*entity.InstanceStep, error) {
	var step entity.InstanceStep
	var templateStepID, parentID, offset sql.NullInt64
	var dueAt, startedAt, completedAt sql.NullTime

	err := row.Scan(
		&step.ID,
		&step.InstanceID,
		&templateStepID,
		&parentID,
		&step.OrderIndex,
		&step.Kind,
		&step.Name,
		&step.Description,
		&step.Status,
		&step.AssigneeID,
		&offset,
		&step.DueAnchor,
		&dueAt,
		&step.Required,
		&startedAt,
		&completedAt,
		&step.CompletedByID,
		&step.Notes,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	step.TemplateStepID = nullableID(templateStepID)
	step.ParentStepID = nullableID(parentID)
	step.DueOffsetDays = nullableInt(offset)
	step.DueAt = nullableTime(dueAt)
	step.StartedAt = nullableTime(startedAt)
	step.CompletedAt = nullableTime(completedAt)
	return &step, nil
}

var _ port.InstanceStepRepository = (*InstanceStepRepository)(nil)
