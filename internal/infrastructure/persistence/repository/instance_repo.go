package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/infrastructure/persistence/sqlstore"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sqlstore.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `id, template_id, org_id, module, entity_type, entity_id, entity_name, name,
	status, owner_id, triggered_by, started_at, due_at, completed_at,
	total_steps, completed_steps, created_at, updated_at`

// Create inserts a workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.Instance) error {
	now := utcNow()

	query := `
		INSERT INTO workflow_instances (
			template_id, org_id, module, entity_type, entity_id, entity_name, name,
			status, owner_id, triggered_by, started_at, due_at, completed_at,
			total_steps, completed_steps, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	id, err := r.db.Insert(ctx, query,
		instance.TemplateID,
		instance.OrgID,
		instance.Module,
		instance.EntityType,
		instance.EntityID,
		instance.EntityName,
		instance.Name,
		instance.Status,
		instance.OwnerID,
		instance.TriggeredBy,
		instance.StartedAt,
		instance.DueAt,
		instance.CompletedAt,
		instance.TotalSteps,
		instance.CompletedSteps,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create instance",
			zap.Int64("template_id", instance.TemplateID),
			zap.String("entity_id", instance.EntityID),
			zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	instance.ID = id
	instance.CreatedAt = now
	instance.UpdatedAt = now
	return nil
}

// GetByID retrieves an instance by ID, returning nil when absent
func (r *InstanceRepository) GetByID(ctx context.Context, id int64) (*entity.Instance, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate retrieves an instance and locks its row for the rest of the
// transaction
func (r *InstanceRepository) GetForUpdate(ctx context.Context, id int64) (*entity.Instance, error) {
	if !sqlstore.InTransaction(ctx) {
		return nil, fmt.Errorf("GetForUpdate requires a transaction")
	}
	return r.get(ctx, id, r.db.LockClause())
}

func (r *InstanceRepository) get(ctx context.Context, id int64, lock string) (*entity.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = ?` + lock

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return instance, nil
}

// UpdateStatus sets status and completion time
func (r *InstanceRepository) UpdateStatus(ctx context.Context, id int64, status string, completedAt *time.Time) error {
	query := `UPDATE workflow_instances SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, status, completedAt, utcNow(), id); err != nil {
		r.logger.Error("Failed to update instance status",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update instance status: %w", err)
	}
	return nil
}

// UpdateProgress stores the cached completed step count
func (r *InstanceRepository) UpdateProgress(ctx context.Context, id int64, completedSteps int) error {
	query := `UPDATE workflow_instances SET completed_steps = ?, updated_at = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, completedSteps, utcNow(), id); err != nil {
		r.logger.Error("Failed to update instance progress", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update instance progress: %w", err)
	}
	return nil
}

// List returns instances matching filter, newest first
func (r *InstanceRepository) List(ctx context.Context, filter port.InstanceFilter) ([]*entity.Instance, error) {
	var conds []string
	var args []interface{}

	if filter.OrgID != "" {
		conds = append(conds, "org_id = ?")
		args = append(args, filter.OrgID)
	}
	if filter.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		conds = append(conds, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.TemplateID != 0 {
		conds = append(conds, "template_id = ?")
		args = append(args, filter.TemplateID)
	}
	if len(filter.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY started_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	instances := make([]*entity.Instance, 0)
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

func scanInstance(row rowScanner) (*entity.Instance, error) {
	var instance entity.Instance
	var dueAt, completedAt sql.NullTime

	err := row.Scan(
		&instance.ID,
		&instance.TemplateID,
		&instance.OrgID,
		&instance.Module,
		&instance.EntityType,
		&instance.EntityID,
		&instance.EntityName,
		&instance.Name,
		&instance.Status,
		&instance.OwnerID,
		&instance.TriggeredBy,
		&instance.StartedAt,
		&dueAt,
		&completedAt,
		&instance.TotalSteps,
		&instance.CompletedSteps,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	instance.StartedAt = instance.StartedAt.UTC()
	instance.DueAt = nullableTime(dueAt)
	instance.CompletedAt = nullableTime(completedAt)
	return &instance, nil
}

var _ port.InstanceRepository = (*InstanceRepository)(nil)
