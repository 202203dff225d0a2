package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/infrastructure/persistence/sqlstore"
)

// SettingsRepository implements port.SettingsRepository. Rules are stored as
// a JSON array per organization.
type SettingsRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *sqlstore.DB, logger *zap.Logger) port.SettingsRepository {
	return &SettingsRepository{
		db:     db,
		logger: logger,
	}
}

// Get returns the stored settings, or nil when the organization has none
func (r *SettingsRepository) Get(ctx context.Context, orgID string) (*entity.TriggerSettings, error) {
	query := `SELECT rules, updated_at FROM workflow_trigger_settings WHERE org_id = ?`

	var raw string
	settings := entity.TriggerSettings{OrgID: orgID}
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(&raw, &settings.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get trigger settings", zap.String("org_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("failed to get trigger settings: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &settings.Rules); err != nil {
		return nil, fmt.Errorf("failed to decode trigger rules for %s: %w", orgID, err)
	}
	return &settings, nil
}

// Save replaces an organization's settings
func (r *SettingsRepository) Save(ctx context.Context, settings *entity.TriggerSettings) error {
	rules := settings.Rules
	if rules == nil {
		rules = []entity.TriggerRule{}
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to encode trigger rules: %w", err)
	}

	now := utcNow()
	query := `
		INSERT INTO workflow_trigger_settings (org_id, rules, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (org_id) DO UPDATE SET rules = excluded.rules, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, settings.OrgID, string(raw), now); err != nil {
		r.logger.Error("Failed to save trigger settings", zap.String("org_id", settings.OrgID), zap.Error(err))
		return fmt.Errorf("failed to save trigger settings: %w", err)
	}

	settings.UpdatedAt = now
	return nil
}

var _ port.SettingsRepository = (*SettingsRepository)(nil)
