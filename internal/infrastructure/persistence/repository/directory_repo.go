package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/infrastructure/persistence/sqlstore"
)

// DirectoryRepository implements port.DirectoryRepository over the local
// people and role tables
type DirectoryRepository struct {
	db     *sqlstore.DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *sqlstore.DB, logger *zap.Logger) port.DirectoryRepository {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// RoleHolders returns the people holding a role, sorted by id
func (r *DirectoryRepository) RoleHolders(ctx context.Context, orgID, roleID string) ([]string, error) {
	query := `
		SELECT person_id FROM directory_role_assignments
		WHERE org_id = ? AND role_id = ?
		ORDER BY person_id
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, roleID)
	if err != nil {
		r.logger.Error("Failed to list role holders",
			zap.String("org_id", orgID),
			zap.String("role_id", roleID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list role holders: %w", err)
	}
	defer rows.Close()

	holders := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role holder: %w", err)
		}
		holders = append(holders, id)
	}
	return holders, rows.Err()
}

// ManagerOf returns a person's manager, or "" when unknown
func (r *DirectoryRepository) ManagerOf(ctx context.Context, orgID, personID string) (string, error) {
	query := `SELECT manager_id FROM directory_people WHERE org_id = ? AND id = ?`

	var manager string
	err := r.db.QueryRowContext(ctx, query, orgID, personID).Scan(&manager)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get manager: %w", err)
	}
	return manager, nil
}

// UpsertPerson creates or updates a directory entry
func (r *DirectoryRepository) UpsertPerson(ctx context.Context, orgID, personID, displayName, managerID string) error {
	query := `
		INSERT INTO directory_people (org_id, id, display_name, manager_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (org_id, id) DO UPDATE SET
			display_name = excluded.display_name,
			manager_id = excluded.manager_id
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, personID, displayName, managerID); err != nil {
		return fmt.Errorf("failed to upsert person: %w", err)
	}
	return nil
}

// AssignRole grants a role; granting twice is a no-op
func (r *DirectoryRepository) AssignRole(ctx context.Context, orgID, roleID, personID string) error {
	query := `
		INSERT INTO directory_role_assignments (org_id, role_id, person_id)
		VALUES (?, ?, ?)
		ON CONFLICT (org_id, role_id, person_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, roleID, personID); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RevokeRole removes a role grant; revoking a missing grant is a no-op
func (r *DirectoryRepository) RevokeRole(ctx context.Context, orgID, roleID, personID string) error {
	query := `
		DELETE FROM directory_role_assignments
		WHERE org_id = ? AND role_id = ? AND person_id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, roleID, personID); err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}

var _ port.DirectoryRepository = (*DirectoryRepository)(nil)
