package port

import (
	"context"
	"time"

	"github.com/garyjia/people-workflow/internal/domain/entity"
)

// TemplateRepository defines persistence operations for templates, their
// steps and their edges
type TemplateRepository interface {
	Create(ctx context.Context, tpl *entity.Template) error
	GetByID(ctx context.Context, id int64) (*entity.Template, error)
	List(ctx context.Context, orgID, module string) ([]*entity.Template, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	Delete(ctx context.Context, id int64) error
	CountInstances(ctx context.Context, templateID int64) (int, error)

	CreateStep(ctx context.Context, step *entity.TemplateStep) error
	GetStep(ctx context.Context, id int64) (*entity.TemplateStep, error)
	ListSteps(ctx context.Context, templateID int64) ([]*entity.TemplateStep, error)

	CreateEdge(ctx context.Context, edge *entity.TemplateEdge) error
	ListEdges(ctx context.Context, templateID int64) ([]*entity.TemplateEdge, error)
}

// InstanceFilter narrows instance listings. Empty fields match everything.
type InstanceFilter struct {
	OrgID      string
	EntityType string
	EntityID   string
	TemplateID int64
	Statuses   []string
	Limit      int
	Offset     int
}

// InstanceRepository defines persistence operations for workflow instances
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.Instance) error
	GetByID(ctx context.Context, id int64) (*entity.Instance, error)
	// GetForUpdate reads the instance and holds its row lock until the
	// surrounding transaction ends
	GetForUpdate(ctx context.Context, id int64) (*entity.Instance, error)
	UpdateStatus(ctx context.Context, id int64, status string, completedAt *time.Time) error
	UpdateProgress(ctx context.Context, id int64, completedSteps int) error
	List(ctx context.Context, filter InstanceFilter) ([]*entity.Instance, error)
}

// InstanceStepRepository defines persistence operations for instance steps
type InstanceStepRepository interface {
	Create(ctx context.Context, step *entity.InstanceStep) error
	GetByID(ctx context.Context, id int64) (*entity.InstanceStep, error)
	ListByInstance(ctx context.Context, instanceID int64) ([]*entity.InstanceStep, error)
	Update(ctx context.Context, step *entity.InstanceStep) error
	// CountTerminal counts completed and skipped steps of an instance
	CountTerminal(ctx context.Context, instanceID int64) (int, error)
}

// SettingsRepository stores per-organization trigger settings
type SettingsRepository interface {
	Get(ctx context.Context, orgID string) (*entity.TriggerSettings, error)
	Save(ctx context.Context, settings *entity.TriggerSettings) error
}

// DirectoryRepository is the local read model of people, managers and roles
type DirectoryRepository interface {
	RoleHolders(ctx context.Context, orgID, roleID string) ([]string, error)
	ManagerOf(ctx context.Context, orgID, personID string) (string, error)
	UpsertPerson(ctx context.Context, orgID, personID, displayName, managerID string) error
	AssignRole(ctx context.Context, orgID, roleID, personID string) error
	RevokeRole(ctx context.Context, orgID, roleID, personID string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
