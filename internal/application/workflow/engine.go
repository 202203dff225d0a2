package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/pkg/utils"
)

// Engine creates workflow instances from templates and moves their steps
type Engine interface {
	// Instantiate materializes an active, enabled template for one entity.
	// Validation and eligibility failures are returned as *RejectedError.
	Instantiate(ctx context.Context, req InstantiateRequest) (*entity.Instance, error)

	// AdvanceStep applies a status change to one step and, when the step
	// finishes, updates instance progress and promotes the next step
	AdvanceStep(ctx context.Context, req AdvanceRequest) (*AdvanceResult, error)

	// CancelInstance stops an instance for good
	CancelInstance(ctx context.Context, instanceID int64, actorID, reason string) (*entity.Instance, error)

	// HoldInstance pauses an instance; steps cannot advance while on hold
	HoldInstance(ctx context.Context, instanceID int64, actorID, reason string) (*entity.Instance, error)

	// ResumeInstance puts an on-hold instance back in progress
	ResumeInstance(ctx context.Context, instanceID int64, actorID string) (*entity.Instance, error)
}

// TemplateStore is the read side of the template store used at runtime
type TemplateStore interface {
	GetActiveTemplate(ctx context.Context, templateID int64, orgID string) (*entity.Template, error)
	ListSteps(ctx context.Context, templateID int64) ([]*entity.TemplateStep, error)
	ListEdges(ctx context.Context, templateID int64) ([]*entity.TemplateEdge, error)
}

// Logger is the logging dependency of the engine
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// InstantiateRequest identifies the template and the entity to bind it to
type InstantiateRequest struct {
	TemplateID  int64  `json:"template_id"`
	OrgID       string `json:"org_id"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	EntityName  string `json:"entity_name,omitempty"`
	TriggeredBy string `json:"triggered_by,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
}

// Validate checks the request before any lookup
func (r InstantiateRequest) Validate() error {
	if r.TemplateID <= 0 {
		return fmt.Errorf("template_id is required")
	}
	if err := utils.ValidateIdentifier("org_id", r.OrgID); err != nil {
		return err
	}
	if err := utils.ValidateIdentifier("entity_type", r.EntityType); err != nil {
		return err
	}
	return utils.ValidateIdentifier("entity_id", r.EntityID)
}

// AdvanceRequest asks for one step to move to Status
type AdvanceRequest struct {
	StepID  int64  `json:"step_id"`
	Status  string `json:"status"`
	ActorID string `json:"actor_id,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// AdvanceResult reports what an AdvanceStep call changed
type AdvanceResult struct {
	Step              *entity.InstanceStep `json:"step"`
	PreviousStatus    string               `json:"previous_status"`
	Instance          *entity.Instance     `json:"instance"`
	Promoted          *entity.InstanceStep `json:"promoted,omitempty"`
	InstanceCompleted bool                 `json:"instance_completed"`
}
