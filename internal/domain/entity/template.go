package entity

import "time"

// Template is a reusable workflow definition owned by an organization
type Template struct {
	ID             int64     `json:"id"`
	OrgID          string    `json:"org_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Module         string    `json:"module"`
	TriggerType    string    `json:"trigger_type,omitempty"`
	Status         string    `json:"status"`
	Enabled        bool      `json:"enabled"`
	DefaultOwnerID string    `json:"default_owner_id,omitempty"`
	DefaultDueDays *int      `json:"default_due_days,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsEligible reports whether the template may be instantiated
func (t *Template) IsEligible() bool {
	return t.Status == TemplateStatusActive && t.Enabled
}

// AssignmentPolicy describes how a step's assignee is chosen at instantiation
type AssignmentPolicy struct {
	Kind   string `json:"kind" yaml:"kind"`
	UserID string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	RoleID string `json:"role_id,omitempty" yaml:"role_id,omitempty"`
}

// TemplateStep is one step definition inside a template.
// ParentStepID is nil for root-level steps.
type TemplateStep struct {
	ID                int64            `json:"id"`
	TemplateID        int64            `json:"template_id"`
	ParentStepID      *int64           `json:"parent_step_id,omitempty"`
	OrderIndex        int              `json:"order_index"`
	Kind              string           `json:"kind"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	Assignment        AssignmentPolicy `json:"assignment"`
	DefaultAssigneeID string           `json:"default_assignee_id,omitempty"`
	DueOffsetDays     *int             `json:"due_offset_days,omitempty"`
	DueAnchor         string           `json:"due_anchor"`
	Required          bool             `json:"required"`
	AttachmentPolicy  string           `json:"attachment_policy,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// IsRoot reports whether the step has no parent
func (s *TemplateStep) IsRoot() bool {
	return s.ParentStepID == nil
}

// TemplateEdge is a directed transition between two template steps, used only
// by graph progression.
type TemplateEdge struct {
	ID              int64     `json:"id"`
	TemplateID      int64     `json:"template_id"`
	FromStepID      int64     `json:"from_step_id"`
	ToStepID        int64     `json:"to_step_id"`
	Condition       string    `json:"condition"`
	ConditionConfig string    `json:"condition_config,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
