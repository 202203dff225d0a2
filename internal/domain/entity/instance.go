package entity

import "time"

// Instance is a live run of a template bound to one entity
type Instance struct {
	ID             int64      `json:"id"`
	TemplateID     int64      `json:"template_id"`
	OrgID          string     `json:"org_id"`
	Module         string     `json:"module"`
	EntityType     string     `json:"entity_type"`
	EntityID       string     `json:"entity_id"`
	EntityName     string     `json:"entity_name,omitempty"`
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	OwnerID        string     `json:"owner_id,omitempty"`
	TriggeredBy    string     `json:"triggered_by,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TotalSteps     int        `json:"total_steps"`
	CompletedSteps int        `json:"completed_steps"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the instance accepts no further step changes
func (i *Instance) IsTerminal() bool {
	return i.Status == InstanceStatusCompleted || i.Status == InstanceStatusCancelled
}

// Progress returns completion as a percentage in [0, 100]
func (i *Instance) Progress() float64 {
	if i.TotalSteps <= 0 {
		return 0
	}
	return float64(i.CompletedSteps) * 100 / float64(i.TotalSteps)
}

// InstanceStep is a concrete, assignable copy of a template step
type InstanceStep struct {
	ID             int64      `json:"id"`
	InstanceID     int64      `json:"instance_id"`
	TemplateStepID *int64     `json:"template_step_id,omitempty"`
	ParentStepID   *int64     `json:"parent_step_id,omitempty"`
	OrderIndex     int        `json:"order_index"`
	Kind           string     `json:"kind"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status"`
	AssigneeID     string     `json:"assignee_id,omitempty"`
	DueOffsetDays  *int       `json:"due_offset_days,omitempty"`
	DueAnchor      string     `json:"due_anchor"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	Required       bool       `json:"required"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CompletedByID  string     `json:"completed_by_id,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsRoot reports whether the step has no parent
func (s *InstanceStep) IsRoot() bool {
	return s.ParentStepID == nil
}

// IsTerminal reports whether the step counts toward instance completion
func (s *InstanceStep) IsTerminal() bool {
	return s.Status == StepStatusCompleted || s.Status == StepStatusSkipped
}
