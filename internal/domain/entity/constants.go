package entity

// Trigger type for templates started by hand
const TriggerTypeManual = "manual"

// Template lifecycle status
const (
	TemplateStatusDraft    = "draft"
	TemplateStatusActive   = "active"
	TemplateStatusArchived = "archived"
)

// Template step kinds
const (
	StepKindTask         = "task"
	StepKindNotification = "notification"
	StepKindGateway      = "gateway"
	StepKindGroup        = "group"
)

// Attachment policies
const (
	AttachmentNone     = "none"
	AttachmentOptional = "optional"
	AttachmentRequired = "required"
)

// Assignment policy kinds
const (
	AssignmentSpecificUser   = "specific_user"
	AssignmentRole           = "role"
	AssignmentDynamicManager = "dynamic_manager"
	AssignmentDynamicCreator = "dynamic_creator"
	AssignmentUnassigned     = "unassigned"
)

// Due date anchors
const (
	DueAnchorWorkflowStart = "workflow_start"
	DueAnchorPreviousStep  = "previous_step_completion"
)

// Edge conditions for graph progression
const (
	EdgeAlways      = "always"
	EdgeIfApproved  = "if_approved"
	EdgeIfRejected  = "if_rejected"
	EdgeConditional = "conditional"
)

// Instance status
const (
	InstanceStatusPending    = "pending"
	InstanceStatusInProgress = "in_progress"
	InstanceStatusCompleted  = "completed"
	InstanceStatusCancelled  = "cancelled"
	InstanceStatusOnHold     = "on_hold"
)

// Instance step status
const (
	StepStatusPending    = "pending"
	StepStatusInProgress = "in_progress"
	StepStatusCompleted  = "completed"
	StepStatusSkipped    = "skipped"
	StepStatusBlocked    = "blocked"
)

// Entity types a workflow can be bound to
const (
	EntityTypePerson   = "person"
	EntityTypeAsset    = "asset"
	EntityTypeDocument = "document"
)

// Owning modules
const (
	ModulePeople    = "people"
	ModuleAssets    = "assets"
	ModuleDocuments = "documents"
)
