package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys shared by producers and consumers of lifecycle events
const (
	KeyStepID         = "step_id"
	KeyStepName       = "step_name"
	KeyAssigneeID     = "assignee_id"
	KeyDueAt          = "due_at"
	KeyPreviousStatus = "previous_status"
	KeyStatus         = "status"
	KeyActorID        = "actor_id"
	KeyEntityType     = "entity_type"
	KeyEntityID       = "entity_id"
	KeyEntityName     = "entity_name"
	KeyTemplateID     = "template_id"
	KeyInstanceName   = "instance_name"
	KeyReason         = "reason"
)

// Event is a lifecycle event about one workflow instance
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	OrgID         string                 `json:"org_id"`
	InstanceID    int64                  `json:"instance_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a lifecycle event with a fresh ID and timestamp
func NewEvent(eventType Type, orgID string, instanceID int64, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            id,
		Type:          eventType,
		OrgID:         orgID,
		InstanceID:    instanceID,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: id,
	}
}

// WithCorrelation links the event to an earlier one
func (e *Event) WithCorrelation(correlationID string) *Event {
	cp := *e
	cp.CorrelationID = correlationID
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
