package event

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies an inbound business event published by another module
type Kind string

const (
	KindPersonCreated         Kind = "person.created"
	KindPersonStatusChanged   Kind = "person.status_changed"
	KindAssetCreated          Kind = "asset.created"
	KindAssetStatusChanged    Kind = "asset.status_changed"
	KindDocumentCreated       Kind = "document.created"
	KindDocumentStatusChanged Kind = "document.status_changed"
)

const statusChangedSuffix = ".status_changed"

// ErrInvalidEntityEvent is returned by EntityEvent.Validate
var ErrInvalidEntityEvent = errors.New("invalid entity event")

// IsValid checks if the kind is one of the defined constants
func (k Kind) IsValid() bool {
	switch k {
	case KindPersonCreated, KindPersonStatusChanged,
		KindAssetCreated, KindAssetStatusChanged,
		KindDocumentCreated, KindDocumentStatusChanged:
		return true
	default:
		return false
	}
}

// EntityType returns the entity prefix of the kind, e.g. "person"
func (k Kind) EntityType() string {
	prefix, _, _ := strings.Cut(string(k), ".")
	return prefix
}

// IsStatusChange reports whether the kind carries a status transition
func (k Kind) IsStatusChange() bool {
	return strings.HasSuffix(string(k), statusChangedSuffix)
}

// EntityEvent is the inbound message that may auto-start a workflow
type EntityEvent struct {
	Type              Kind   `json:"type"`
	EntityID          string `json:"entity_id"`
	EntityName        string `json:"entity_name,omitempty"`
	PreviousStatus    string `json:"previous_status,omitempty"`
	NewStatus         string `json:"new_status,omitempty"`
	OrgID             string `json:"org_id"`
	TriggeredByUserID string `json:"triggered_by_user_id,omitempty"`
	// ManagerID is set by person events and feeds the local directory
	ManagerID string `json:"manager_id,omitempty"`
}

// Validate checks the fields every event needs
func (e EntityEvent) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEntityEvent, e.Type)
	}
	if e.EntityID == "" {
		return fmt.Errorf("%w: missing entity_id", ErrInvalidEntityEvent)
	}
	if e.OrgID == "" {
		return fmt.Errorf("%w: missing org_id", ErrInvalidEntityEvent)
	}
	return nil
}

// IsNoOpStatusChange reports a status change event whose status did not move
func (e EntityEvent) IsNoOpStatusChange() bool {
	return e.Type.IsStatusChange() && e.PreviousStatus == e.NewStatus
}
