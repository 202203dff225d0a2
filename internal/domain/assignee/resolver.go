// Package assignee turns a step's assignment policy into a concrete person id.
package assignee

import (
	"context"
	"fmt"

	"github.com/garyjia/people-workflow/internal/domain/entity"
)

// Directory answers the people questions the resolver needs
type Directory interface {
	// RoleHolders returns the ids of everyone holding roleID in orgID
	RoleHolders(ctx context.Context, orgID, roleID string) ([]string, error)

	// ManagerOf returns the manager of personID, or "" when there is none
	ManagerOf(ctx context.Context, orgID, personID string) (string, error)
}

// Binding identifies the entity and actor an instance is created for
type Binding struct {
	OrgID       string
	EntityType  string
	EntityID    string
	TriggeredBy string
}

// Result is the outcome of resolving one step. An empty AssigneeID means the
// step is left unassigned; Reason then explains why.
type Result struct {
	AssigneeID string
	Reason     string
}

// Assigned reports whether a person was resolved
func (r Result) Assigned() bool {
	return r.AssigneeID != ""
}

// Resolve applies policy for one step. It never fails: lookup errors and
// empty results leave the step unassigned so instantiation can proceed.
func Resolve(ctx context.Context, policy entity.AssignmentPolicy, defaultAssigneeID string, b Binding, dir Directory) Result {
	switch policy.Kind {
	case entity.AssignmentRole:
		return resolveRole(ctx, policy.RoleID, defaultAssigneeID, b, dir)

	case entity.AssignmentSpecificUser:
		return withDefault(Result{AssigneeID: policy.UserID, Reason: reasonIf(policy.UserID == "", "no user configured")}, defaultAssigneeID)

	case entity.AssignmentDynamicCreator:
		return withDefault(Result{AssigneeID: b.TriggeredBy, Reason: reasonIf(b.TriggeredBy == "", "event carried no actor")}, defaultAssigneeID)

	case entity.AssignmentDynamicManager:
		if b.EntityType != entity.EntityTypePerson {
			return withDefault(Result{Reason: "manager policy needs a person entity"}, defaultAssigneeID)
		}
		if dir == nil {
			return withDefault(Result{Reason: "no directory available"}, defaultAssigneeID)
		}
		manager, err := dir.ManagerOf(ctx, b.OrgID, b.EntityID)
		if err != nil {
			return withDefault(Result{Reason: fmt.Sprintf("manager lookup failed: %v", err)}, defaultAssigneeID)
		}
		return withDefault(Result{AssigneeID: manager, Reason: reasonIf(manager == "", "person has no manager")}, defaultAssigneeID)

	case entity.AssignmentUnassigned, "":
		return Result{}

	default:
		return Result{Reason: fmt.Sprintf("unknown assignment policy %q", policy.Kind)}
	}
}

// resolveRole keeps the configured default only while it still holds the
// role. Otherwise the step stays unassigned even when exactly one person
// holds the role.
func resolveRole(ctx context.Context, roleID, defaultAssigneeID string, b Binding, dir Directory) Result {
	if roleID == "" {
		return Result{Reason: "no role configured"}
	}
	if dir == nil {
		return Result{Reason: "no directory available"}
	}

	holders, err := dir.RoleHolders(ctx, b.OrgID, roleID)
	if err != nil {
		return Result{Reason: fmt.Sprintf("role lookup failed: %v", err)}
	}

	if defaultAssigneeID != "" {
		for _, h := range holders {
			if h == defaultAssigneeID {
				return Result{AssigneeID: defaultAssigneeID}
			}
		}
		return Result{Reason: fmt.Sprintf("default assignee %s no longer holds role %s", defaultAssigneeID, roleID)}
	}

	return Result{Reason: fmt.Sprintf("role %s has %d holders and no default assignee", roleID, len(holders))}
}

func withDefault(r Result, defaultAssigneeID string) Result {
	if r.AssigneeID == "" && defaultAssigneeID != "" {
		return Result{AssigneeID: defaultAssigneeID}
	}
	return r
}

func reasonIf(cond bool, reason string) string {
	if cond {
		return reason
	}
	return ""
}
