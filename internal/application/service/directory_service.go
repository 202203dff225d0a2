package service

import (
	"context"
	"fmt"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
	"github.com/garyjia/people-workflow/pkg/utils"
)

// Person is a directory entry used by the dynamic_manager policy
type Person struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ManagerID   string `json:"manager_id"`
}

// DirectoryService maintains the local people and role read model that
// assignee resolution reads from
type DirectoryService interface {
	SavePerson(ctx context.Context, orgID string, person Person) error
	AssignRole(ctx context.Context, orgID, roleID, personID string) error
	RevokeRole(ctx context.Context, orgID, roleID, personID string) error
	RoleHolders(ctx context.Context, orgID, roleID string) ([]string, error)
	// SyncFromEvent records the manager carried by a person event. Other
	// events and person events without a manager are ignored.
	SyncFromEvent(ctx context.Context, evt event.EntityEvent) error
}

type directoryServiceImpl struct {
	repo   port.DirectoryRepository
	logger Logger
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(repo port.DirectoryRepository, logger Logger) DirectoryService {
	return &directoryServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

// SavePerson creates or replaces a person entry
func (s *directoryServiceImpl) SavePerson(ctx context.Context, orgID string, person Person) error {
	person.DisplayName = utils.SanitizeString(person.DisplayName)
	if err := s.validate(orgID, "person_id", person.ID); err != nil {
		return err
	}
	if person.ManagerID != "" {
		if err := utils.ValidateIdentifier("manager_id", person.ManagerID); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDirectoryEntry, err)
		}
		if person.ManagerID == person.ID {
			return fmt.Errorf("%w: %s cannot manage themselves", ErrInvalidDirectoryEntry, person.ID)
		}
	}

	if err := s.repo.UpsertPerson(ctx, orgID, person.ID, person.DisplayName, person.ManagerID); err != nil {
		s.logger.Error("Failed to save person", "error", err, "org_id", orgID, "person_id", person.ID)
		return err
	}
	s.logger.Info("Directory person saved", "org_id", orgID, "person_id", person.ID, "manager_id", person.ManagerID)
	return nil
}

// AssignRole grants roleID to personID
func (s *directoryServiceImpl) AssignRole(ctx context.Context, orgID, roleID, personID string) error {
	if err := s.validateGrant(orgID, roleID, personID); err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, orgID, roleID, personID); err != nil {
		s.logger.Error("Failed to assign role", "error", err, "org_id", orgID, "role_id", roleID)
		return err
	}
	s.logger.Info("Role assigned", "org_id", orgID, "role_id", roleID, "person_id", personID)
	return nil
}

// RevokeRole removes roleID from personID
func (s *directoryServiceImpl) RevokeRole(ctx context.Context, orgID, roleID, personID string) error {
	if err := s.validateGrant(orgID, roleID, personID); err != nil {
		return err
	}
	if err := s.repo.RevokeRole(ctx, orgID, roleID, personID); err != nil {
		s.logger.Error("Failed to revoke role", "error", err, "org_id", orgID, "role_id", roleID)
		return err
	}
	s.logger.Info("Role revoked", "org_id", orgID, "role_id", roleID, "person_id", personID)
	return nil
}

// RoleHolders lists the people holding roleID
func (s *directoryServiceImpl) RoleHolders(ctx context.Context, orgID, roleID string) ([]string, error) {
	if err := s.validate(orgID, "role_id", roleID); err != nil {
		return nil, err
	}
	return s.repo.RoleHolders(ctx, orgID, roleID)
}

// SyncFromEvent upserts the person named by a person event
func (s *directoryServiceImpl) SyncFromEvent(ctx context.Context, evt event.EntityEvent) error {
	if evt.Type.EntityType() != entity.EntityTypePerson || evt.ManagerID == "" {
		return nil
	}
	return s.SavePerson(ctx, evt.OrgID, Person{
		ID:          evt.EntityID,
		DisplayName: evt.EntityName,
		ManagerID:   evt.ManagerID,
	})
}

func (s *directoryServiceImpl) validate(orgID, field, id string) error {
	if err := utils.ValidateIdentifier("org_id", orgID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDirectoryEntry, err)
	}
	if err := utils.ValidateIdentifier(field, id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDirectoryEntry, err)
	}
	return nil
}

func (s *directoryServiceImpl) validateGrant(orgID, roleID, personID string) error {
	if err := s.validate(orgID, "role_id", roleID); err != nil {
		return err
	}
	if err := utils.ValidateIdentifier("person_id", personID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDirectoryEntry, err)
	}
	return nil
}
