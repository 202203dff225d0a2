package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/duedate"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
	"github.com/garyjia/people-workflow/internal/report"
)

// ActiveStatuses are the instance statuses listed when a query names none
var ActiveStatuses = []string{
	entity.InstanceStatusPending,
	entity.InstanceStatusInProgress,
	entity.InstanceStatusOnHold,
}

// StepView is an instance step with its read-time overdue flag and the
// statuses it may be advanced to right now
type StepView struct {
	*entity.InstanceStep
	Overdue     bool     `json:"overdue"`
	Transitions []string `json:"transitions"`
}

// InstanceDetail is an instance with its steps
type InstanceDetail struct {
	Instance *entity.Instance `json:"instance"`
	Progress float64          `json:"progress"`
	Steps    []StepView       `json:"steps"`
}

// InstanceQueryService answers read queries about running workflows
type InstanceQueryService interface {
	GetInstance(ctx context.Context, id int64) (*InstanceDetail, error)
	// ListInstances defaults to active instances when filter has no statuses
	ListInstances(ctx context.Context, filter port.InstanceFilter) ([]*entity.Instance, error)
	// ExportProgress writes an xlsx progress report for an organization
	ExportProgress(ctx context.Context, orgID string, w io.Writer) error
}

type instanceQueryServiceImpl struct {
	instances port.InstanceRepository
	steps     port.InstanceStepRepository
	logger    Logger
	now       func() time.Time
}

// NewInstanceQueryService creates a new InstanceQueryService
func NewInstanceQueryService(instances port.InstanceRepository, steps port.InstanceStepRepository, logger Logger) InstanceQueryService {
	return &instanceQueryServiceImpl{
		instances: instances,
		steps:     steps,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetInstance returns an instance and its steps
func (s *instanceQueryServiceImpl) GetInstance(ctx context.Context, id int64) (*InstanceDetail, error) {
	inst, err := s.instances.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get instance", "error", err, "id", id)
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrInstanceNotFound, id)
	}

	steps, err := s.steps.ListByInstance(ctx, id)
	if err != nil {
		return nil, err
	}

	// terminal and held instances reject every advance
	advanceable := !inst.IsTerminal() && inst.Status != entity.InstanceStatusOnHold

	now := s.now()
	views := make([]StepView, 0, len(steps))
	for _, st := range steps {
		transitions := []string{}
		if advanceable {
			transitions = domainwf.AllowedTransitions(st.Status)
		}
		views = append(views, StepView{
			InstanceStep: st,
			Overdue:      duedate.IsOverdue(st.DueAt, st.Status, now),
			Transitions:  transitions,
		})
	}

	return &InstanceDetail{Instance: inst, Progress: inst.Progress(), Steps: views}, nil
}

// ListInstances returns instances matching filter
func (s *instanceQueryServiceImpl) ListInstances(ctx context.Context, filter port.InstanceFilter) ([]*entity.Instance, error) {
	if len(filter.Statuses) == 0 {
		filter.Statuses = ActiveStatuses
	}
	return s.instances.List(ctx, filter)
}

// ExportProgress writes every instance of orgID with its steps as a workbook
func (s *instanceQueryServiceImpl) ExportProgress(ctx context.Context, orgID string, w io.Writer) error {
	instances, err := s.instances.List(ctx, port.InstanceFilter{OrgID: orgID, Limit: report.MaxRows})
	if err != nil {
		return err
	}

	rows := make([]report.InstanceRow, 0, len(instances))
	for _, inst := range instances {
		steps, err := s.steps.ListByInstance(ctx, inst.ID)
		if err != nil {
			return err
		}
		rows = append(rows, report.InstanceRow{Instance: inst, Steps: steps})
	}

	if err := report.WriteProgress(w, rows, s.now()); err != nil {
		s.logger.Error("Failed to write progress report", "error", err, "org_id", orgID)
		return err
	}
	s.logger.Info("Progress report exported", "org_id", orgID, "instances", len(rows))
	return nil
}
