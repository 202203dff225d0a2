package trigger

import (
	"context"
	"fmt"

	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
)

// SettingsSource loads an organization's trigger settings
type SettingsSource interface {
	Get(ctx context.Context, orgID string) (*entity.TriggerSettings, error)
}

// DirectorySync records directory facts carried by an event, such as a
// person's manager, before the event can start a workflow
type DirectorySync interface {
	SyncFromEvent(ctx context.Context, evt event.EntityEvent) error
}

// Service feeds events to the processor with each organization's settings
type Service struct {
	processor *Processor
	settings  SettingsSource
	directory DirectorySync
	logger    Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithDirectorySync syncs the directory from each valid event first
func WithDirectorySync(d DirectorySync) ServiceOption {
	return func(s *Service) {
		s.directory = d
	}
}

// NewService creates a new trigger Service
func NewService(processor *Processor, settings SettingsSource, logger Logger, opts ...ServiceOption) *Service {
	s := &Service{
		processor: processor,
		settings:  settings,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle processes one event with the settings of its organization
func (s *Service) Handle(ctx context.Context, evt event.EntityEvent) Result {
	return s.HandleBatch(ctx, []event.EntityEvent{evt})
}

// HandleBatch processes events, loading each organization's settings once
func (s *Service) HandleBatch(ctx context.Context, events []event.EntityEvent) Result {
	res := newResult()
	loaded := make(map[string]*entity.TriggerSettings)

	for _, evt := range events {
		settings, ok := loaded[evt.OrgID]
		if !ok && evt.OrgID != "" {
			var err error
			settings, err = s.settings.Get(ctx, evt.OrgID)
			if err != nil {
				s.logger.Error("Failed to load trigger settings", "org_id", evt.OrgID, "error", err)
				res.Errors = append(res.Errors, fmt.Sprintf("%s %s: load settings: %v", evt.Type, evt.EntityID, err))
				continue
			}
			loaded[evt.OrgID] = settings
		}
		s.syncDirectory(ctx, evt)
		res.merge(s.processor.Handle(ctx, evt, settings))
	}
	return res
}

// syncDirectory never blocks the event; resolution degrades to unassigned
func (s *Service) syncDirectory(ctx context.Context, evt event.EntityEvent) {
	if s.directory == nil || evt.Validate() != nil {
		return
	}
	if err := s.directory.SyncFromEvent(ctx, evt); err != nil {
		s.logger.Warn("Failed to sync directory from event",
			"type", evt.Type,
			"entity_id", evt.EntityID,
			"error", err)
	}
}
