package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
	"github.com/garyjia/people-workflow/pkg/utils"
)

// SettingsService reads and writes per-organization trigger settings
type SettingsService interface {
	// Get returns the stored settings, or the configured defaults when the
	// organization has saved none
	Get(ctx context.Context, orgID string) (*entity.TriggerSettings, error)
	Save(ctx context.Context, settings *entity.TriggerSettings) (*entity.TriggerSettings, error)
}

type settingsServiceImpl struct {
	repo      port.SettingsRepository
	templates port.TemplateRepository
	defaults  []entity.TriggerRule
	logger    Logger
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(repo port.SettingsRepository, templates port.TemplateRepository, defaults []entity.TriggerRule, logger Logger) SettingsService {
	return &settingsServiceImpl{
		repo:      repo,
		templates: templates,
		defaults:  defaults,
		logger:    logger,
	}
}

// Get loads settings for orgID
func (s *settingsServiceImpl) Get(ctx context.Context, orgID string) (*entity.TriggerSettings, error) {
	stored, err := s.repo.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}

	rules := make([]entity.TriggerRule, len(s.defaults))
	copy(rules, s.defaults)
	return &entity.TriggerSettings{OrgID: orgID, Rules: rules}, nil
}

// Save validates and replaces an organization's settings
func (s *settingsServiceImpl) Save(ctx context.Context, settings *entity.TriggerSettings) (*entity.TriggerSettings, error) {
	if err := utils.ValidateIdentifier("org_id", settings.OrgID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	seen := make(map[string]bool, len(settings.Rules))
	for _, rule := range settings.Rules {
		if !event.Kind(rule.Kind).IsValid() {
			return nil, fmt.Errorf("%w: unknown event kind %q", ErrInvalidSettings, rule.Kind)
		}
		if seen[rule.Kind] {
			return nil, fmt.Errorf("%w: duplicate rule for %s", ErrInvalidSettings, rule.Kind)
		}
		seen[rule.Kind] = true

		if rule.TemplateID == 0 {
			if rule.Enabled {
				return nil, fmt.Errorf("%w: enabled rule %s needs template_id", ErrInvalidSettings, rule.Kind)
			}
			continue
		}
		tpl, err := s.templates.GetByID(ctx, rule.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl == nil || tpl.OrgID != settings.OrgID {
			return nil, fmt.Errorf("%w: rule %s: %d", domainwf.ErrTemplateNotFound, rule.Kind, rule.TemplateID)
		}
	}

	settings.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, settings); err != nil {
		s.logger.Error("Failed to save trigger settings", "error", err, "org_id", settings.OrgID)
		return nil, err
	}

	s.logger.Info("Trigger settings saved", "org_id", settings.OrgID, "rules", len(settings.Rules))
	return settings, nil
}
