package entity

import "time"

// TriggerRule maps one inbound event kind to a template
type TriggerRule struct {
	Kind       string   `json:"kind" mapstructure:"kind" yaml:"kind"`
	Enabled    bool     `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	TemplateID int64    `json:"template_id" mapstructure:"template_id" yaml:"template_id"`
	OnStatuses []string `json:"on_statuses,omitempty" mapstructure:"on_statuses" yaml:"on_statuses,omitempty"`
}

// MatchesStatus reports whether the rule fires for the given new status.
// An empty filter matches every status.
func (r TriggerRule) MatchesStatus(status string) bool {
	if len(r.OnStatuses) == 0 {
		return true
	}
	for _, s := range r.OnStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// TriggerSettings is an organization's event-to-template configuration
type TriggerSettings struct {
	OrgID     string        `json:"org_id"`
	Rules     []TriggerRule `json:"rules"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RuleFor returns the rule configured for an event kind
func (s *TriggerSettings) RuleFor(kind string) (TriggerRule, bool) {
	if s == nil {
		return TriggerRule{}, false
	}
	for _, r := range s.Rules {
		if r.Kind == kind {
			return r, true
		}
	}
	return TriggerRule{}, false
}
