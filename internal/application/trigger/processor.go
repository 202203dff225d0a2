// Package trigger starts workflows in reaction to entity events.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/application/workflow"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
)

// Outcomes reported to metrics
const (
	OutcomeTriggered = "triggered"
	OutcomeInvalid   = "invalid"
	OutcomeNoOp      = "noop"
	OutcomeNoRule    = "no_rule"
	OutcomeFiltered  = "filtered"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
	OutcomePanic     = "panic"
)

// DefaultGuardTTL is how long a trigger key suppresses repeats
const DefaultGuardTTL = 10 * time.Minute

// Instantiator creates workflow instances
type Instantiator interface {
	Instantiate(ctx context.Context, req workflow.InstantiateRequest) (*entity.Instance, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// InstanceRef identifies an instance started by an event
type InstanceRef struct {
	InstanceID int64  `json:"instance_id"`
	TemplateID int64  `json:"template_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

// Result is the outcome of handling one or more events. Both slices are
// always non-nil.
type Result struct {
	Triggered []InstanceRef `json:"triggered"`
	Errors    []string      `json:"errors"`
}

func newResult() Result {
	return Result{Triggered: []InstanceRef{}, Errors: []string{}}
}

func (r *Result) merge(other Result) {
	r.Triggered = append(r.Triggered, other.Triggered...)
	r.Errors = append(r.Errors, other.Errors...)
}

// Processor routes entity events to template instantiation
type Processor struct {
	engine   Instantiator
	guard    port.TriggerGuard
	guardTTL time.Duration
	metrics  port.Metrics
	logger   Logger
}

// Option configures the processor
type Option func(*Processor)

// WithGuard enables duplicate suppression through guard
func WithGuard(guard port.TriggerGuard, ttl time.Duration) Option {
	return func(p *Processor) {
		p.guard = guard
		if ttl > 0 {
			p.guardTTL = ttl
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m port.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithLogger sets the processor logger
func WithLogger(l Logger) Option {
	return func(p *Processor) {
		p.logger = l
	}
}

// NewProcessor creates a new Processor
func NewProcessor(engine Instantiator, opts ...Option) *Processor {
	p := &Processor{
		engine:   engine,
		guardTTL: DefaultGuardTTL,
		metrics:  port.NopMetrics{},
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle processes one event against settings. It never panics; every
// failure is reported in Result.Errors.
func (p *Processor) Handle(ctx context.Context, evt event.EntityEvent, settings *entity.TriggerSettings) (res Result) {
	res = newResult()
	kind := string(evt.Type)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Trigger handling panicked", "type", kind, "entity_id", evt.EntityID, "panic", r)
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: panic: %v", kind, evt.EntityID, r))
			p.metrics.TriggerOutcome(kind, OutcomePanic)
		}
	}()

	if err := evt.Validate(); err != nil {
		res.Errors = append(res.Errors, err.Error())
		p.metrics.TriggerOutcome(kind, OutcomeInvalid)
		return res
	}

	if evt.IsNoOpStatusChange() {
		p.metrics.TriggerOutcome(kind, OutcomeNoOp)
		return res
	}

	rule, ok := settings.RuleFor(kind)
	if !ok || !rule.Enabled || rule.TemplateID == 0 {
		p.logger.Info("No enabled trigger rule", "org_id", evt.OrgID, "type", kind)
		p.metrics.TriggerOutcome(kind, OutcomeNoRule)
		return res
	}

	if evt.Type.IsStatusChange() && !rule.MatchesStatus(evt.NewStatus) {
		p.metrics.TriggerOutcome(kind, OutcomeFiltered)
		return res
	}

	key := guardKey(evt, rule.TemplateID)
	held := false
	if p.guard != nil {
		acquired, err := p.guard.Acquire(ctx, key, p.guardTTL)
		switch {
		case err != nil:
			// Proceed unguarded rather than drop the event
			p.logger.Warn("Trigger guard unavailable", "key", key, "error", err)
		case !acquired:
			p.logger.Info("Duplicate trigger suppressed", "key", key)
			p.metrics.TriggerOutcome(kind, OutcomeDuplicate)
			return res
		default:
			held = true
		}
	}

	inst, err := p.engine.Instantiate(ctx, workflow.InstantiateRequest{
		TemplateID:  rule.TemplateID,
		OrgID:       evt.OrgID,
		EntityType:  evt.Type.EntityType(),
		EntityID:    evt.EntityID,
		EntityName:  evt.EntityName,
		TriggeredBy: evt.TriggeredByUserID,
	})
	if err != nil {
		if held {
			if relErr := p.guard.Release(ctx, key); relErr != nil {
				p.logger.Warn("Failed to release trigger guard", "key", key, "error", relErr)
			}
		}

		outcome := OutcomeError
		if workflow.IsRejected(err) {
			outcome = OutcomeRejected
		}
		p.logger.Error("Triggered instantiation failed",
			"org_id", evt.OrgID,
			"type", kind,
			"entity_id", evt.EntityID,
			"template_id", rule.TemplateID,
			"error", err)
		res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %v", kind, evt.EntityID, err))
		p.metrics.TriggerOutcome(kind, outcome)
		return res
	}

	res.Triggered = append(res.Triggered, InstanceRef{
		InstanceID: inst.ID,
		TemplateID: inst.TemplateID,
		EntityType: inst.EntityType,
		EntityID:   inst.EntityID,
	})
	p.metrics.TriggerOutcome(kind, OutcomeTriggered)
	p.logger.Info("Workflow triggered", "org_id", evt.OrgID, "type", kind, "instance_id", inst.ID)
	return res
}

// HandleBatch processes independent events and aggregates their results
func (p *Processor) HandleBatch(ctx context.Context, events []event.EntityEvent, settings *entity.TriggerSettings) Result {
	res := newResult()
	for _, evt := range events {
		res.merge(p.Handle(ctx, evt, settings))
	}
	return res
}

func guardKey(evt event.EntityEvent, templateID int64) string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", evt.OrgID, evt.Type, evt.NewStatus, evt.EntityID, templateID)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
