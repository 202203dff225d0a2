package port

import (
	"context"
	"time"

	"github.com/garyjia/people-workflow/internal/domain/event"
)

// StepNotification is what an assignee is told when a step starts
type StepNotification struct {
	OrgID        string
	InstanceID   int64
	InstanceName string
	StepID       int64
	StepName     string
	AssigneeID   string
	DueAt        *time.Time
}

// Notifier delivers step notifications to assignees
type Notifier interface {
	NotifyStepStarted(ctx context.Context, n StepNotification) error
}

// EventPublisher forwards lifecycle events to other services
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
}

// TriggerGuard suppresses duplicate instantiation for the same entity and
// trigger within a time window
type TriggerGuard interface {
	// Acquire returns false when key is already held
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Metrics records engine and trigger outcomes
type Metrics interface {
	InstanceCreated(module string)
	InstanceCompleted(module string)
	StepTransition(from, to string)
	TriggerOutcome(kind, outcome string)
	ObserveInstantiate(d time.Duration)
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) InstanceCreated(string) {}
func (NopMetrics) InstanceCompleted(string) {}
func (NopMetrics) StepTransition(string, string) {}
func (NopMetrics) TriggerOutcome(string, string) {}
func (NopMetrics) ObserveInstantiate(time.Duration) {}
