package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/event"
)

// Publisher sends lifecycle events to NATS
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher creates a lifecycle event publisher
func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// Publish sends evt as JSON on its lifecycle subject
func (p *Publisher) Publish(ctx context.Context, evt *event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := LifecycleSubject(evt.Type)
	if err := p.conn.Publish(subject, body); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// LifecycleSubject returns the subject a lifecycle event type is published on
func LifecycleSubject(t event.Type) string {
	return LifecycleSubjectPrefix + string(t)
}

// EventSubject returns the subject producers use for an entity event kind
func EventSubject(k event.Kind) string {
	return EventSubjectPrefix + string(k)
}

var _ port.EventPublisher = (*Publisher)(nil)
