package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/trigger"
	"github.com/garyjia/people-workflow/internal/domain/event"
)

// ErrEmptyMessage is returned for a message without a body
var ErrEmptyMessage = errors.New("empty message")

// EventHandler processes decoded entity events
type EventHandler interface {
	HandleBatch(ctx context.Context, events []event.EntityEvent) trigger.Result
}

// Subscriber feeds entity events from NATS into the trigger service
type Subscriber struct {
	conn       *nats.Conn
	handler    EventHandler
	queueGroup string
	timeout    time.Duration
	logger     *zap.Logger
	sub        *nats.Subscription
}

// NewSubscriber creates a subscriber. Instances sharing queueGroup split
// the event stream between them.
func NewSubscriber(conn *nats.Conn, handler EventHandler, queueGroup string, logger *zap.Logger) *Subscriber {
	if queueGroup == "" {
		queueGroup = DefaultQueueGroup
	}
	return &Subscriber{
		conn:       conn,
		handler:    handler,
		queueGroup: queueGroup,
		timeout:    30 * time.Second,
		logger:     logger,
	}
}

// Start subscribes to the event subjects
func (s *Subscriber) Start() error {
	sub, err := s.conn.QueueSubscribe(EventSubjectWildcard, s.queueGroup, s.onMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", EventSubjectWildcard, err)
	}
	s.sub = sub
	s.logger.Info("Subscribed to entity events",
		zap.String("subject", EventSubjectWildcard),
		zap.String("queue", s.queueGroup))
	return nil
}

// Stop drains the subscription
func (s *Subscriber) Stop() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

func (s *Subscriber) onMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	res, err := s.process(ctx, msg.Data)
	if err != nil {
		s.logger.Warn("Dropping undecodable event message",
			zap.String("subject", msg.Subject),
			zap.Error(err))
		res = trigger.Result{Triggered: []trigger.InstanceRef{}, Errors: []string{err.Error()}}
	}

	if msg.Reply == "" {
		return
	}
	body, err := json.Marshal(res)
	if err != nil {
		s.logger.Error("Failed to encode event result", zap.Error(err))
		return
	}
	if err := msg.Respond(body); err != nil {
		s.logger.Warn("Failed to reply to event message", zap.Error(err))
	}
}

// process decodes a single event object or an array of events and runs
// them through the handler
func (s *Subscriber) process(ctx context.Context, data []byte) (trigger.Result, error) {
	events, err := decodeEvents(data)
	if err != nil {
		return trigger.Result{}, err
	}
	res := s.handler.HandleBatch(ctx, events)
	if len(res.Errors) > 0 {
		s.logger.Warn("Event batch finished with errors",
			zap.Int("events", len(events)),
			zap.Int("triggered", len(res.Triggered)),
			zap.Strings("errors", res.Errors))
	}
	return res, nil
}

func decodeEvents(data []byte) ([]event.EntityEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyMessage
	}

	if trimmed[0] == '[' {
		var events []event.EntityEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("failed to decode event batch: %w", err)
		}
		return events, nil
	}

	var evt event.EntityEvent
	if err := json.Unmarshal(trimmed, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return []event.EntityEvent{evt}, nil
}
