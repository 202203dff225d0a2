// Package messaging connects the workflow engine to NATS: inbound entity
// events start workflows, and lifecycle events are published back out.
package messaging

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subject layout
const (
	EventSubjectPrefix     = "workflow.events."
	EventSubjectWildcard   = "workflow.events.>"
	LifecycleSubjectPrefix = "workflow.lifecycle."
	DefaultQueueGroup      = "people-workflow"
)

// Config holds NATS connection settings
type Config struct {
	URL        string
	Name       string
	QueueGroup string
	Timeout    time.Duration
}

// Connect opens a NATS connection that reconnects forever
func Connect(cfg Config, logger *zap.Logger) (*nats.Conn, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "people-workflow"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS", zap.String("url", cfg.URL))
	return nc, nil
}
