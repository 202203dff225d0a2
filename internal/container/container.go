package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/dispatcher"
	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/application/workflow"
	"github.com/garyjia/people-workflow/internal/config"
	"github.com/garyjia/people-workflow/internal/infrastructure/messaging"
	"github.com/garyjia/people-workflow/internal/infrastructure/metrics"
	httpapi "github.com/garyjia/people-workflow/internal/interfaces/http"
	"github.com/garyjia/people-workflow/internal/telemetry"
	"github.com/garyjia/people-workflow/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	db           *DatabaseBundle
	repos        *RepositoryBundle
	redisClient  *redis.Client
	natsConn     *nats.Conn
	metrics      *metrics.Metrics
	shutdownOTel telemetry.ShutdownFunc

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine
	services   *ServiceBundle

	subscriber *messaging.Subscriber

	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a container. Call Start to initialize components.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Container{config: cfg, logger: logger}, nil
}

// Start initializes all components:
// tracing, database, metrics, external clients, then services and engine.
// The NATS subscriber is started separately by StartSubscriber.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	shutdown, err := telemetry.InitTracing(ctx, telemetry.Config{
		ServiceName:    c.config.Telemetry.ServiceName,
		ServiceVersion: httpapi.Version,
		Environment:    c.config.Telemetry.Environment,
		Endpoint:       c.config.Telemetry.OTLPEndpoint,
		Insecure:       c.config.Telemetry.Insecure,
		SampleRatio:    c.config.Telemetry.SampleRatio,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	c.shutdownOTel = shutdown

	c.db, err = ProvideDatabase(ctx, c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.repos = ProvideRepositories(c.db.Store, c.logger)
	c.logger.Info("Database initialized", zap.String("driver", c.db.Store.Driver()))

	var recorder port.Metrics = port.NopMetrics{}
	if c.config.Metrics.Enabled {
		c.metrics = metrics.New()
		recorder = c.metrics
	}

	guard, redisClient, err := ProvideGuard(ctx, c.config.Redis, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize trigger guard: %w", err)
	}
	c.redisClient = redisClient

	c.natsConn, err = ProvideNATS(c.config.NATS, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize nats: %w", err)
	}
	var publisher port.EventPublisher
	if c.natsConn != nil && c.config.NATS.Publish {
		publisher = messaging.NewPublisher(c.natsConn)
	}
	notifier := ProvideNotifier(c.config.Lark, c.logger)
	c.logger.Info("External clients initialized",
		zap.Bool("redis", redisClient != nil),
		zap.Bool("nats", c.natsConn != nil),
		zap.Bool("lark", notifier != nil))

	c.dispatcher = ProvideDispatcher(notifier, publisher, c.logger)
	c.services = ProvideServices(c.repos, c.db.Store, c.config.Workflow, c.logger)

	c.engine, err = ProvideEngine(c.config.Workflow, c.services.Templates, c.repos, c.db.Store, c.dispatcher, recorder, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize workflow engine: %w", err)
	}
	c.services.Triggers = ProvideTriggerService(c.config.Workflow, c.engine, guard, c.services.Settings, c.services.Directory, recorder, c.logger)
	c.logger.Info("Workflow engine initialized", zap.String("progression", c.config.Workflow.Progression))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// StartSubscriber begins consuming entity events from NATS. It is a no-op
// when NATS is not configured.
func (c *Container) StartSubscriber() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}
	if c.natsConn == nil || c.subscriber != nil {
		return nil
	}
	sub := messaging.NewSubscriber(c.natsConn, c.services.Triggers, c.config.NATS.QueueGroup, c.logger)
	if err := sub.Start(); err != nil {
		return err
	}
	c.subscriber = sub
	return nil
}

// Close gracefully shuts down all components in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Swap(true) {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	var errs []error

	if c.subscriber != nil {
		if err := c.subscriber.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop subscriber: %w", err))
		}
	}

	// waits for in-flight notifications and publishes
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.natsConn != nil {
		if err := c.natsConn.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("drain nats: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	if c.shutdownOTel != nil {
		if err := c.shutdownOTel(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}

	c.ready.Store(false)

	if len(errs) > 0 {
		for _, err := range errs {
			c.logger.Error("Shutdown error", zap.Error(err))
		}
		return fmt.Errorf("container shutdown had %d errors: %v", len(errs), errs[0])
	}

	c.logger.Info("Container closed")
	return nil
}

// Health checks the reachable dependencies
func (c *Container) Health(ctx context.Context) HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := HealthStatus{Overall: true, Components: map[string]ComponentHealth{}}
	record := func(name string, err error) {
		h := ComponentHealth{Healthy: err == nil}
		if err != nil {
			h.Message = err.Error()
			status.Overall = false
		}
		status.Components[name] = h
	}

	if !c.ready.Load() {
		record("container", fmt.Errorf("not started"))
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	record("database", c.db.DB.PingContext(ctx))
	if c.redisClient != nil {
		record("redis", c.redisClient.Ping(ctx).Err())
	}
	if c.natsConn != nil {
		var err error
		if !c.natsConn.IsConnected() {
			err = fmt.Errorf("nats status %s", c.natsConn.Status())
		}
		record("nats", err)
	}
	return status
}

// HTTPServer builds the HTTP API over the container's services
func (c *Container) HTTPServer() (*httpapi.Server, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready.Load() {
		return nil, fmt.Errorf("container not started")
	}

	srv := c.config.Server
	var opts []httpapi.Option
	if c.metrics != nil {
		opts = append(opts, httpapi.WithMetrics(c.metrics.Handler(), c.metrics))
	}

	return httpapi.NewServer(httpapi.ServerConfig{
		Addr:            srv.Addr(),
		Mode:            srv.Mode,
		ReadTimeout:     srv.ReadTimeout,
		WriteTimeout:    srv.WriteTimeout,
		ShutdownTimeout: srv.ShutdownTimeout,
		MetricsPath:     c.config.Metrics.Path,
	}, httpapi.Services{
		Templates: c.services.Templates,
		Instances: c.services.Instances,
		Settings:  c.services.Settings,
		Directory: c.services.Directory,
		Engine:    c.engine,
		Events:    c.services.Triggers,
		Importer:  c.services.Importer,
	}, utils.NewKVLogger(c.logger), opts...), nil
}

// Engine returns the workflow engine
func (c *Container) Engine() workflow.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

// Services returns the application services
func (c *Container) Services() *ServiceBundle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services
}

// Repositories returns the repositories
func (c *Container) Repositories() *RepositoryBundle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repos
}

// IsReady reports whether Start completed
func (c *Container) IsReady() bool {
	return c.ready.Load()
}
