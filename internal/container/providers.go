// Package container provides dependency injection and lifecycle management
// for the workflow service
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/people-workflow/internal/application/dispatcher"
	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/application/service"
	"github.com/garyjia/people-workflow/internal/application/trigger"
	"github.com/garyjia/people-workflow/internal/application/workflow"
	"github.com/garyjia/people-workflow/internal/config"
	"github.com/garyjia/people-workflow/internal/domain/event"
	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
	"github.com/garyjia/people-workflow/internal/infrastructure/cache"
	infraLark "github.com/garyjia/people-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/people-workflow/internal/infrastructure/messaging"
	"github.com/garyjia/people-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/people-workflow/internal/infrastructure/persistence/sqlstore"
	"github.com/garyjia/people-workflow/internal/templates"
	"github.com/garyjia/people-workflow/pkg/database"
	"github.com/garyjia/people-workflow/pkg/utils"
)

// DatabaseBundle holds database-related components
type DatabaseBundle struct {
	DB    *database.DB
	Store *sqlstore.DB
}

// RepositoryBundle groups all repositories for convenient access
type RepositoryBundle struct {
	Template  port.TemplateRepository
	Instance  port.InstanceRepository
	Step      port.InstanceStepRepository
	Settings  port.SettingsRepository
	Directory port.DirectoryRepository
}

// ServiceBundle groups all application services
type ServiceBundle struct {
	Templates service.TemplateService
	Instances service.InstanceQueryService
	Settings  service.SettingsService
	Directory service.DirectoryService
	Triggers  *trigger.Service
	Importer  *templates.Importer
}

// ProvideDatabase opens the database and applies pending migrations
func ProvideDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := database.New(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(ctx, cfg.MigrationsDir)
	} else {
		err = migrator.Up(ctx)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:    db,
		Store: sqlstore.NewDB(db, logger),
	}, nil
}

// ProvideRepositories creates all repositories over one store
func ProvideRepositories(store *sqlstore.DB, logger *zap.Logger) *RepositoryBundle {
	return &RepositoryBundle{
		Template:  repository.NewTemplateRepository(store, logger),
		Instance:  repository.NewInstanceRepository(store, logger),
		Step:      repository.NewInstanceStepRepository(store, logger),
		Settings:  repository.NewSettingsRepository(store, logger),
		Directory: repository.NewDirectoryRepository(store, logger),
	}
}

// ProvideGuard returns a Redis-backed trigger guard when an address is
// configured and an in-process one otherwise. The client is nil for the latter.
func ProvideGuard(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (port.TriggerGuard, *redis.Client, error) {
	if cfg.Addr == "" {
		logger.Info("Trigger guard kept in memory")
		return cache.NewMemoryGuard(), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Trigger guard backed by redis", zap.String("addr", cfg.Addr))
	return cache.NewRedisGuard(client, cfg.KeyPrefix, logger), client, nil
}

// ProvideNotifier returns the Lark step notifier, or nil when Lark is disabled
func ProvideNotifier(cfg config.LarkConfig, logger *zap.Logger) port.Notifier {
	if !cfg.Enabled {
		return nil
	}
	client := infraLark.NewClient(infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
	}, logger)
	return infraLark.NewNotifier(client, cfg.ReceiveIDType, logger)
}

// ProvideNATS connects to NATS, or returns nil when no URL is configured
func ProvideNATS(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	return messaging.Connect(messaging.Config{
		URL:        cfg.URL,
		QueueGroup: cfg.QueueGroup,
		Timeout:    cfg.Timeout,
	}, logger)
}

// ProvideDispatcher creates the lifecycle event dispatcher and subscribes
// the outbound handlers that are configured
func ProvideDispatcher(notifier port.Notifier, publisher port.EventPublisher, logger *zap.Logger) dispatcher.Dispatcher {
	kv := utils.NewKVLogger(logger)
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))

	if notifier != nil {
		d.SubscribeNamed(event.TypeStepStarted, "lark-step-notifier", service.NewStepNotificationHandler(notifier, kv))
	}
	if publisher != nil {
		d.SubscribeAll("nats-lifecycle-publisher", service.NewPublishHandler(publisher))
	}
	return d
}

// ProvideServices creates the template, query and settings services
func ProvideServices(repos *RepositoryBundle, store *sqlstore.DB, defaults config.WorkflowConfig, logger *zap.Logger) *ServiceBundle {
	kv := utils.NewKVLogger(logger)
	templatesSvc := service.NewTemplateService(repos.Template, store, kv)
	return &ServiceBundle{
		Templates: templatesSvc,
		Instances: service.NewInstanceQueryService(repos.Instance, repos.Step, kv),
		Settings:  service.NewSettingsService(repos.Settings, repos.Template, defaults.DefaultRules, kv),
		Directory: service.NewDirectoryService(repos.Directory, kv),
		Importer:  templates.NewImporter(templatesSvc, logger),
	}
}

// ProvideEngine creates the workflow engine with the configured progression
func ProvideEngine(
	cfg config.WorkflowConfig,
	templatesSvc service.TemplateService,
	repos *RepositoryBundle,
	store *sqlstore.DB,
	d dispatcher.Dispatcher,
	metrics port.Metrics,
	logger *zap.Logger,
) (workflow.Engine, error) {
	selector, err := domainwf.NewSelector(cfg.Progression)
	if err != nil {
		return nil, err
	}
	return workflow.NewEngine(
		templatesSvc,
		repos.Instance,
		repos.Step,
		repos.Directory,
		store,
		workflow.WithDispatcher(d),
		workflow.WithSelector(selector),
		workflow.WithMetrics(metrics),
		workflow.WithLogger(utils.NewKVLogger(logger)),
	), nil
}

// ProvideTriggerService creates the auto-trigger processor and its service
func ProvideTriggerService(
	cfg config.WorkflowConfig,
	engine workflow.Engine,
	guard port.TriggerGuard,
	settings service.SettingsService,
	directory service.DirectoryService,
	metrics port.Metrics,
	logger *zap.Logger,
) *trigger.Service {
	kv := utils.NewKVLogger(logger)
	processor := trigger.NewProcessor(engine,
		trigger.WithGuard(guard, cfg.TriggerGuardTTL),
		trigger.WithMetrics(metrics),
		trigger.WithLogger(kv),
	)
	return trigger.NewService(processor, settings, kv, trigger.WithDirectorySync(directory))
}
