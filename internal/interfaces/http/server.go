// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/people-workflow/internal/application/service"
	"github.com/garyjia/people-workflow/internal/application/trigger"
	"github.com/garyjia/people-workflow/internal/application/workflow"
	"github.com/garyjia/people-workflow/internal/domain/entity"
	"github.com/garyjia/people-workflow/internal/domain/event"
	"github.com/garyjia/people-workflow/internal/templates"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventHandler runs inbound entity events through the trigger processor
type EventHandler interface {
	HandleBatch(ctx context.Context, events []event.EntityEvent) trigger.Result
}

// TemplateImporter creates templates from YAML definitions
type TemplateImporter interface {
	Import(ctx context.Context, defs []templates.Definition, orgID string) ([]*entity.Template, error)
}

// RequestObserver records served requests
type RequestObserver interface {
	ObserveHTTP(method, route, status string, d time.Duration)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsPath     string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            "0.0.0.0:8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MetricsPath:     "/metrics",
	}
}

// Services are the application services exposed over HTTP
type Services struct {
	Templates service.TemplateService
	Instances service.InstanceQueryService
	Settings  service.SettingsService
	Directory service.DirectoryService
	Engine    workflow.Engine
	Events    EventHandler
	Importer  TemplateImporter
}

// Option configures optional server features
type Option func(*Server)

// WithMetrics serves handler on the metrics path and records every request
func WithMetrics(handler http.Handler, observer RequestObserver) Option {
	return func(s *Server) {
		s.metricsHandler = handler
		s.observer = observer
	}
}

// Server is the HTTP server adapter
type Server struct {
	config         ServerConfig
	httpServer     *http.Server
	router         *gin.Engine
	services       Services
	metricsHandler http.Handler
	observer       RequestObserver
	logger         Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger, opts ...Option) *Server {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	gin.SetMode(config.Mode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware logs each request and feeds the request observer
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if s.observer != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			s.observer.ObserveHTTP(method, route, strconv.Itoa(status), latency)
		}

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.metricsHandler != nil {
		path := s.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.router.GET(path, gin.WrapH(s.metricsHandler))
	}

	api := s.router.Group("/api")
	{
		tpl := api.Group("/templates")
		tpl.POST("", h.CreateTemplate)
		tpl.POST("/import", h.ImportTemplates)
		tpl.GET("", h.ListTemplates)
		tpl.GET("/:id", h.GetTemplate)
		tpl.DELETE("/:id", h.DeleteTemplate)
		tpl.POST("/:id/steps", h.AddStep)
		tpl.POST("/:id/edges", h.AddEdge)
		tpl.PUT("/:id/status", h.SetTemplateStatus)
		tpl.PUT("/:id/enabled", h.SetTemplateEnabled)

		inst := api.Group("/instances")
		inst.POST("", h.Instantiate)
		inst.GET("", h.ListInstances)
		inst.GET("/export", h.ExportProgress)
		inst.GET("/:id", h.GetInstance)
		inst.POST("/:id/cancel", h.CancelInstance)
		inst.POST("/:id/hold", h.HoldInstance)
		inst.POST("/:id/resume", h.ResumeInstance)

		api.POST("/steps/:id/advance", h.AdvanceStep)

		api.POST("/events", h.IngestEvents)

		api.GET("/orgs/:org/settings", h.GetSettings)
		api.PUT("/orgs/:org/settings", h.SaveSettings)

		dir := api.Group("/orgs/:org/directory")
		dir.PUT("/people/:person", h.SavePerson)
		dir.GET("/roles/:role", h.ListRoleHolders)
		dir.PUT("/roles/:role/holders/:person", h.AssignRole)
		dir.DELETE("/roles/:role/holders/:person", h.RevokeRole)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", s.config.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
