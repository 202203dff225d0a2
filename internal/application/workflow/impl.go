package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/people-workflow/internal/application/dispatcher"
	"github.com/garyjia/people-workflow/internal/application/port"
	"github.com/garyjia/people-workflow/internal/domain/assignee"
	"github.com/garyjia/people-workflow/internal/domain/event"
	domainwf "github.com/garyjia/people-workflow/internal/domain/workflow"
)

const tracerName = "github.com/garyjia/people-workflow/internal/application/workflow"

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	templates TemplateStore
	instances port.InstanceRepository
	steps     port.InstanceStepRepository
	directory assignee.Directory
	txManager port.TransactionManager

	dispatcher dispatcher.Dispatcher
	selector   domainwf.NextStepSelector
	metrics    port.Metrics
	tracer     trace.Tracer
	logger     Logger
	now        func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting lifecycle events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithSelector sets the next-step selection policy
func WithSelector(s domainwf.NextStepSelector) EngineOption {
	return func(e *engineImpl) {
		e.selector = s
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m port.Metrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *engineImpl) {
		e.tracer = t
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	templates TemplateStore,
	instances port.InstanceRepository,
	steps port.InstanceStepRepository,
	directory assignee.Directory,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		templates: templates,
		instances: instances,
		steps:     steps,
		directory: directory,
		txManager: txManager,
		selector:  domainwf.LinearSelector{},
		metrics:   port.NopMetrics{},
		tracer:    otel.Tracer(tracerName),
		logger:    nopLogger{},
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// emit dispatches lifecycle events after commit
func (e *engineImpl) emit(ctx context.Context, events ...*event.Event) {
	if e.dispatcher == nil {
		return
	}
	for _, evt := range events {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

func (e *engineImpl) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "workflow."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
