package telemetry

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sfbuilder/colony/pkg/goals"
)

// Telemetry bundles logging, tracing, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config

	metricsServer *http.Server
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  NewEventPublisher(cfg.Events),
		Config:  cfg,
	}, nil
}

// Nop returns telemetry that logs nothing, records no spans or metrics and
// delivers events synchronously.
func Nop() *Telemetry {
	cfg := DefaultConfig()
	return &Telemetry{
		Logger:  NopLogger(),
		Tracer:  NopTracer(),
		Metrics: &Metrics{},
		Events:  NewEventPublisher(cfg.Events),
		Config:  cfg,
	}
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() {
	t.metricsServer = t.Metrics.StartMetricsServer()
}

// Shutdown stops the metrics server, drops event subscribers and flushes spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.metricsServer != nil {
		errs = append(errs, t.metricsServer.Shutdown(ctx))
	}
	t.Events.Shutdown()
	errs = append(errs, t.Tracer.Shutdown(ctx))
	return errors.Join(errs...)
}

// Operation is one instrumented session operation: a span, an operation
// logger and a timer.
type Operation struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger

	name    string
	timer   *Timer
	metrics *Metrics
}

// StartOperation begins an instrumented operation.
func (t *Telemetry) StartOperation(ctx context.Context, name, sessionID string, goalIndex int, attrs ...attribute.KeyValue) *Operation {
	spanCtx, span := t.Tracer.Start(ctx, name, sessionID, goalIndex, attrs...)

	logger := t.Logger.WithSessionID(sessionID).WithGoal(goalIndex).WithField("operation", name)
	if traceID := TraceID(spanCtx); traceID != "" {
		logger = logger.WithField("trace_id", traceID)
	}

	return &Operation{
		Ctx:     logger.WithContext(spanCtx),
		Span:    span,
		Logger:  logger,
		name:    name,
		timer:   NewTimer(),
		metrics: t.Metrics,
	}
}

// Name returns the operation name.
func (op *Operation) Name() string {
	return op.name
}

// End finishes the operation, recording its duration and any error by
// class and code.
func (op *Operation) End(err error) {
	op.metrics.ObserveOperation(op.name, op.timer.Duration())

	if err != nil {
		class, code := "internal", ""
		var gerr *goals.GoalError
		if errors.As(err, &gerr) {
			class, code = string(gerr.Class), gerr.Code
		}
		op.metrics.RecordError(class, code)
	}
	finishSpan(op.Span, err)
}
