// Package telemetry provides observability instrumentation for colony sessions.
//
// The telemetry package integrates structured logging (zerolog), tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a single
// bundle that package session threads through every operation.
//
// # Usage
//
// Initialize telemetry at startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "0.3.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	tel.StartMetricsServer()
//	ctx = tel.WithContext(ctx)
//
// Tests and previews use Nop, which discards logs, spans and metrics.
//
// # Operations
//
// StartOperation opens a span named "session.<operation>", derives an
// operation logger carrying the trace ID, and starts a timer. End records the
// duration and, for a *goals.GoalError, its class and code:
//
//	op := tel.StartOperation(ctx, "place", sessionID, goalIndex,
//	    telemetry.AttrObjectKind.String("Habitat"))
//	rec, err := ledger.Place(op.Ctx, rec)
//	op.End(err)
//
// # Events
//
// EventPublisher delivers events synchronously in publish order, so a
// subscriber sees requirement.count_changed before the goal.readiness_changed
// that follows it. Notifier adapts a publisher to goals.Notifier:
//
//	engine, err := goals.NewEngine(catalog, goals.EngineOptions{
//	    Notifier: tel.Events.Notifier(sessionID),
//	})
//
// Event filters: FilterByLevel, FilterByType, FilterBySession
//
// # Metrics
//
// Key metrics exposed (namespace "colony" by default):
//
//   - colony_placements_total{kind,bucket}
//   - colony_undos_total{kind}
//   - colony_ledger_evictions_total
//   - colony_goal_advances_total{tier}
//   - colony_progression_resets_total{reason}
//   - colony_current_goal_index
//   - colony_goal_ready
//   - colony_ledger_depth
//   - colony_healed_counters_total
//   - colony_errors_by_class_total{class}
//   - colony_operation_duration_seconds{operation}
//
// A disabled Metrics accepts every call and records nothing.
package telemetry
