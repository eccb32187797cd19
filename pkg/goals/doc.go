// Package goals implements goal progression for a colony builder: an ordered
// catalog of authored goals, infinite play past the catalog, and a bounded
// undo ledger of placements.
//
// # Overview
//
// Each goal lists required structure kinds with counts, optional extras, and a
// minimum viability. A goal may be advanced once every requirement has been
// placed, viability meets the threshold and happiness, power and sustenance
// are all positive. Past the last authored goal, presets are drawn from an easy
// pool and later a hard pool, with thresholds scaled from the last authored one.
//
// # Core Types
//
//   - Catalog: immutable authored goals plus the easy and hard preset pools
//   - ViabilityScaler: pure threshold and tier computation for any goal index
//   - WorkingGoalSet: a per-goal copy of a definition with live counters
//   - Engine: the progression state machine (readiness, advance, reset)
//   - Ledger: the bounded LIFO undo history of placements
//   - SaveMirror: the durable counterpart, implemented in package stores
//   - Notifier: fire-and-forget notifications to a presentation layer
//
// # Counters
//
// Counters are allowances. A placement consumes the requirement counter for
// its kind, or the extra counter once the requirement is at zero; undo gives
// it back. Counters never leave [0, required].
//
// # Undo
//
// The ledger holds at most its capacity of records. When a placement pushes it
// past capacity the oldest record is evicted and can no longer be undone; its
// counter stays consumed. The ledger is cleared when the goal changes, so an
// undo never crosses a goal boundary.
//
// # Concurrency
//
// Engine and Ledger perform no locking. Callers serialize every mutating call
// across both; package session does this with a mutex.
//
// # Example Usage
//
//	catalog, _ := goals.NewCatalog(authored, easy, hard, goals.DefaultInfinitePlay())
//	engine, _ := goals.NewEngine(catalog, goals.EngineOptions{Mirror: mirror})
//	ledger, _ := goals.NewLedger(engine, 20)
//	_, _ = engine.Restore(ctx)
//
//	_, err := ledger.Place(ctx, goals.PlacementRecord{Kind: goals.ObjectHabitat})
//	if engine.Evaluate(scores).IsReady() {
//	    _, err = engine.AdvanceGoal(ctx)
//	}
package goals
