// Package session runs one player's goal progression against a save mirror.
//
// A Session owns a goals.Engine and its Ledger and serializes every
// operation on them. After each placement, undo, advance or reset it
// re-scores the level through a scoring.Scorer, re-evaluates readiness,
// records metrics and a span through telemetry and appends an entry to the
// journal when one is configured.
//
// Opening a session restores progression from the mirror, rebuilds the undo
// history from the saved placements and verifies the counters against it.
// A mismatch is healed unless Options.Strict is set, in which case Open
// fails with goals.ErrDesyncDetected.
//
// Example:
//
//	s, err := session.Open(ctx, session.Options{
//		Catalog: loaded.Catalog,
//		Mirror:  store,
//		Journal: store,
//		Scorer:  scoring.NewTableScorer(loaded.Stats, goals.Scores{}),
//	})
//	if err != nil {
//		return err
//	}
//	if _, err := s.Place(ctx, goals.ObjectHabitat, goals.Vec3{}, goals.Rotation{}); err != nil {
//		return err
//	}
//	if s.Status().Readiness.IsReady() {
//		_, err = s.Advance(ctx)
//	}
package session
