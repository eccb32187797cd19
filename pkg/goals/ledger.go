package goals

import (
	"context"
	"fmt"
)

// PlacementRecord is one undoable placement.
type PlacementRecord struct {
	Kind        ObjectType `json:"kind"`
	Position    Vec3       `json:"position"`
	Orientation Rotation   `json:"orientation"`

	// GoalIndex is the goal the placement was counted against. Set by Place.
	GoalIndex int `json:"goal_index"`

	// Required is true when the placement consumed a requirement counter
	// rather than an extra. Set by Place.
	Required bool `json:"required"`

	slot int
}

func (r PlacementRecord) placedObject() PlacedObject {
	return PlacedObject{
		Kind:      r.Kind,
		Position:  r.Position,
		Rotation:  r.Orientation,
		GoalIndex: r.GoalIndex,
		Required:  r.Required,
	}
}

// Ledger is the bounded LIFO undo history of placements. It is the only
// writer of the working set's counters and keeps them, its records and the
// save mirror in step.
//
// When a placement pushes the ledger past its capacity the oldest record is
// evicted. Its counter stays consumed and it can no longer be undone; the
// ledger is a bounded undo history, not an audit log.
type Ledger struct {
	engine   *Engine
	capacity int

	// records is oldest first.
	records []PlacementRecord

	// settled counts, per working set slot, placements that are applied but
	// not in records: evicted ones and ones restored from an older history.
	settled []int

	evicted int
}

// NewLedger creates a ledger of the given capacity and attaches it to engine,
// which clears it whenever the goal changes.
func NewLedger(engine *Engine, capacity int) (*Ledger, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if capacity < 1 {
		return nil, fmt.Errorf("ledger capacity must be at least 1, got %d", capacity)
	}
	if engine.ledger != nil {
		return nil, fmt.Errorf("engine already has a ledger")
	}

	l := &Ledger{
		engine:   engine,
		capacity: capacity,
	}
	l.Clear()
	engine.ledger = l
	return l, nil
}

// Place records a placement and consumes the matching counter: the
// requirement for the kind if it has allowance left, otherwise the extra.
// It fails with ErrUnknownObjectKind when neither bucket lists the kind and
// ErrCountExhausted when both are at zero. The placement is appended to the
// save mirror; if that fails nothing changes.
func (l *Ledger) Place(ctx context.Context, rec PlacementRecord) (PlacementRecord, error) {
	ws := l.engine.working

	slot, known, ok := ws.match(rec.Kind)
	if !known {
		return PlacementRecord{}, NewUnknownObjectKindError(rec.Kind).WithOperation("place")
	}
	if !ok {
		return PlacementRecord{}, NewCountExhaustedError(rec.Kind).WithOperation("place")
	}

	rec.GoalIndex = ws.GoalIndex()
	rec.Required = ws.isRequired(slot)
	rec.slot = slot

	ws.consume(slot)
	if err := l.engine.mirror.AppendPlacement(ctx, rec.placedObject(), ws.Counts()); err != nil {
		ws.release(slot)
		return PlacementRecord{}, NewMirrorError("place", err).WithKind(rec.Kind)
	}

	l.records = append(l.records, rec)
	if len(l.records) > l.capacity {
		oldest := l.records[0]
		copy(l.records, l.records[1:])
		l.records = l.records[:len(l.records)-1]
		l.settled[oldest.slot]++
		l.evicted++
	}

	l.engine.markStale()
	c := ws.counter(slot)
	l.engine.notifier.RequirementCountChanged(c.Kind, rec.Required, c.Remaining)
	return rec, nil
}

// Undo pops the most recent placement and gives its counter back. It fails
// with ErrLedgerEmpty when there is nothing to undo. The last placed object
// is removed from the save mirror; if that fails nothing changes.
func (l *Ledger) Undo(ctx context.Context) (PlacementRecord, error) {
	n := len(l.records)
	if n == 0 {
		return PlacementRecord{}, NewLedgerEmptyError().WithOperation("undo")
	}

	rec := l.records[n-1]
	ws := l.engine.working
	if rec.GoalIndex != ws.GoalIndex() {
		return PlacementRecord{}, NewDesyncError(
			fmt.Sprintf("record placed under goal %d but goal %d is active", rec.GoalIndex, ws.GoalIndex())).
			WithOperation("undo").WithKind(rec.Kind)
	}
	if rec.slot >= ws.slotCount() || ws.counter(rec.slot).Kind != rec.Kind {
		return PlacementRecord{}, NewUnknownObjectKindError(rec.Kind).WithOperation("undo")
	}
	c := ws.counter(rec.slot)
	if c.Remaining >= c.Required {
		return PlacementRecord{}, NewDesyncError("counter is already at its required count").
			WithOperation("undo").WithKind(rec.Kind)
	}

	ws.release(rec.slot)
	if err := l.engine.mirror.PopPlacement(ctx, ws.Counts()); err != nil {
		ws.consume(rec.slot)
		return PlacementRecord{}, NewMirrorError("undo", err).WithKind(rec.Kind)
	}
	l.records = l.records[:n-1]

	l.engine.markStale()
	l.engine.notifier.RequirementCountChanged(c.Kind, rec.Required, c.Remaining)
	return rec, nil
}

// Clear empties the ledger without touching counters. The engine calls it
// when the working set is replaced.
func (l *Ledger) Clear() {
	l.records = nil
	l.settled = make([]int, l.engine.working.slotCount())
}

// rebuild restores the history from the mirror's placed objects: the most
// recent objects placed under the active goal, up to capacity. Anything
// older is settled.
func (l *Ledger) rebuild(objects []PlacedObject) {
	l.Clear()
	ws := l.engine.working

	var recs []PlacementRecord
	for _, obj := range objects {
		if obj.GoalIndex != ws.GoalIndex() {
			continue
		}
		slot, ok := ws.slotOf(obj.Kind, obj.Required)
		if !ok {
			l.engine.logger.Warn().
				Str("kind", obj.Kind.String()).
				Bool("required", obj.Required).
				Msg("Saved placement does not match the active goal, skipping")
			continue
		}
		recs = append(recs, PlacementRecord{
			Kind:        obj.Kind,
			Position:    obj.Position,
			Orientation: obj.Rotation,
			GoalIndex:   obj.GoalIndex,
			Required:    obj.Required,
			slot:        slot,
		})
	}
	if len(recs) > l.capacity {
		recs = recs[len(recs)-l.capacity:]
	}
	l.records = recs

	inLedger := l.slotCounts()
	for slot := range l.settled {
		c := ws.counter(slot)
		s := (c.Required - c.Remaining) - inLedger[slot]
		if s < 0 {
			s = 0
		}
		l.settled[slot] = s
	}
}

// Verify checks that, for every counter, required minus remaining equals the
// settled placements plus the records in the ledger. In strict mode a
// mismatch returns ErrDesyncDetected and changes nothing. Otherwise the
// counters are recomputed from the ledger, written to the mirror, and the
// number of healed counters is returned.
func (l *Ledger) Verify(ctx context.Context, strict bool) (int, error) {
	ws := l.engine.working
	inLedger := l.slotCounts()

	var drifts []string
	var healed []int
	for slot := 0; slot < ws.slotCount(); slot++ {
		c := ws.counter(slot)
		implied := l.settled[slot] + inLedger[slot]
		if c.Required-c.Remaining == implied {
			continue
		}
		drifts = append(drifts, fmt.Sprintf("%s: counter implies %d placed, ledger implies %d",
			c.Kind, c.Required-c.Remaining, implied))
		healed = append(healed, slot)
	}

	if len(drifts) == 0 {
		return 0, nil
	}
	if strict {
		return 0, NewDesyncError(fmt.Sprintf("%d counter(s) disagree with the ledger", len(drifts))).
			WithOperation("verify").WithDetail("drift", drifts)
	}

	before := ws.Counts()
	for _, slot := range healed {
		c := ws.counter(slot)
		ws.setRemaining(slot, c.Required-l.settled[slot]-inLedger[slot])
	}
	p := Progression{
		GoalIndex:   l.engine.state.CurrentGoalIndex,
		PresetIndex: l.engine.state.CurrentPresetIndex,
		Counts:      ws.Counts(),
	}
	if err := l.engine.mirror.WriteProgression(ctx, p); err != nil {
		_ = ws.restoreCounts(before)
		return 0, NewMirrorError("verify", err)
	}

	l.engine.markStale()
	for _, slot := range healed {
		c := ws.counter(slot)
		l.engine.notifier.RequirementCountChanged(c.Kind, ws.isRequired(slot), c.Remaining)
	}
	return len(healed), nil
}

func (l *Ledger) slotCounts() []int {
	out := make([]int, l.engine.working.slotCount())
	for _, r := range l.records {
		if r.slot < len(out) {
			out[r.slot]++
		}
	}
	return out
}

// Len returns the number of undoable records.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Capacity returns the maximum number of undoable records.
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Evicted returns how many records have been evicted over the ledger's lifetime.
func (l *Ledger) Evicted() int {
	return l.evicted
}

// Peek returns the record the next Undo would pop.
func (l *Ledger) Peek() (PlacementRecord, bool) {
	if len(l.records) == 0 {
		return PlacementRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

// Records returns the undoable records, most recent first.
func (l *Ledger) Records() []PlacementRecord {
	out := make([]PlacementRecord, len(l.records))
	for i, r := range l.records {
		out[len(l.records)-1-i] = r
	}
	return out
}
