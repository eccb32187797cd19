package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sfbuilder/colony/pkg/goals"
	"github.com/sfbuilder/colony/pkg/scoring"
	"github.com/sfbuilder/colony/pkg/stores"
	"github.com/sfbuilder/colony/pkg/telemetry"
)

// DefaultLedgerCapacity is the undo depth when Options leaves it unset.
const DefaultLedgerCapacity = 20

// Journal records completed operations. *stores.SQLiteStore implements it.
type Journal interface {
	AppendJournal(ctx context.Context, entry *stores.JournalEntry) error
}

// Options configures a Session.
type Options struct {
	// Catalog and Mirror are required.
	Catalog *goals.Catalog
	Mirror  goals.SaveMirror

	// Scorer defaults to an all-zero scorer, which never lets a goal advance.
	Scorer scoring.Scorer

	// Journal is optional.
	Journal Journal

	// Telemetry defaults to telemetry.Nop().
	Telemetry *telemetry.Telemetry

	// LedgerCapacity defaults to DefaultLedgerCapacity.
	LedgerCapacity int

	// Strict reports ledger desyncs as errors instead of healing them.
	Strict bool

	// Seed fixes infinite-play preset draws per goal index; 0 draws at random.
	Seed uint64

	// ID names the session in logs, events and the journal. Defaults to a UUID.
	ID string
}

// Session serializes every operation on one Engine and its Ledger, keeps
// scores current and reports each operation to telemetry and the journal.
type Session struct {
	mu sync.Mutex

	id      string
	opts    Options
	tel     *telemetry.Telemetry
	logger  *telemetry.Logger
	engine  *goals.Engine
	ledger  *goals.Ledger
	scorer  scoring.Scorer
	journal Journal

	// world is every object placed in the level, in placement order.
	world  []goals.PlacedObject
	scores goals.Scores
}

// Open restores a session from the mirror, checks the rebuilt ledger and
// evaluates readiness once.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Catalog == nil {
		return nil, goals.NewInvalidCatalogError("catalog is required", nil)
	}
	if opts.Mirror == nil {
		return nil, fmt.Errorf("save mirror is required")
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop()
	}
	if opts.Scorer == nil {
		opts.Scorer = scoring.Fixed{}
	}
	if opts.LedgerCapacity == 0 {
		opts.LedgerCapacity = DefaultLedgerCapacity
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	s := &Session{
		id:      opts.ID,
		opts:    opts,
		tel:     opts.Telemetry,
		logger:  opts.Telemetry.Logger.NewComponentLogger("session").WithSessionID(opts.ID),
		scorer:  opts.Scorer,
		journal: opts.Journal,
	}

	op := s.tel.StartOperation(ctx, "open", s.id, 0)
	err := s.restore(op.Ctx, opts.Catalog)
	op.End(err)
	if err != nil {
		return nil, err
	}

	s.logger.WithGoal(s.engine.State().CurrentGoalIndex).
		WithField("placed", len(s.world)).
		WithField("ledger_depth", s.ledger.Len()).
		Debug("Session opened")
	return s, nil
}

// restore builds an engine and ledger for catalog from the mirror and swaps
// them in. On error the session is unchanged.
func (s *Session) restore(ctx context.Context, catalog *goals.Catalog) error {
	engine, err := goals.NewEngine(catalog, goals.EngineOptions{
		Mirror:   s.opts.Mirror,
		Notifier: s.tel.Events.Notifier(s.id),
		Seed:     s.opts.Seed,
		Logger:   s.tel.Logger.NewComponentLogger("goals").Zerolog(),
	})
	if err != nil {
		return err
	}

	ledger, err := goals.NewLedger(engine, s.opts.LedgerCapacity)
	if err != nil {
		return err
	}

	save, err := engine.Restore(ctx)
	if err != nil {
		return err
	}

	healed, err := ledger.Verify(ctx, s.opts.Strict)
	if err != nil {
		s.tel.Events.PublishDesync(s.id, 0, err)
		return err
	}
	s.tel.Metrics.RecordHealed(healed)
	if healed > 0 {
		s.tel.Events.PublishDesync(s.id, healed, nil)
		s.logger.WithField("healed", healed).Warn("Counters recomputed from the placement history")
	}

	var world []goals.PlacedObject
	if save != nil {
		world = append(world, save.PlacedObjects...)
	}

	s.engine = engine
	s.ledger = ledger
	s.world = world
	s.evaluate(ctx)
	return nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Place records a placement of kind at the given position.
func (s *Session) Place(ctx context.Context, kind goals.ObjectType, pos goals.Vec3, rot goals.Rotation) (goals.PlacementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := s.tel.StartOperation(ctx, "place", s.id, s.goalIndex(), telemetry.AttrObjectKind.String(kind.String()))
	evictedBefore := s.ledger.Evicted()

	rec, err := s.ledger.Place(op.Ctx, goals.PlacementRecord{Kind: kind, Position: pos, Orientation: rot})
	if err != nil {
		s.logFailure(op, err)
		op.End(err)
		return goals.PlacementRecord{}, err
	}

	s.world = append(s.world, goals.PlacedObject{
		Kind:      rec.Kind,
		Position:  rec.Position,
		Rotation:  rec.Orientation,
		GoalIndex: rec.GoalIndex,
		Required:  rec.Required,
	})

	evicted := s.ledger.Evicted() - evictedBefore
	s.tel.Metrics.RecordPlacement(kind.String(), rec.Required)
	s.tel.Metrics.RecordEvictions(evicted)
	op.Span.SetAttributes(
		telemetry.AttrRequired.Bool(rec.Required),
		telemetry.AttrLedgerDepth.Int(s.ledger.Len()),
	)

	s.evaluate(op.Ctx)
	s.record(op.Ctx, stores.JournalActionPlace, rec.GoalIndex, map[string]interface{}{
		"kind":     kind.String(),
		"required": rec.Required,
		"position": rec.Position,
		"evicted":  evicted,
	})

	op.Logger.WithKind(kind).
		WithField("required", rec.Required).
		WithField("ledger_depth", s.ledger.Len()).
		Debug("Placement recorded")
	op.End(nil)
	return rec, nil
}

// Undo reverts the most recent undoable placement.
func (s *Session) Undo(ctx context.Context) (goals.PlacementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := s.tel.StartOperation(ctx, "undo", s.id, s.goalIndex())

	rec, err := s.ledger.Undo(op.Ctx)
	if err != nil {
		s.logFailure(op, err)
		op.End(err)
		return goals.PlacementRecord{}, err
	}

	if n := len(s.world); n > 0 {
		s.world = s.world[:n-1]
	}

	s.tel.Metrics.RecordUndo(rec.Kind.String())
	op.Span.SetAttributes(
		telemetry.AttrObjectKind.String(rec.Kind.String()),
		telemetry.AttrLedgerDepth.Int(s.ledger.Len()),
	)

	s.evaluate(op.Ctx)
	s.record(op.Ctx, stores.JournalActionUndo, rec.GoalIndex, map[string]interface{}{
		"kind":     rec.Kind.String(),
		"required": rec.Required,
	})

	op.Logger.WithKind(rec.Kind).
		WithField("ledger_depth", s.ledger.Len()).
		Debug("Placement undone")
	op.End(nil)
	return rec, nil
}

// Advance moves to the next goal. It fails with goals.ErrNotReady unless the
// current goal is ready.
func (s *Session) Advance(ctx context.Context) (*goals.WorkingGoalSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.goalIndex()
	op := s.tel.StartOperation(ctx, "advance", s.id, from,
		telemetry.AttrThreshold.Float64(s.engine.WorkingSet().Threshold()))

	ws, err := s.engine.AdvanceGoal(op.Ctx)
	if err != nil {
		s.logFailure(op, err)
		op.End(err)
		return nil, err
	}

	s.tel.Metrics.RecordAdvance(string(ws.Tier()))
	op.Span.SetAttributes(
		telemetry.AttrGoalTier.String(string(ws.Tier())),
		telemetry.AttrGoalSource.String(ws.SourceID()),
	)

	s.evaluate(op.Ctx)
	s.record(op.Ctx, stores.JournalActionAdvance, ws.GoalIndex(), map[string]interface{}{
		"from":      from,
		"tier":      ws.Tier(),
		"source":    ws.SourceID(),
		"threshold": ws.Threshold(),
	})

	op.Logger.WithField("to", ws.GoalIndex()).
		WithField("tier", string(ws.Tier())).
		WithField("source", ws.SourceID()).
		WithField("threshold", ws.Threshold()).
		Info("Goal advanced")
	op.End(nil)
	return ws, nil
}

// Banish abandons the level: progression returns to the first goal and every
// placed object is cleared.
func (s *Session) Banish(ctx context.Context) error {
	return s.reset(ctx, stores.JournalActionBanish, (*goals.Engine).ResetProgression)
}

// TransitionLevel resets like Banish and marks the save as written between
// levels, so the next Open starts the first goal with fresh counters.
func (s *Session) TransitionLevel(ctx context.Context) error {
	return s.reset(ctx, stores.JournalActionTransition, (*goals.Engine).BeginLevelTransition)
}

func (s *Session) reset(ctx context.Context, action stores.JournalAction, fn func(*goals.Engine, context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.goalIndex()
	op := s.tel.StartOperation(ctx, string(action), s.id, from)

	if err := fn(s.engine, op.Ctx); err != nil {
		s.logFailure(op, err)
		op.End(err)
		return err
	}

	cleared := len(s.world)
	s.world = nil
	s.tel.Metrics.RecordReset(string(action))

	s.evaluate(op.Ctx)
	s.record(op.Ctx, action, 0, map[string]interface{}{
		"from":    from,
		"cleared": cleared,
	})

	op.Logger.WithField("from", from).
		WithField("cleared", cleared).
		Info("Progression reset")
	op.End(nil)
	return nil
}

// Verify recomputes counters from the placement history. In strict mode a
// mismatch is reported as goals.ErrDesyncDetected and nothing changes;
// otherwise counters are healed and the number healed is returned.
func (s *Session) Verify(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := s.tel.StartOperation(ctx, "verify", s.id, s.goalIndex())

	healed, err := s.ledger.Verify(op.Ctx, s.opts.Strict)
	if err != nil {
		if errors.Is(err, goals.ErrDesyncDetected) {
			s.tel.Events.PublishDesync(s.id, 0, err)
		}
		s.logFailure(op, err)
		op.End(err)
		return 0, err
	}

	s.tel.Metrics.RecordHealed(healed)
	if healed > 0 {
		s.tel.Events.PublishDesync(s.id, healed, nil)
		s.evaluate(op.Ctx)
		s.record(op.Ctx, stores.JournalActionVerify, s.goalIndex(), map[string]interface{}{
			"healed": healed,
		})
		op.Logger.WithField("healed", healed).Warn("Counters recomputed from the placement history")
	}

	op.End(nil)
	return healed, nil
}

// ReplaceCatalog rebuilds the session on a new catalog from the saved state.
// If the save does not fit the new catalog the session keeps the old one.
// The mirror is only written when the save starts the goal over (no save
// yet, or a save from between levels); the rebuilt ledger is then empty and
// the counters full, so the strict check that follows cannot reject it.
func (s *Session) ReplaceCatalog(ctx context.Context, catalog *goals.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := s.tel.StartOperation(ctx, "reload", s.id, s.goalIndex())
	err := s.restore(op.Ctx, catalog)
	if err != nil {
		s.logFailure(op, err)
	} else {
		op.Logger.WithField("goals", catalog.Len()).Info("Catalog replaced")
	}
	op.End(err)
	return err
}

// Reload rebuilds the session from the saved state, picking up writes made
// to the mirror by other processes.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.restore(ctx, s.engine.Catalog())
}

// Refresh re-scores the level and re-evaluates readiness. Call it when
// something outside the session changes the scores.
func (s *Session) Refresh(ctx context.Context) goals.Readiness {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evaluate(ctx)
	return s.engine.Readiness()
}

// evaluate scores the world and re-evaluates readiness. A scoring failure
// leaves the goal not ready.
func (s *Session) evaluate(ctx context.Context) {
	scores, err := s.scorer.Score(ctx, s.world)
	if err != nil {
		s.logger.WithError(err).Error("Scoring failed")
		s.tel.Metrics.RecordError("scoring", "")
		scores = goals.Scores{}
	}
	s.scores = scores

	readiness := s.engine.Evaluate(scores)
	s.tel.Metrics.SetProgress(s.goalIndex(), readiness.IsReady(), s.ledger.Len())
}

// record appends a journal entry. Journal failures are logged, not returned:
// the operation has already been committed to the mirror.
func (s *Session) record(ctx context.Context, action stores.JournalAction, goalIndex int, details map[string]interface{}) {
	if s.journal == nil {
		return
	}

	entry := &stores.JournalEntry{
		SessionID: s.id,
		Action:    action,
		GoalIndex: goalIndex,
	}
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err == nil {
			str := string(data)
			entry.Details = &str
		}
	}

	if err := s.journal.AppendJournal(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("action", string(action)).Warn("Failed to append journal entry")
	}
}

// logFailure logs a failed operation. Recoverable rejections are warnings;
// anything else is also published as an error event.
func (s *Session) logFailure(op *telemetry.Operation, err error) {
	logger := op.Logger.WithError(err)
	if goals.IsRecoverable(err) {
		logger.Warn("Operation rejected")
		return
	}
	logger.Error("Operation failed")
	s.tel.Events.PublishError(s.id, op.Name(), err)
}

func (s *Session) goalIndex() int {
	return s.engine.State().CurrentGoalIndex
}
