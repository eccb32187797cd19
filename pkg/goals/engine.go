package goals

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"
)

// ProgressionState is the engine-owned position in the goal sequence.
type ProgressionState struct {
	CurrentGoalIndex int `json:"current_goal_index"`

	// CurrentPresetIndex is the preset drawn for the active infinite goal; 0
	// while the goal is authored.
	CurrentPresetIndex int `json:"current_preset_index"`

	// ViabilityBaseline is the carried threshold of the previous goal, the
	// value the next infinite threshold is chained from. 0 at goal 0.
	ViabilityBaseline float64 `json:"viability_baseline"`
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Mirror is required.
	Mirror SaveMirror

	// Notifier defaults to NopNotifier.
	Notifier Notifier

	// Seed fixes infinite-play draws: the preset for goal i always comes from
	// a PCG keyed by (Seed, i), however many processes the session spans.
	// 0 draws from the runtime's random source.
	Seed uint64

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Engine is the goal progression state machine. It owns ProgressionState and
// the active WorkingGoalSet. It performs no locking: callers serialize every
// mutating call across the Engine and its Ledger together.
type Engine struct {
	catalog  *Catalog
	scaler   ViabilityScaler
	mirror   SaveMirror
	notifier Notifier
	seed     uint64
	logger   zerolog.Logger

	state     ProgressionState
	working   *WorkingGoalSet
	readiness Readiness
	ledger    *Ledger
}

// NewEngine creates an engine positioned at goal 0 with full counters. Call
// Restore to pick up a saved position.
func NewEngine(catalog *Catalog, opts EngineOptions) (*Engine, error) {
	if catalog == nil {
		return nil, NewInvalidCatalogError("catalog is required", nil)
	}
	if opts.Mirror == nil {
		return nil, fmt.Errorf("save mirror is required")
	}

	e := &Engine{
		catalog:   catalog,
		scaler:    catalog.Scaler(),
		mirror:    opts.Mirror,
		notifier:  opts.Notifier,
		seed:      opts.Seed,
		readiness: ReadinessInProgress,
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if opts.Logger != nil {
		e.logger = opts.Logger.With().Str("component", "goals").Logger()
	} else {
		e.logger = zerolog.Nop()
	}

	e.working = e.firstGoal()
	return e, nil
}

func (e *Engine) firstGoal() *WorkingGoalSet {
	def, _ := e.catalog.Goal(0)
	return FromDefinition(0, TierAuthored, def, def.Threshold)
}

// Restore reads the save mirror once and rebuilds progression, the working set
// and, when a ledger is attached, the undo history. With no save present the
// engine starts at goal 0 and writes that position to the mirror. The loaded
// (or freshly written) snapshot is returned.
func (e *Engine) Restore(ctx context.Context) (*SaveState, error) {
	save, err := e.mirror.Load(ctx)
	if err != nil {
		return nil, NewMirrorError("load", err)
	}

	if save == nil {
		ws := e.firstGoal()
		p := Progression{Counts: ws.Counts()}
		if err := e.mirror.WriteProgression(ctx, p); err != nil {
			return nil, NewMirrorError("restore", err)
		}
		e.install(ProgressionState{}, ws)
		if e.ledger != nil {
			e.ledger.Clear()
		}
		e.logger.Debug().Msg("No save found, starting at first goal")
		e.announce()
		return &SaveState{Progression: p}, nil
	}

	index := save.GoalIndex
	if index < 0 {
		return nil, NewInvalidSaveError(fmt.Sprintf("negative goal index %d", index), nil)
	}

	ws, preset, err := e.buildWorkingSet(index, save.PresetIndex)
	if err != nil {
		return nil, err
	}

	fresh := save.BetweenTransition
	if fresh {
		// Leaving a level: the goal starts over with full counters and an
		// empty world.
		p := Progression{GoalIndex: index, PresetIndex: preset, Counts: ws.Counts()}
		if err := e.mirror.ResetLevel(ctx, p); err != nil {
			return nil, NewMirrorError("restore", err)
		}
		save.Progression = p
		save.PlacedObjects = nil
	} else if err := ws.restoreCounts(save.Counts); err != nil {
		return nil, NewInvalidSaveError("saved counters do not fit the goal", err)
	}

	e.install(ProgressionState{
		CurrentGoalIndex:   index,
		CurrentPresetIndex: preset,
		ViabilityBaseline:  e.scaler.PreviousThreshold(e.catalog, index),
	}, ws)

	if e.ledger != nil {
		if fresh {
			e.ledger.Clear()
		} else {
			e.ledger.rebuild(save.PlacedObjects)
		}
	}

	e.logger.Debug().
		Int("goal_index", index).
		Int("preset_index", preset).
		Str("tier", string(ws.Tier())).
		Float64("threshold", ws.Threshold()).
		Msg("Progression restored")

	e.announce()
	return save, nil
}

// buildWorkingSet constructs the full-counter working set for a saved position.
func (e *Engine) buildWorkingSet(index, preset int) (*WorkingGoalSet, int, error) {
	tier := e.scaler.Tier(index)
	if tier == TierAuthored {
		def, _ := e.catalog.Goal(index)
		return FromDefinition(index, tier, def, def.Threshold), 0, nil
	}
	def, ok := e.catalog.Preset(tier, preset)
	if !ok {
		return nil, 0, NewInvalidSaveError(
			fmt.Sprintf("preset %d does not exist in the %s pool (%d presets)", preset, tier, e.catalog.Presets(tier)), nil)
	}
	return FromDefinition(index, tier, def, e.scaler.Threshold(index)), preset, nil
}

// Evaluate recomputes readiness: every requirement counter at zero, viability
// at or above the threshold, and happiness, power and sustenance strictly
// positive. Extras never gate readiness.
func (e *Engine) Evaluate(scores Scores) Readiness {
	ready := e.working.RequirementsMet() &&
		scores.Viability >= e.working.Threshold() &&
		scores.Happiness > 0 &&
		scores.Power > 0 &&
		scores.Sustenance > 0

	if ready {
		e.readiness = ReadinessReady
	} else {
		e.readiness = ReadinessInProgress
	}
	e.notifier.GoalReadinessChanged(ready)
	return e.readiness
}

// AdvanceGoal moves to the next goal. It fails with ErrNotReady unless the
// last Evaluate returned Ready and nothing was placed or undone since. Inside
// the catalog the next goal is a fresh copy of the authored definition; past
// it a preset is drawn uniformly from the easy or hard pool and the threshold
// is the current threshold plus that tier's increment. The ledger is cleared.
func (e *Engine) AdvanceGoal(ctx context.Context) (*WorkingGoalSet, error) {
	if !e.readiness.IsReady() {
		return nil, NewNotReadyError(e.state.CurrentGoalIndex)
	}

	next := e.state.CurrentGoalIndex + 1
	tier := e.scaler.Tier(next)
	preset := 0

	var ws *WorkingGoalSet
	if tier == TierAuthored {
		def, _ := e.catalog.Goal(next)
		ws = FromDefinition(next, tier, def, def.Threshold)
	} else {
		preset = e.drawPreset(next, tier)
		def, _ := e.catalog.Preset(tier, preset)
		ws = FromDefinition(next, tier, def, e.working.Threshold()+e.scaler.Increment(next))
	}

	p := Progression{GoalIndex: next, PresetIndex: preset, Counts: ws.Counts()}
	if err := e.mirror.WriteProgression(ctx, p); err != nil {
		return nil, NewMirrorError("advance", err)
	}

	baseline := e.working.Threshold()
	e.install(ProgressionState{
		CurrentGoalIndex:   next,
		CurrentPresetIndex: preset,
		ViabilityBaseline:  baseline,
	}, ws)
	if e.ledger != nil {
		e.ledger.Clear()
	}

	e.logger.Debug().
		Int("goal_index", next).
		Str("tier", string(tier)).
		Int("preset_index", preset).
		Float64("threshold", ws.Threshold()).
		Msg("Goal advanced")

	e.notifier.GoalAdvanced(next)
	e.announce()
	return ws.Clone(), nil
}

// drawPreset picks a preset uniformly from tier's pool for goal index.
func (e *Engine) drawPreset(index int, tier Tier) int {
	n := e.catalog.Presets(tier)
	if e.seed == 0 {
		return rand.IntN(n)
	}
	return rand.New(rand.NewPCG(e.seed, uint64(index))).IntN(n)
}

// ResetProgression returns to goal 0 with full counters, clears the baseline,
// the ledger and the mirror's placed objects. Used when a level is banished.
func (e *Engine) ResetProgression(ctx context.Context) error {
	return e.reset(ctx, false, "reset")
}

// BeginLevelTransition resets like ResetProgression and marks the save as
// written between levels, so the next Restore starts with fresh counters.
func (e *Engine) BeginLevelTransition(ctx context.Context) error {
	return e.reset(ctx, true, "transition")
}

func (e *Engine) reset(ctx context.Context, betweenTransition bool, operation string) error {
	ws := e.firstGoal()
	p := Progression{Counts: ws.Counts(), BetweenTransition: betweenTransition}
	if err := e.mirror.ResetLevel(ctx, p); err != nil {
		return NewMirrorError(operation, err)
	}

	e.install(ProgressionState{}, ws)
	if e.ledger != nil {
		e.ledger.Clear()
	}

	e.logger.Debug().Str("operation", operation).Msg("Progression reset to first goal")

	e.notifier.GoalAdvanced(0)
	e.announce()
	return nil
}

// install replaces progression and working set wholesale.
func (e *Engine) install(state ProgressionState, ws *WorkingGoalSet) {
	e.state = state
	e.working = ws
	e.readiness = ReadinessInProgress
}

// announce publishes the full working set and the derived flags.
func (e *Engine) announce() {
	for _, c := range e.working.requirements {
		e.notifier.RequirementCountChanged(c.Kind, true, c.Remaining)
	}
	for _, c := range e.working.extras {
		e.notifier.RequirementCountChanged(c.Kind, false, c.Remaining)
	}
	e.notifier.GoalReadinessChanged(false)
	e.notifier.LevelCompletable(e.Stage() == StageExhausted)
}

// markStale drops readiness after a counter change until the next Evaluate.
func (e *Engine) markStale() {
	e.readiness = ReadinessInProgress
}

// State returns the progression state.
func (e *Engine) State() ProgressionState {
	return e.state
}

// WorkingSet returns a copy of the active working set.
func (e *Engine) WorkingSet() *WorkingGoalSet {
	return e.working.Clone()
}

// Readiness returns the result of the last Evaluate, reset to in-progress by
// any placement, undo, advance or reset since.
func (e *Engine) Readiness() Readiness {
	return e.readiness
}

// Stage reports whether the authored catalog is exhausted.
func (e *Engine) Stage() Stage {
	if e.state.CurrentGoalIndex >= e.catalog.Len() {
		return StageExhausted
	}
	return StageAuthored
}

// Status folds readiness and stage into one state. A ready goal reports
// StateReady in either stage.
func (e *Engine) Status() State {
	switch {
	case e.readiness.IsReady():
		return StateReady
	case e.Stage() == StageExhausted:
		return StateExhausted
	default:
		return StateInProgress
	}
}

// Catalog returns the catalog the engine was built from.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Scaler returns the viability scaler for previews.
func (e *Engine) Scaler() ViabilityScaler {
	return e.scaler
}

// PreviousThreshold returns the threshold of the goal before the current one.
func (e *Engine) PreviousThreshold() float64 {
	return e.state.ViabilityBaseline
}
