package session

import (
	"github.com/sfbuilder/colony/pkg/goals"
)

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	SessionID string `json:"session_id"`

	GoalIndex         int        `json:"goal_index"`
	PresetIndex       int        `json:"preset_index"`
	Source            string     `json:"source"`
	Tier              goals.Tier `json:"tier"`
	Threshold         float64    `json:"threshold"`
	PreviousThreshold float64    `json:"previous_threshold"`

	Readiness        goals.Readiness `json:"readiness"`
	Stage            goals.Stage     `json:"stage"`
	State            goals.State     `json:"state"`
	LevelCompletable bool            `json:"level_completable"`
	Scores           goals.Scores    `json:"scores"`

	Requirements []goals.Counter `json:"requirements"`
	Extras       []goals.Counter `json:"extras,omitempty"`

	LedgerDepth    int `json:"ledger_depth"`
	LedgerCapacity int `json:"ledger_capacity"`
	Evicted        int `json:"evicted"`
	Placed         int `json:"placed"`
}

// Status returns a snapshot of the session.
func (s *Session) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.engine.State()
	ws := s.engine.WorkingSet()
	return Snapshot{
		SessionID:         s.id,
		GoalIndex:         state.CurrentGoalIndex,
		PresetIndex:       state.CurrentPresetIndex,
		Source:            ws.SourceID(),
		Tier:              ws.Tier(),
		Threshold:         ws.Threshold(),
		PreviousThreshold: s.engine.PreviousThreshold(),
		Readiness:         s.engine.Readiness(),
		Stage:             s.engine.Stage(),
		State:             s.engine.Status(),
		LevelCompletable:  s.engine.Stage() == goals.StageExhausted,
		Scores:            s.scores,
		Requirements:      ws.Requirements(),
		Extras:            ws.Extras(),
		LedgerDepth:       s.ledger.Len(),
		LedgerCapacity:    s.ledger.Capacity(),
		Evicted:           s.ledger.Evicted(),
		Placed:            len(s.world),
	}
}

// History returns the undoable placements, most recent first.
func (s *Session) History() []goals.PlacementRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.Records()
}

// Placed returns a copy of every object placed in the level.
func (s *Session) Placed() []goals.PlacedObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]goals.PlacedObject(nil), s.world...)
}

// GoalPreview describes an upcoming goal index.
type GoalPreview struct {
	Index     int        `json:"index"`
	Tier      goals.Tier `json:"tier"`
	Threshold float64    `json:"threshold"`

	// Source is the authored goal id; empty past the catalog, where the
	// preset is drawn on advance.
	Source string `json:"source,omitempty"`
}

// Preview lists the next n goals starting at the current one. Thresholds
// past the catalog are nominal: they chain from the last authored threshold,
// while a live session chains from its current goal.
func (s *Session) Preview(n int) []GoalPreview {
	s.mu.Lock()
	current := s.goalIndex()
	catalog := s.engine.Catalog()
	s.mu.Unlock()

	return PreviewCatalog(catalog, current, n)
}

// PreviewCatalog lists n goals of catalog starting at index from.
func PreviewCatalog(catalog *goals.Catalog, from, n int) []GoalPreview {
	if n < 0 {
		n = 0
	}
	scaler := catalog.Scaler()
	out := make([]GoalPreview, 0, n)
	for i := from; i < from+n; i++ {
		p := GoalPreview{
			Index:     i,
			Tier:      scaler.Tier(i),
			Threshold: scaler.ThresholdFor(catalog, i),
		}
		if def, ok := catalog.Goal(i); ok {
			p.Source = def.ID
		}
		out = append(out, p)
	}
	return out
}
