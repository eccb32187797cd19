package goals

import "fmt"

// Readiness is the result of evaluating the active goal's gating conditions.
type Readiness string

const (
	// ReadinessInProgress indicates unmet requirements, insufficient viability
	// or a non-positive happiness, power or sustenance total.
	ReadinessInProgress Readiness = "in_progress"

	// ReadinessReady indicates every gating condition holds and AdvanceGoal is permitted.
	ReadinessReady Readiness = "ready"
)

// IsReady returns true for ReadinessReady.
func (r Readiness) IsReady() bool {
	return r == ReadinessReady
}

// Stage describes which generator supplies working sets.
type Stage string

const (
	// StageAuthored indicates the active goal comes from the authored catalog.
	StageAuthored Stage = "authored"

	// StageExhausted indicates the authored catalog is finished and goals are
	// drawn from the procedural preset pools (infinite play). There is no
	// terminal stage.
	StageExhausted Stage = "exhausted"
)

// State is the combined progression state reported to callers.
type State string

const (
	StateInProgress State = "in_progress"
	StateReady      State = "ready"
	StateExhausted  State = "exhausted"
)

// Tier identifies where the definition for a goal index comes from.
type Tier string

const (
	// TierAuthored is an index inside the authored catalog.
	TierAuthored Tier = "authored"

	// TierEasy is an infinite-play index at or below the crossover index.
	TierEasy Tier = "easy"

	// TierHard is an infinite-play index past the crossover index.
	TierHard Tier = "hard"
)

// Validate checks if the tier is valid.
func (t Tier) Validate() error {
	switch t {
	case TierAuthored, TierEasy, TierHard:
		return nil
	default:
		return fmt.Errorf("invalid tier: %s", t)
	}
}

// Scores are the aggregate totals supplied by the scoring collaborator.
type Scores struct {
	Viability  float64 `json:"viability"`
	Happiness  float64 `json:"happiness"`
	Power      float64 `json:"power"`
	Sustenance float64 `json:"sustenance"`
}
