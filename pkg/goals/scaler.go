package goals

import "math"

// ViabilityScaler computes thresholds and tiers for any goal index, including
// indices past the authored catalog. It holds no mutable state; every method
// is safe to call for previews.
type ViabilityScaler struct {
	catalogLen    int
	lastThreshold float64
	crossover     int
	easy          float64
	hard          float64
}

// NewViabilityScaler builds a scaler for a catalog of catalogLen goals whose
// last authored threshold is lastThreshold.
func NewViabilityScaler(catalogLen int, lastThreshold float64, play InfinitePlay) ViabilityScaler {
	return ViabilityScaler{
		catalogLen:    catalogLen,
		lastThreshold: lastThreshold,
		crossover:     int(math.Floor(float64(catalogLen) * play.CrossoverFraction)),
		easy:          play.EasyIncrement,
		hard:          play.HardIncrement,
	}
}

// CrossoverIndex is the last index that belongs to the easy tier.
func (s ViabilityScaler) CrossoverIndex() int {
	return s.crossover
}

// InfiniteTier classifies an index by the crossover alone. The boundary is
// inclusive to easy.
func (s ViabilityScaler) InfiniteTier(index int) Tier {
	if index <= s.crossover {
		return TierEasy
	}
	return TierHard
}

// Tier returns TierAuthored inside the catalog and the infinite tier past it.
func (s ViabilityScaler) Tier(index int) Tier {
	if index < s.catalogLen {
		return TierAuthored
	}
	return s.InfiniteTier(index)
}

// Increment is the threshold step taken when advancing onto index.
func (s ViabilityScaler) Increment(index int) float64 {
	if s.InfiniteTier(index) == TierEasy {
		return s.easy
	}
	return s.hard
}

// Threshold returns the viability threshold for an infinite-play index by
// chaining increments from the last authored threshold. For authored indices
// it returns the last authored threshold; use Catalog.Goal for those values
// or call ThresholdFor.
func (s ViabilityScaler) Threshold(index int) float64 {
	if index < s.catalogLen {
		return s.lastThreshold
	}
	steps := index - s.catalogLen + 1
	easySteps := s.crossover - s.catalogLen + 1
	if easySteps < 0 {
		easySteps = 0
	}
	if easySteps > steps {
		easySteps = steps
	}
	hardSteps := steps - easySteps
	return s.lastThreshold + float64(easySteps)*s.easy + float64(hardSteps)*s.hard
}

// ThresholdFor returns the threshold of any index, reading authored values
// from the catalog.
func (s ViabilityScaler) ThresholdFor(c *Catalog, index int) float64 {
	if def, ok := c.Goal(index); ok {
		return def.Threshold
	}
	return s.Threshold(index)
}

// PreviousThreshold returns the threshold of the goal before index, or 0 at index 0.
func (s ViabilityScaler) PreviousThreshold(c *Catalog, index int) float64 {
	if index <= 0 {
		return 0
	}
	return s.ThresholdFor(c, index-1)
}
