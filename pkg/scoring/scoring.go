// Package scoring computes the aggregate viability, happiness, power and
// sustenance totals that gate goal readiness.
package scoring

import (
	"context"

	"github.com/sfbuilder/colony/pkg/goals"
)

// Scorer computes aggregate scores over the objects placed in a level.
type Scorer interface {
	Score(ctx context.Context, objects []goals.PlacedObject) (goals.Scores, error)
}

// TableScorer sums a fixed per-kind contribution over placed objects.
type TableScorer struct {
	stats map[goals.ObjectType]goals.Scores
	base  goals.Scores
}

// NewTableScorer creates a scorer from a per-kind stat table. base is the
// score of an empty level.
func NewTableScorer(stats map[goals.ObjectType]goals.Scores, base goals.Scores) *TableScorer {
	copied := make(map[goals.ObjectType]goals.Scores, len(stats))
	for k, v := range stats {
		copied[k] = v
	}
	return &TableScorer{stats: copied, base: base}
}

// Score implements Scorer. Kinds missing from the table contribute nothing.
func (s *TableScorer) Score(_ context.Context, objects []goals.PlacedObject) (goals.Scores, error) {
	total := s.base
	for _, obj := range objects {
		add(&total, s.stats[obj.Kind])
	}
	return total, nil
}

// Stats returns the contribution of one object of kind.
func (s *TableScorer) Stats(kind goals.ObjectType) goals.Scores {
	return s.stats[kind]
}

// Fixed always returns the same scores. Useful for previews and tests.
type Fixed goals.Scores

// Score implements Scorer.
func (f Fixed) Score(context.Context, []goals.PlacedObject) (goals.Scores, error) {
	return goals.Scores(f), nil
}

func add(total *goals.Scores, s goals.Scores) {
	total.Viability += s.Viability
	total.Happiness += s.Happiness
	total.Power += s.Power
	total.Sustenance += s.Sustenance
}
