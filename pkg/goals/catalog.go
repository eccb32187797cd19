package goals

import "fmt"

// GoalRequirement is one structure kind and the count required of it.
type GoalRequirement struct {
	Kind  ObjectType `json:"kind" yaml:"kind"`
	Count int        `json:"count" yaml:"count"`
}

// GoalDefinition is an authored goal tier or procedural preset.
type GoalDefinition struct {
	// ID is the tier name or preset id.
	ID string `json:"id" yaml:"id"`

	// Threshold is the authored minimum viability. Presets ignore it; their
	// threshold is derived from their position in the sequence.
	Threshold float64 `json:"viability" yaml:"viability"`

	// Requirements must all reach zero before the goal can be advanced.
	Requirements []GoalRequirement `json:"requirements" yaml:"requirements"`

	// Extras are optional allowances that never gate readiness.
	Extras []GoalRequirement `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// Clone returns a deep copy of the definition.
func (d GoalDefinition) Clone() GoalDefinition {
	out := d
	out.Requirements = append([]GoalRequirement(nil), d.Requirements...)
	out.Extras = append([]GoalRequirement(nil), d.Extras...)
	return out
}

func (d GoalDefinition) validate(where string) error {
	if d.ID == "" {
		return fmt.Errorf("%s: id is required", where)
	}
	if d.Threshold < 0 {
		return fmt.Errorf("%s (%s): viability must not be negative", where, d.ID)
	}
	for name, list := range map[string][]GoalRequirement{"requirements": d.Requirements, "extras": d.Extras} {
		seen := make(map[ObjectType]bool, len(list))
		for _, r := range list {
			if !r.Kind.Valid() {
				return fmt.Errorf("%s (%s): %s has invalid kind %d", where, d.ID, name, int(r.Kind))
			}
			if r.Count < 0 {
				return fmt.Errorf("%s (%s): %s count for %s must not be negative", where, d.ID, name, r.Kind)
			}
			if seen[r.Kind] {
				return fmt.Errorf("%s (%s): %s lists %s twice", where, d.ID, name, r.Kind)
			}
			seen[r.Kind] = true
		}
	}
	return nil
}

// InfinitePlay holds the constants that scale goals past the authored catalog.
type InfinitePlay struct {
	// CrossoverFraction times the catalog length gives the last easy index.
	CrossoverFraction float64 `json:"crossover_fraction" yaml:"crossover_fraction"`

	// EasyIncrement is added to the threshold for each easy infinite goal.
	EasyIncrement float64 `json:"easy_increment" yaml:"easy_increment"`

	// HardIncrement is added to the threshold for each hard infinite goal.
	HardIncrement float64 `json:"hard_increment" yaml:"hard_increment"`
}

// DefaultInfinitePlay returns the stock infinite-play constants.
func DefaultInfinitePlay() InfinitePlay {
	return InfinitePlay{
		CrossoverFraction: 1.5,
		EasyIncrement:     5,
		HardIncrement:     10,
	}
}

func (p InfinitePlay) validate() error {
	if p.CrossoverFraction <= 0 {
		return fmt.Errorf("crossover fraction must be positive, got %v", p.CrossoverFraction)
	}
	if p.EasyIncrement <= 0 || p.HardIncrement <= 0 {
		return fmt.Errorf("viability increments must be positive, got easy=%v hard=%v", p.EasyIncrement, p.HardIncrement)
	}
	return nil
}

// Catalog is the immutable authored goal sequence plus the easy and hard
// preset pools used once the sequence is exhausted.
type Catalog struct {
	goals    []GoalDefinition
	easy     []GoalDefinition
	hard     []GoalDefinition
	infinite InfinitePlay
}

// NewCatalog validates and deep-copies the given definitions.
func NewCatalog(goals, easy, hard []GoalDefinition, infinite InfinitePlay) (*Catalog, error) {
	if len(goals) == 0 {
		return nil, NewInvalidCatalogError("catalog needs at least one authored goal", nil)
	}
	if len(easy) == 0 || len(hard) == 0 {
		return nil, NewInvalidCatalogError("catalog needs at least one easy and one hard preset", nil)
	}
	if err := infinite.validate(); err != nil {
		return nil, NewInvalidCatalogError("invalid infinite play settings", err)
	}

	c := &Catalog{infinite: infinite}
	pools := []struct {
		name string
		src  []GoalDefinition
		dst  *[]GoalDefinition
	}{
		{"goals", goals, &c.goals},
		{"easy_presets", easy, &c.easy},
		{"hard_presets", hard, &c.hard},
	}
	for _, p := range pools {
		out := make([]GoalDefinition, len(p.src))
		for i, def := range p.src {
			if err := def.validate(fmt.Sprintf("%s[%d]", p.name, i)); err != nil {
				return nil, NewInvalidCatalogError("invalid goal definition", err)
			}
			out[i] = def.Clone()
		}
		*p.dst = out
	}

	for i := 1; i < len(c.goals); i++ {
		if c.goals[i].Threshold < c.goals[i-1].Threshold {
			return nil, NewInvalidCatalogError(
				fmt.Sprintf("authored viability must not decrease (goals[%d]=%v < goals[%d]=%v)",
					i, c.goals[i].Threshold, i-1, c.goals[i-1].Threshold), nil)
		}
	}

	return c, nil
}

// Len returns the number of authored goals.
func (c *Catalog) Len() int {
	return len(c.goals)
}

// Goal returns a copy of the authored goal at index.
func (c *Catalog) Goal(index int) (GoalDefinition, bool) {
	if index < 0 || index >= len(c.goals) {
		return GoalDefinition{}, false
	}
	return c.goals[index].Clone(), true
}

// Presets returns the number of presets in the pool for the tier.
func (c *Catalog) Presets(tier Tier) int {
	switch tier {
	case TierEasy:
		return len(c.easy)
	case TierHard:
		return len(c.hard)
	default:
		return 0
	}
}

// Preset returns a copy of a preset from the pool for the tier.
func (c *Catalog) Preset(tier Tier, index int) (GoalDefinition, bool) {
	var pool []GoalDefinition
	switch tier {
	case TierEasy:
		pool = c.easy
	case TierHard:
		pool = c.hard
	default:
		return GoalDefinition{}, false
	}
	if index < 0 || index >= len(pool) {
		return GoalDefinition{}, false
	}
	return pool[index].Clone(), true
}

// InfinitePlay returns the infinite-play constants.
func (c *Catalog) InfinitePlay() InfinitePlay {
	return c.infinite
}

// Scaler returns the viability scaler derived from this catalog.
func (c *Catalog) Scaler() ViabilityScaler {
	return NewViabilityScaler(len(c.goals), c.goals[len(c.goals)-1].Threshold, c.infinite)
}

// Kinds returns every kind referenced anywhere in the catalog, deduplicated,
// in first-seen order.
func (c *Catalog) Kinds() []ObjectType {
	seen := make(map[ObjectType]bool)
	var out []ObjectType
	for _, pool := range [][]GoalDefinition{c.goals, c.easy, c.hard} {
		for _, def := range pool {
			for _, list := range [][]GoalRequirement{def.Requirements, def.Extras} {
				for _, r := range list {
					if !seen[r.Kind] {
						seen[r.Kind] = true
						out = append(out, r.Kind)
					}
				}
			}
		}
	}
	return out
}
