package goals

import "fmt"

// Counter is a live requirement or extra: Remaining starts at Required and
// only moves within [0, Required].
type Counter struct {
	Kind      ObjectType `json:"kind"`
	Required  int        `json:"required"`
	Remaining int        `json:"remaining"`
}

// WorkingGoalSet is an independently owned copy of one goal definition with
// live counters. Only the ledger changes its counters; the engine replaces
// it wholesale on advance and reset.
type WorkingGoalSet struct {
	goalIndex    int
	sourceID     string
	tier         Tier
	threshold    float64
	requirements []Counter
	extras       []Counter
}

// FromDefinition builds a working set with full counters. The definition's
// slices are copied; later changes to def do not reach the working set.
func FromDefinition(goalIndex int, tier Tier, def GoalDefinition, threshold float64) *WorkingGoalSet {
	ws := &WorkingGoalSet{
		goalIndex:    goalIndex,
		sourceID:     def.ID,
		tier:         tier,
		threshold:    threshold,
		requirements: make([]Counter, len(def.Requirements)),
		extras:       make([]Counter, len(def.Extras)),
	}
	for i, r := range def.Requirements {
		ws.requirements[i] = Counter{Kind: r.Kind, Required: r.Count, Remaining: r.Count}
	}
	for i, r := range def.Extras {
		ws.extras[i] = Counter{Kind: r.Kind, Required: r.Count, Remaining: r.Count}
	}
	return ws
}

// Clone returns a deep copy.
func (ws *WorkingGoalSet) Clone() *WorkingGoalSet {
	out := *ws
	out.requirements = append([]Counter(nil), ws.requirements...)
	out.extras = append([]Counter(nil), ws.extras...)
	return &out
}

// GoalIndex returns the goal index this set was built for.
func (ws *WorkingGoalSet) GoalIndex() int { return ws.goalIndex }

// SourceID returns the id of the authored goal or preset it was copied from.
func (ws *WorkingGoalSet) SourceID() string { return ws.sourceID }

// Tier returns where the definition came from.
func (ws *WorkingGoalSet) Tier() Tier { return ws.tier }

// Threshold returns the minimum viability for this goal.
func (ws *WorkingGoalSet) Threshold() float64 { return ws.threshold }

// Requirements returns a copy of the requirement counters.
func (ws *WorkingGoalSet) Requirements() []Counter {
	return append([]Counter(nil), ws.requirements...)
}

// Extras returns a copy of the extra counters.
func (ws *WorkingGoalSet) Extras() []Counter {
	return append([]Counter(nil), ws.extras...)
}

// RequirementsMet reports whether every requirement counter is zero.
func (ws *WorkingGoalSet) RequirementsMet() bool {
	for _, c := range ws.requirements {
		if c.Remaining != 0 {
			return false
		}
	}
	return true
}

// Counts flattens remaining counts, requirements then extras. This is the
// order the save mirror persists.
func (ws *WorkingGoalSet) Counts() []int {
	out := make([]int, 0, len(ws.requirements)+len(ws.extras))
	for _, c := range ws.requirements {
		out = append(out, c.Remaining)
	}
	for _, c := range ws.extras {
		out = append(out, c.Remaining)
	}
	return out
}

// Remaining returns the remaining count for kind in the requirement or extra bucket.
func (ws *WorkingGoalSet) Remaining(kind ObjectType, required bool) (int, bool) {
	slot, ok := ws.slotOf(kind, required)
	if !ok {
		return 0, false
	}
	return ws.counter(slot).Remaining, true
}

// Slots are indices into the flattened requirements+extras order.

func (ws *WorkingGoalSet) slotCount() int {
	return len(ws.requirements) + len(ws.extras)
}

func (ws *WorkingGoalSet) isRequired(slot int) bool {
	return slot < len(ws.requirements)
}

func (ws *WorkingGoalSet) counter(slot int) *Counter {
	if slot < len(ws.requirements) {
		return &ws.requirements[slot]
	}
	return &ws.extras[slot-len(ws.requirements)]
}

func (ws *WorkingGoalSet) slotOf(kind ObjectType, required bool) (int, bool) {
	if required {
		for i, c := range ws.requirements {
			if c.Kind == kind {
				return i, true
			}
		}
		return 0, false
	}
	for i, c := range ws.extras {
		if c.Kind == kind {
			return len(ws.requirements) + i, true
		}
	}
	return 0, false
}

// match picks the slot a placement of kind consumes: the requirement first,
// then the extra. known is false when neither bucket lists the kind; a known
// kind with both buckets at zero yields ok=false.
func (ws *WorkingGoalSet) match(kind ObjectType) (slot int, known, ok bool) {
	for _, required := range []bool{true, false} {
		s, found := ws.slotOf(kind, required)
		if !found {
			continue
		}
		known = true
		if ws.counter(s).Remaining > 0 {
			return s, true, true
		}
	}
	return 0, known, false
}

func (ws *WorkingGoalSet) consume(slot int) {
	c := ws.counter(slot)
	if c.Remaining > 0 {
		c.Remaining--
	}
}

func (ws *WorkingGoalSet) release(slot int) {
	c := ws.counter(slot)
	if c.Remaining < c.Required {
		c.Remaining++
	}
}

func (ws *WorkingGoalSet) setRemaining(slot, n int) {
	c := ws.counter(slot)
	switch {
	case n < 0:
		n = 0
	case n > c.Required:
		n = c.Required
	}
	c.Remaining = n
}

// restoreCounts overwrites remaining counts from a flattened save array.
func (ws *WorkingGoalSet) restoreCounts(counts []int) error {
	if len(counts) != ws.slotCount() {
		return fmt.Errorf("save has %d counts, goal %q has %d counters", len(counts), ws.sourceID, ws.slotCount())
	}
	for slot, n := range counts {
		c := ws.counter(slot)
		if n < 0 || n > c.Required {
			return fmt.Errorf("saved count %d for %s is outside [0, %d]", n, c.Kind, c.Required)
		}
	}
	for slot, n := range counts {
		ws.counter(slot).Remaining = n
	}
	return nil
}
