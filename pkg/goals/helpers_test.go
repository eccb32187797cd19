package goals_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sfbuilder/colony/pkg/goals"
	"github.com/sfbuilder/colony/pkg/stores"
)

type countChange struct {
	Kind     goals.ObjectType
	Required bool
	Count    int
}

// recorder captures notifications in order.
type recorder struct {
	advanced    []int
	readiness   []bool
	counts      []countChange
	completable []bool
}

func (r *recorder) GoalAdvanced(i int) { r.advanced = append(r.advanced, i) }
func (r *recorder) GoalReadinessChanged(ok bool) { r.readiness = append(r.readiness, ok) }
func (r *recorder) LevelCompletable(ok bool) { r.completable = append(r.completable, ok) }
func (r *recorder) RequirementCountChanged(kind goals.ObjectType, required bool, n int) {
	r.counts = append(r.counts, countChange{kind, required, n})
}

func (r *recorder) lastCount() countChange {
	return r.counts[len(r.counts)-1]
}

func req(kind goals.ObjectType, n int) goals.GoalRequirement {
	return goals.GoalRequirement{Kind: kind, Count: n}
}

// testCatalog has three authored goals, two easy presets and one hard preset.
// With the default crossover of 1.5, indices 3 and 4 are easy and 5 onward hard.
func testCatalog(t *testing.T) *goals.Catalog {
	t.Helper()

	authored := []goals.GoalDefinition{
		{
			ID:           "outpost",
			Threshold:    10,
			Requirements: []goals.GoalRequirement{req(goals.ObjectHabitat, 2), req(goals.ObjectFarm, 1)},
			Extras:       []goals.GoalRequirement{req(goals.ObjectPark, 1)},
		},
		{
			ID:           "settlement",
			Threshold:    20,
			Requirements: []goals.GoalRequirement{req(goals.ObjectHabitat, 1), req(goals.ObjectPowerPlant, 1)},
		},
		{
			ID:           "town",
			Threshold:    30,
			Requirements: []goals.GoalRequirement{req(goals.ObjectHospital, 1)},
		},
	}
	easy := []goals.GoalDefinition{
		{ID: "easy-farms", Requirements: []goals.GoalRequirement{req(goals.ObjectFarm, 1)}},
		{ID: "easy-mines", Requirements: []goals.GoalRequirement{req(goals.ObjectMine, 1)}},
	}
	hard := []goals.GoalDefinition{
		{ID: "hard-industry", Requirements: []goals.GoalRequirement{req(goals.ObjectRefinery, 2)}},
	}

	c, err := goals.NewCatalog(authored, easy, hard, goals.DefaultInfinitePlay())
	require.NoError(t, err)
	return c
}

// singleGoalCatalog wraps one authored goal with trivial preset pools.
func singleGoalCatalog(t *testing.T, def goals.GoalDefinition) *goals.Catalog {
	t.Helper()

	preset := []goals.GoalDefinition{{ID: "preset", Requirements: []goals.GoalRequirement{req(goals.ObjectFarm, 1)}}}
	c, err := goals.NewCatalog([]goals.GoalDefinition{def}, preset, preset, goals.DefaultInfinitePlay())
	require.NoError(t, err)
	return c
}

type fixture struct {
	engine *goals.Engine
	ledger *goals.Ledger
	mirror *stores.MemoryMirror
	notes  *recorder
}

func newFixture(t *testing.T, catalog *goals.Catalog, capacity int) *fixture {
	t.Helper()
	return newFixtureWithMirror(t, catalog, stores.NewMemoryMirror(), capacity)
}

func newFixtureWithMirror(t *testing.T, catalog *goals.Catalog, mirror *stores.MemoryMirror, capacity int) *fixture {
	t.Helper()
	return newSeededFixture(t, catalog, mirror, capacity, 7)
}

func newSeededFixture(t *testing.T, catalog *goals.Catalog, mirror *stores.MemoryMirror, capacity int, seed uint64) *fixture {
	t.Helper()

	notes := &recorder{}
	engine, err := goals.NewEngine(catalog, goals.EngineOptions{
		Mirror:   mirror,
		Notifier: notes,
		Seed:     seed,
	})
	require.NoError(t, err)

	ledger, err := goals.NewLedger(engine, capacity)
	require.NoError(t, err)

	_, err = engine.Restore(context.Background())
	require.NoError(t, err)

	return &fixture{engine: engine, ledger: ledger, mirror: mirror, notes: notes}
}

func (f *fixture) place(t *testing.T, kind goals.ObjectType) goals.PlacementRecord {
	t.Helper()
	rec, err := f.ledger.Place(context.Background(), goals.PlacementRecord{Kind: kind, Orientation: goals.IdentityRotation})
	require.NoError(t, err)
	return rec
}

// completeRequirements places every remaining requirement of the active goal.
func (f *fixture) completeRequirements(t *testing.T) {
	t.Helper()
	for _, c := range f.engine.WorkingSet().Requirements() {
		for i := 0; i < c.Remaining; i++ {
			f.place(t, c.Kind)
		}
	}
}

func scores(viability float64) goals.Scores {
	return goals.Scores{Viability: viability, Happiness: 1, Power: 1, Sustenance: 1}
}

func remaining(t *testing.T, e *goals.Engine, kind goals.ObjectType, required bool) int {
	t.Helper()
	n, ok := e.WorkingSet().Remaining(kind, required)
	require.True(t, ok, "kind %s not in working set", kind)
	return n
}
