package stores

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sfbuilder/colony/pkg/goals"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	var store Store
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	tables := []string{"progression", "placed_objects", "journal"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Running migrations twice is a no-op
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestLoadEmpty(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state before any write, got %+v", state)
	}
}

func TestPlacementRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.WriteProgression(ctx, goals.Progression{GoalIndex: 2, PresetIndex: 0, Counts: []int{2, 1, 3}}); err != nil {
		t.Fatalf("failed to write progression: %v", err)
	}

	habitat := goals.PlacedObject{
		Kind:      goals.ObjectHabitat,
		Position:  goals.Vec3{X: 1.5, Y: 0, Z: -3},
		Rotation:  goals.Rotation{Y: 0.7071, W: 0.7071},
		GoalIndex: 2,
		Required:  true,
	}
	park := goals.PlacedObject{
		Kind:      goals.ObjectPark,
		Position:  goals.Vec3{X: 4},
		Rotation:  goals.IdentityRotation,
		GoalIndex: 2,
		Required:  false,
	}

	if err := store.AppendPlacement(ctx, habitat, []int{1, 1, 3}); err != nil {
		t.Fatalf("failed to append placement: %v", err)
	}
	if err := store.AppendPlacement(ctx, park, []int{1, 1, 2}); err != nil {
		t.Fatalf("failed to append placement: %v", err)
	}

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if state == nil {
		t.Fatal("expected saved state")
	}

	if state.GoalIndex != 2 {
		t.Errorf("expected goal index 2, got %d", state.GoalIndex)
	}
	if len(state.Counts) != 3 || state.Counts[0] != 1 || state.Counts[2] != 2 {
		t.Errorf("unexpected counts %v", state.Counts)
	}
	if len(state.PlacedObjects) != 2 {
		t.Fatalf("expected 2 placed objects, got %d", len(state.PlacedObjects))
	}
	if state.PlacedObjects[0] != habitat {
		t.Errorf("expected %+v, got %+v", habitat, state.PlacedObjects[0])
	}
	if state.PlacedObjects[1] != park {
		t.Errorf("expected %+v, got %+v", park, state.PlacedObjects[1])
	}

	// Pop removes the last placement only
	if err := store.PopPlacement(ctx, []int{1, 1, 3}); err != nil {
		t.Fatalf("failed to pop placement: %v", err)
	}

	placements, err := store.ListPlacements(ctx)
	if err != nil {
		t.Fatalf("failed to list placements: %v", err)
	}
	if len(placements) != 1 || placements[0].Object.Kind != goals.ObjectHabitat {
		t.Fatalf("expected only the habitat to remain, got %d placements", len(placements))
	}

	row, err := store.GetProgression(ctx)
	if err != nil {
		t.Fatalf("failed to get progression: %v", err)
	}
	if row.Counts[2] != 3 {
		t.Errorf("expected extra count restored to 3, got %d", row.Counts[2])
	}
	if row.GoalIndex != 2 {
		t.Errorf("pop must keep goal index, got %d", row.GoalIndex)
	}
}

func TestPopPlacementEmpty(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	err := store.PopPlacement(context.Background(), []int{1})
	if !errors.Is(err, ErrNoPlacements) {
		t.Fatalf("expected ErrNoPlacements, got %v", err)
	}
}

func TestResetLevel(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	obj := goals.PlacedObject{Kind: goals.ObjectFarm, Rotation: goals.IdentityRotation, GoalIndex: 3, Required: true}
	if err := store.WriteProgression(ctx, goals.Progression{GoalIndex: 3, Counts: []int{1}}); err != nil {
		t.Fatalf("failed to write progression: %v", err)
	}
	if err := store.AppendPlacement(ctx, obj, []int{0}); err != nil {
		t.Fatalf("failed to append placement: %v", err)
	}

	p := goals.Progression{GoalIndex: 0, Counts: []int{2, 1}, BetweenTransition: true}
	if err := store.ResetLevel(ctx, p); err != nil {
		t.Fatalf("failed to reset level: %v", err)
	}

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if state.GoalIndex != 0 || !state.BetweenTransition {
		t.Errorf("unexpected progression after reset: %+v", state.Progression)
	}
	if len(state.PlacedObjects) != 0 {
		t.Errorf("expected no placed objects after reset, got %d", len(state.PlacedObjects))
	}
}

func TestJournalOperations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	details := `{"kind":"Habitat"}`

	entries := []*JournalEntry{
		{SessionID: "s-1", Action: JournalActionPlace, GoalIndex: 0, Details: &details},
		{SessionID: "s-1", Action: JournalActionUndo, GoalIndex: 0},
		{SessionID: "s-1", Action: JournalActionPlace, GoalIndex: 0, Details: &details},
		{SessionID: "s-1", Action: JournalActionAdvance, GoalIndex: 1},
	}
	for _, e := range entries {
		if err := store.AppendJournal(ctx, e); err != nil {
			t.Fatalf("failed to append journal entry: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected journal entry ID to be set")
		}
	}

	all, err := store.ListJournal(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list journal: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
	if all[0].Action != JournalActionAdvance {
		t.Errorf("expected newest entry first, got %s", all[0].Action)
	}

	action := JournalActionPlace
	places, err := store.ListJournal(ctx, &action, 10, 0)
	if err != nil {
		t.Fatalf("failed to list journal by action: %v", err)
	}
	if len(places) != 2 {
		t.Fatalf("expected 2 place entries, got %d", len(places))
	}
	if places[0].Details == nil || *places[0].Details != details {
		t.Errorf("expected details %s, got %v", details, places[0].Details)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colony.db")
	ctx := context.Background()

	open := func() *SQLiteStore {
		store, err := NewSQLiteStore(Config{Path: path})
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		if err := store.Init(ctx); err != nil {
			t.Fatalf("failed to initialize store: %v", err)
		}
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to migrate store: %v", err)
		}
		return store
	}

	store := open()
	obj := goals.PlacedObject{Kind: goals.ObjectMine, Rotation: goals.IdentityRotation, GoalIndex: 0, Required: true}
	if err := store.AppendPlacement(ctx, obj, []int{0, 2}); err != nil {
		t.Fatalf("failed to append placement: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	store = open()
	defer store.Close()

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if state == nil || len(state.PlacedObjects) != 1 || state.PlacedObjects[0].Kind != goals.ObjectMine {
		t.Fatalf("expected the mine to survive reopen, got %+v", state)
	}
}

func TestMemoryMirrorFailNext(t *testing.T) {
	m := NewMemoryMirror()
	ctx := context.Background()

	boom := errors.New("disk full")
	m.FailNext(boom)

	err := m.AppendPlacement(ctx, goals.PlacedObject{Kind: goals.ObjectFarm}, []int{0})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}

	state, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if state != nil {
		t.Fatal("failed write must not create a save")
	}

	if err := m.AppendPlacement(ctx, goals.PlacedObject{Kind: goals.ObjectFarm}, []int{0}); err != nil {
		t.Fatalf("second write should succeed: %v", err)
	}
	if m.Writes() != 1 {
		t.Errorf("expected 1 write, got %d", m.Writes())
	}
}

func TestMemoryMirrorLoadIsACopy(t *testing.T) {
	m := NewMemoryMirrorFrom(goals.SaveState{Progression: goals.Progression{Counts: []int{3}}})

	state, _ := m.Load(context.Background())
	state.Counts[0] = 99

	again, _ := m.Load(context.Background())
	if again.Counts[0] != 3 {
		t.Errorf("mutating a loaded state leaked into the mirror: %v", again.Counts)
	}
}

func TestJournalActionValidate(t *testing.T) {
	for _, a := range []JournalAction{
		JournalActionPlace, JournalActionUndo, JournalActionAdvance,
		JournalActionBanish, JournalActionTransition, JournalActionVerify,
	} {
		if err := a.Validate(); err != nil {
			t.Errorf("expected %s to be valid: %v", a, err)
		}
	}
	if err := JournalAction("teleport").Validate(); err == nil {
		t.Error("expected unknown action to be invalid")
	}
}

// TestMain sets up and tears down test environment
func TestMain(m *testing.M) {
	// Run tests
	code := m.Run()

	// Exit
	os.Exit(code)
}
