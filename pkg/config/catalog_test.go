package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/sfbuilder/colony/pkg/goals"
)

const testCatalog = `
version: 1
name: red-valley
goals:
  - id: outpost
    viability: 10
    requirements:
      - {kind: Habitat, count: 2}
      - {kind: farm, count: 1}
    extras:
      - {kind: Park, count: 1}
  - id: settlement
    viability: 20
    requirements:
      - {kind: power_plant, count: 1}
presets:
  easy:
    - id: easy-farms
      requirements: [{kind: Farm, count: 2}]
  hard:
    - id: hard-industry
      requirements: [{kind: Refinery, count: 2}]
stats:
  Habitat: {viability: 3, happiness: 1, power: -1, sustenance: -1}
  Farm: {viability: 1, sustenance: 3}
`

func TestCatalogLoaderParse(t *testing.T) {
	loaded, err := NewCatalogLoader().Parse([]byte(testCatalog), nil)
	if err != nil {
		t.Fatalf("failed to parse catalog: %v", err)
	}

	if loaded.Name != "red-valley" {
		t.Errorf("expected name red-valley, got %s", loaded.Name)
	}
	if loaded.Catalog.Len() != 2 {
		t.Fatalf("expected 2 goals, got %d", loaded.Catalog.Len())
	}

	outpost, _ := loaded.Catalog.Goal(0)
	if outpost.Threshold != 10 {
		t.Errorf("expected threshold 10, got %v", outpost.Threshold)
	}
	if len(outpost.Requirements) != 2 || outpost.Requirements[1].Kind != goals.ObjectFarm {
		t.Errorf("unexpected outpost requirements: %+v", outpost.Requirements)
	}
	if len(outpost.Extras) != 1 || outpost.Extras[0].Kind != goals.ObjectPark {
		t.Errorf("unexpected outpost extras: %+v", outpost.Extras)
	}

	settlement, _ := loaded.Catalog.Goal(1)
	if settlement.Requirements[0].Kind != goals.ObjectPowerPlant {
		t.Errorf("expected power_plant to parse as PowerPlant, got %s", settlement.Requirements[0].Kind)
	}

	if loaded.Catalog.InfinitePlay() != goals.DefaultInfinitePlay() {
		t.Errorf("expected default infinite play, got %+v", loaded.Catalog.InfinitePlay())
	}

	if got := loaded.Stats[goals.ObjectHabitat]; got.Viability != 3 || got.Power != -1 {
		t.Errorf("unexpected habitat stats: %+v", got)
	}
}

func TestCatalogLoaderOverride(t *testing.T) {
	override := goals.InfinitePlay{CrossoverFraction: 3, EasyIncrement: 1, HardIncrement: 2}
	loaded, err := NewCatalogLoader().Parse([]byte(testCatalog), &override)
	if err != nil {
		t.Fatalf("failed to parse catalog: %v", err)
	}
	if loaded.Catalog.InfinitePlay() != override {
		t.Errorf("expected override %+v, got %+v", override, loaded.Catalog.InfinitePlay())
	}
}

func TestCatalogLoaderRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantMsg string
	}{
		{
			name:    "unknown top-level key",
			mutate:  func(s string) string { return s + "levels: 3\n" },
			wantMsg: "schema",
		},
		{
			name:    "negative count",
			mutate:  func(s string) string { return strings.Replace(s, "{kind: Habitat, count: 2}", "{kind: Habitat, count: -2}", 1) },
			wantMsg: "schema",
		},
		{
			name:    "no goals",
			mutate:  func(s string) string { return strings.Replace(s, "goals:\n", "goals: []\nold_goals:\n", 1) },
			wantMsg: "schema",
		},
		{
			name:    "empty hard pool",
			mutate:  func(s string) string { return s[:strings.Index(s, "  hard:")] + "  hard: []\n" },
			wantMsg: "schema",
		},
		{
			name:    "unknown kind",
			mutate:  func(s string) string { return strings.Replace(s, "kind: Park", "kind: Castle", 1) },
			wantMsg: "Castle",
		},
		{
			name:    "duplicate requirement",
			mutate:  func(s string) string { return strings.Replace(s, "kind: farm", "kind: habitat", 1) },
			wantMsg: "twice",
		},
		{
			name:    "unknown stats kind",
			mutate:  func(s string) string { return strings.Replace(s, "Farm: {viability: 1", "Barn: {viability: 1", 1) },
			wantMsg: "Barn",
		},
		{
			name:    "not yaml",
			mutate:  func(string) string { return "goals: [\n" },
			wantMsg: "YAML",
		},
		{
			name:    "empty",
			mutate:  func(string) string { return "" },
			wantMsg: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalogLoader().Parse([]byte(tt.mutate(testCatalog)), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, goals.ErrInvalidCatalog) {
				t.Errorf("expected INVALID_CATALOG, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error to mention %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestCatalogLoaderLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalog), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	loaded, err := NewCatalogLoader().LoadFile(path, nil)
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	if loaded.Source != path {
		t.Errorf("expected source %s, got %s", path, loaded.Source)
	}

	_, err = NewCatalogLoader().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	loader := NewCatalogLoader()
	loaded, err := loader.Parse([]byte(testCatalog), nil)
	if err != nil {
		t.Fatalf("failed to parse catalog: %v", err)
	}

	data, err := yaml.Marshal(Document(loaded.Name, loaded.Catalog, loaded.Stats))
	if err != nil {
		t.Fatalf("failed to marshal document: %v", err)
	}

	again, err := loader.Parse(data, nil)
	if err != nil {
		t.Fatalf("failed to parse marshalled document: %v\n%s", err, data)
	}
	if again.Catalog.Len() != loaded.Catalog.Len() {
		t.Errorf("expected %d goals, got %d", loaded.Catalog.Len(), again.Catalog.Len())
	}
	hard, _ := again.Catalog.Preset(goals.TierHard, 0)
	if hard.ID != "hard-industry" || hard.Requirements[0].Kind != goals.ObjectRefinery {
		t.Errorf("unexpected hard preset: %+v", hard)
	}
	if again.Stats[goals.ObjectFarm] != loaded.Stats[goals.ObjectFarm] {
		t.Errorf("expected farm stats to round-trip")
	}
}

func TestSchemaRegistry(t *testing.T) {
	sr := NewSchemaRegistry()

	if names := sr.ListSchemas(); len(names) != 1 || names[0] != SchemaCatalog {
		t.Errorf("unexpected schemas: %v", names)
	}

	err := sr.RegisterSchema("point", "#Point: {x: int, y: int}", "#Point")
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}
	if err := sr.ValidateAgainstSchema("point", map[string]interface{}{"x": 1, "y": 2}); err != nil {
		t.Errorf("expected valid point, got %v", err)
	}

	err = sr.ValidateAgainstSchema("point", map[string]interface{}{"x": "one", "y": 2})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}

	if err := sr.RegisterSchema("broken", "#A: {", "#A"); err == nil {
		t.Error("expected compile error")
	}
	if err := sr.RegisterSchema("missing", "#A: int", "#B"); err == nil {
		t.Error("expected missing definition error")
	}
	if err := sr.ValidateAgainstSchema("nope", nil); err == nil {
		t.Error("expected unknown schema error")
	}
}
