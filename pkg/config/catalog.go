package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sfbuilder/colony/pkg/goals"
)

// CatalogFile is the on-disk catalog document.
type CatalogFile struct {
	Version      int                  `yaml:"version,omitempty" validate:"omitempty,eq=1"`
	Name         string               `yaml:"name,omitempty"`
	Goals        []GoalSpec           `yaml:"goals" validate:"required,min=1,dive"`
	Presets      PresetPools          `yaml:"presets"`
	InfinitePlay *InfinitePlayConfig  `yaml:"infinite_play,omitempty"`
	Stats        map[string]StatsSpec `yaml:"stats,omitempty" validate:"dive,keys,required,endkeys"`
}

// GoalSpec is one goal or preset entry.
type GoalSpec struct {
	ID           string            `yaml:"id" validate:"required"`
	Viability    float64           `yaml:"viability,omitempty" validate:"gte=0"`
	Requirements []RequirementSpec `yaml:"requirements" validate:"dive"`
	Extras       []RequirementSpec `yaml:"extras,omitempty" validate:"dive"`
}

// RequirementSpec is a kind name and count.
type RequirementSpec struct {
	Kind  string `yaml:"kind" validate:"required"`
	Count int    `yaml:"count" validate:"gte=0"`
}

// PresetPools holds the infinite-play preset pools.
type PresetPools struct {
	Easy []GoalSpec `yaml:"easy" validate:"required,min=1,dive"`
	Hard []GoalSpec `yaml:"hard" validate:"required,min=1,dive"`
}

// StatsSpec is the contribution of one placed object to the aggregate scores.
type StatsSpec struct {
	Viability  float64 `yaml:"viability,omitempty"`
	Happiness  float64 `yaml:"happiness,omitempty"`
	Power      float64 `yaml:"power,omitempty"`
	Sustenance float64 `yaml:"sustenance,omitempty"`
}

// LoadedCatalog is a validated catalog plus the per-kind stat table.
type LoadedCatalog struct {
	Name    string
	Catalog *goals.Catalog
	Stats   map[goals.ObjectType]goals.Scores
	Source  string
}

// CatalogLoader reads catalog files. A file passes three checks in order:
// the CUE #Catalog schema on the raw document, validator struct tags on the
// decoded document, and goals.NewCatalog on the converted definitions.
type CatalogLoader struct {
	schemas *SchemaRegistry
}

// NewCatalogLoader creates a loader with the built-in schemas.
func NewCatalogLoader() *CatalogLoader {
	return &CatalogLoader{schemas: NewSchemaRegistry()}
}

// LoadFile reads and validates the catalog at path. A non-nil override
// replaces the file's infinite-play constants.
func (cl *CatalogLoader) LoadFile(path string, override *goals.InfinitePlay) (*LoadedCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	loaded, err := cl.Parse(data, override)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	loaded.Source = path
	return loaded, nil
}

// Parse validates a catalog document. Every failure is an INVALID_CATALOG
// *goals.GoalError wrapping the underlying cause.
func (cl *CatalogLoader) Parse(data []byte, override *goals.InfinitePlay) (*LoadedCatalog, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, goals.NewInvalidCatalogError("catalog is not valid YAML", err)
	}
	if raw == nil {
		return nil, goals.NewInvalidCatalogError("catalog is empty", nil)
	}
	if err := cl.schemas.ValidateAgainstSchema(SchemaCatalog, raw); err != nil {
		return nil, goals.NewInvalidCatalogError("catalog does not match schema", err)
	}

	var file CatalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, goals.NewInvalidCatalogError("failed to decode catalog", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, goals.NewInvalidCatalogError("catalog failed validation", err)
	}

	return file.Build(override)
}

// Build converts the document into a goals.Catalog and a stat table.
func (f *CatalogFile) Build(override *goals.InfinitePlay) (*LoadedCatalog, error) {
	authored, err := convertGoals("goals", f.Goals)
	if err != nil {
		return nil, err
	}
	easy, err := convertGoals("presets.easy", f.Presets.Easy)
	if err != nil {
		return nil, err
	}
	hard, err := convertGoals("presets.hard", f.Presets.Hard)
	if err != nil {
		return nil, err
	}

	play := goals.DefaultInfinitePlay()
	if f.InfinitePlay != nil {
		play = f.InfinitePlay.Values()
	}
	if override != nil {
		play = *override
	}

	catalog, err := goals.NewCatalog(authored, easy, hard, play)
	if err != nil {
		return nil, err
	}

	stats := make(map[goals.ObjectType]goals.Scores, len(f.Stats))
	for name, s := range f.Stats {
		kind, err := goals.ParseObjectType(name)
		if err != nil {
			return nil, goals.NewInvalidCatalogError("stats: "+err.Error(), nil)
		}
		if _, dup := stats[kind]; dup {
			return nil, goals.NewInvalidCatalogError(fmt.Sprintf("stats: %s listed twice", kind), nil)
		}
		stats[kind] = goals.Scores{
			Viability:  s.Viability,
			Happiness:  s.Happiness,
			Power:      s.Power,
			Sustenance: s.Sustenance,
		}
	}

	return &LoadedCatalog{
		Name:    f.Name,
		Catalog: catalog,
		Stats:   stats,
	}, nil
}

func convertGoals(where string, specs []GoalSpec) ([]goals.GoalDefinition, error) {
	defs := make([]goals.GoalDefinition, 0, len(specs))
	for i, spec := range specs {
		reqs, err := convertRequirements(spec.Requirements)
		if err != nil {
			return nil, goals.NewInvalidCatalogError(fmt.Sprintf("%s[%d] (%s): requirements", where, i, spec.ID), err)
		}
		extras, err := convertRequirements(spec.Extras)
		if err != nil {
			return nil, goals.NewInvalidCatalogError(fmt.Sprintf("%s[%d] (%s): extras", where, i, spec.ID), err)
		}
		defs = append(defs, goals.GoalDefinition{
			ID:           spec.ID,
			Threshold:    spec.Viability,
			Requirements: reqs,
			Extras:       extras,
		})
	}
	return defs, nil
}

func convertRequirements(specs []RequirementSpec) ([]goals.GoalRequirement, error) {
	var errs []error
	out := make([]goals.GoalRequirement, 0, len(specs))
	for _, spec := range specs {
		kind, err := goals.ParseObjectType(spec.Kind)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, goals.GoalRequirement{Kind: kind, Count: spec.Count})
	}
	return out, errors.Join(errs...)
}

// Document converts a catalog back into its on-disk form.
func Document(name string, c *goals.Catalog, stats map[goals.ObjectType]goals.Scores) *CatalogFile {
	f := &CatalogFile{Version: 1, Name: name}
	for i := 0; i < c.Len(); i++ {
		def, _ := c.Goal(i)
		f.Goals = append(f.Goals, specOf(def, true))
	}
	for i := 0; i < c.Presets(goals.TierEasy); i++ {
		def, _ := c.Preset(goals.TierEasy, i)
		f.Presets.Easy = append(f.Presets.Easy, specOf(def, false))
	}
	for i := 0; i < c.Presets(goals.TierHard); i++ {
		def, _ := c.Preset(goals.TierHard, i)
		f.Presets.Hard = append(f.Presets.Hard, specOf(def, false))
	}
	play := c.InfinitePlay()
	f.InfinitePlay = &InfinitePlayConfig{
		CrossoverFraction: play.CrossoverFraction,
		EasyIncrement:     play.EasyIncrement,
		HardIncrement:     play.HardIncrement,
	}
	if len(stats) > 0 {
		f.Stats = make(map[string]StatsSpec, len(stats))
		for k, s := range stats {
			f.Stats[k.String()] = StatsSpec(s)
		}
	}
	return f
}

func specOf(def goals.GoalDefinition, authored bool) GoalSpec {
	spec := GoalSpec{ID: def.ID}
	if authored {
		spec.Viability = def.Threshold
	}
	for _, r := range def.Requirements {
		spec.Requirements = append(spec.Requirements, RequirementSpec{Kind: r.Kind.String(), Count: r.Count})
	}
	for _, r := range def.Extras {
		spec.Extras = append(spec.Extras, RequirementSpec{Kind: r.Kind.String(), Count: r.Count})
	}
	return spec
}
