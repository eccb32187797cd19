package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sfbuilder/colony/pkg/goals"
	"github.com/sfbuilder/colony/pkg/telemetry"
)

// DefaultConfigFile is the config file name looked up in the working directory.
const DefaultConfigFile = "colony.yaml"

// Config is the colonyctl application configuration.
type Config struct {
	// CatalogPath is the goal catalog file. A relative path is resolved
	// against the directory of the config file.
	CatalogPath string `yaml:"catalog_path" validate:"required"`

	// Database configures the save mirror.
	Database DatabaseConfig `yaml:"database"`

	// Ledger configures the undo history.
	Ledger LedgerConfig `yaml:"ledger"`

	// InfinitePlay overrides the catalog's infinite-play constants when set.
	InfinitePlay *InfinitePlayConfig `yaml:"infinite_play,omitempty"`

	// Scoring selects how aggregate scores are computed.
	Scoring ScoringConfig `yaml:"scoring"`

	// Strict turns ledger desyncs into errors instead of healing them.
	Strict bool `yaml:"strict"`

	// Seed seeds infinite-play preset draws. 0 picks a random seed.
	Seed uint64 `yaml:"seed"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry *telemetry.Config `yaml:"telemetry"`
}

// DatabaseConfig configures the SQLite save mirror.
type DatabaseConfig struct {
	// Path is the database file, or ":memory:" for an ephemeral session.
	Path string `yaml:"path" validate:"required"`

	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
}

// LedgerConfig configures the placement ledger.
type LedgerConfig struct {
	// Capacity is the number of placements that can be undone.
	Capacity int `yaml:"capacity" validate:"gte=1,lte=10000"`
}

// InfinitePlayConfig mirrors goals.InfinitePlay with validation tags.
type InfinitePlayConfig struct {
	CrossoverFraction float64 `yaml:"crossover_fraction" validate:"gt=0"`
	EasyIncrement     float64 `yaml:"easy_increment" validate:"gt=0"`
	HardIncrement     float64 `yaml:"hard_increment" validate:"gt=0"`
}

// Values converts the override to goals.InfinitePlay.
func (c InfinitePlayConfig) Values() goals.InfinitePlay {
	return goals.InfinitePlay{
		CrossoverFraction: c.CrossoverFraction,
		EasyIncrement:     c.EasyIncrement,
		HardIncrement:     c.HardIncrement,
	}
}

// ScoringConfig selects the scorer.
type ScoringConfig struct {
	// Script is a Starlark file defining score(objects). When empty the
	// catalog's stat table is used.
	Script string `yaml:"script,omitempty"`

	// Timeout bounds one script evaluation.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Default returns a configuration that works from a fresh checkout.
func Default() *Config {
	return &Config{
		CatalogPath: "catalog.yaml",
		Database: DatabaseConfig{
			Path:            "colony.db",
			ConnMaxLifetime: 5 * time.Minute,
		},
		Ledger: LedgerConfig{
			Capacity: 20,
		},
		Scoring: ScoringConfig{
			Timeout: 5 * time.Second,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns the defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the embedded telemetry config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Telemetry == nil {
		c.Telemetry = telemetry.DefaultConfig()
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}
	return nil
}

// Play returns the infinite-play override, or nil when the catalog's values apply.
func (c *Config) Play() *goals.InfinitePlay {
	if c.InfinitePlay == nil {
		return nil
	}
	p := c.InfinitePlay.Values()
	return &p
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) resolvePaths(dir string) {
	c.CatalogPath = resolve(dir, c.CatalogPath)
	if c.Database.Path != ":memory:" {
		c.Database.Path = resolve(dir, c.Database.Path)
	}
	if c.Scoring.Script != "" {
		c.Scoring.Script = resolve(dir, c.Scoring.Script)
	}
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

var validate = validator.New(validator.WithRequiredStructEnabled())
