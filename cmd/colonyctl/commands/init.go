package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sfbuilder/colony/pkg/config"
)

const sampleCatalog = `# Goal catalog
version: 1
name: first-landing

goals:
  - id: landing
    viability: 10
    requirements:
      - {kind: Habitat, count: 2}
      - {kind: Farm, count: 1}
      - {kind: PowerPlant, count: 1}
    extras:
      - {kind: Park, count: 1}
  - id: outpost
    viability: 25
    requirements:
      - {kind: Habitat, count: 2}
      - {kind: WaterPump, count: 1}
      - {kind: Greenhouse, count: 1}
  - id: settlement
    viability: 45
    requirements:
      - {kind: Mine, count: 1}
      - {kind: Refinery, count: 1}
      - {kind: Hospital, count: 1}
    extras:
      - {kind: Storehouse, count: 2}

# Drawn at random once the authored goals are done.
presets:
  easy:
    - id: more-homes
      requirements: [{kind: Habitat, count: 2}, {kind: Farm, count: 1}]
    - id: greener
      requirements: [{kind: Greenhouse, count: 1}, {kind: Park, count: 1}]
  hard:
    - id: industry
      requirements: [{kind: Mine, count: 2}, {kind: Refinery, count: 1}, {kind: PowerPlant, count: 1}]
    - id: research
      requirements: [{kind: ResearchLab, count: 1}, {kind: Hospital, count: 1}, {kind: Monument, count: 1}]

infinite_play:
  crossover_fraction: 1.5
  easy_increment: 5
  hard_increment: 10

# Contribution of one placed object to each score.
stats:
  Habitat:     {viability: 3, happiness: 1, power: -1, sustenance: -1}
  Farm:        {viability: 2, sustenance: 3}
  PowerPlant:  {viability: 2, happiness: -1, power: 4}
  WaterPump:   {viability: 2, power: -1, sustenance: 2}
  Greenhouse:  {viability: 3, happiness: 1, sustenance: 2}
  Mine:        {viability: 4, happiness: -1, power: -1}
  Refinery:    {viability: 5, happiness: -1, power: -2}
  ResearchLab: {viability: 6, power: -1}
  Park:        {viability: 1, happiness: 3}
  Hospital:    {viability: 4, happiness: 2, power: -1}
  Storehouse:  {viability: 2, sustenance: 1}
  Monument:    {viability: 8, happiness: 2}
`

const sampleScript = `# score(objects) returns the aggregate scores of a level.
#
# objects is a list of structs with kind, goal_index, required, x, y and z.
# stats maps each kind name to a struct of viability, happiness, power and
# sustenance taken from the catalog.

def score(objects):
    total = {"viability": 0.0, "happiness": 0.0, "power": 0.0, "sustenance": 0.0}
    parks = 0
    for o in objects:
        s = stats.get(o.kind)
        if s == None:
            continue
        total["viability"] += s.viability
        total["happiness"] += s.happiness
        total["power"] += s.power
        total["sustenance"] += s.sustenance
        if o.kind == "Park":
            parks += 1

    # Parks lift spirits more the more of them there are.
    total["happiness"] += 0.5 * parks * parks
    return total
`

func newInitCommand() *cobra.Command {
	var (
		force      bool
		withScript bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a colony workspace",
		Long: `Initialize a workspace with a config file, a sample goal catalog and an
empty save database.

Existing files are left alone unless --force is given.`,
		Example: `  # Initialize the current directory
  colonyctl init

  # Initialize a new directory with a Starlark scoring script
  colonyctl init ./desert --with-script`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfgPath := filepath.Join(dir, config.DefaultConfigFile)
			if configPath != "" {
				// Catalog and database live next to the config file.
				cfgPath = configPath
				dir = filepath.Dir(configPath)
			}

			log.Info().
				Str("dir", dir).
				Bool("force", force).
				Msg("Initializing workspace")

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}

			cfg := config.Default()
			if withScript {
				cfg.Scoring.Script = "score.star"
			}

			files := []struct {
				path    string
				content []byte
				skip    bool
			}{
				{path: filepath.Join(dir, cfg.CatalogPath), content: []byte(sampleCatalog)},
				{path: filepath.Join(dir, "score.star"), content: []byte(sampleScript), skip: !withScript},
			}
			for _, f := range files {
				if f.skip {
					continue
				}
				if err := writeFile(f.path, f.content, force); err != nil {
					return err
				}
			}

			if exists(cfgPath) && !force {
				fmt.Printf("• Kept existing config: %s\n", cfgPath)
			} else {
				if err := cfg.Save(cfgPath); err != nil {
					return fmt.Errorf("failed to write config file: %w", err)
				}
				fmt.Printf("✓ Created config file: %s\n", cfgPath)
			}

			// Paths in the config are relative to the config file.
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if _, err := config.NewCatalogLoader().LoadFile(loaded.CatalogPath, loaded.Play()); err != nil {
				return fmt.Errorf("catalog %s is invalid: %w", loaded.CatalogPath, err)
			}

			store, err := openStore(context.Background(), loaded.Database)
			if err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				return err
			}
			fmt.Printf("✓ Initialized SQLite database: %s\n", loaded.Database.Path)

			fmt.Printf("\n✅ Workspace initialized successfully!\n\n")
			fmt.Printf("Next steps:\n")
			fmt.Printf("  1. See the first goal:\n")
			fmt.Printf("     colonyctl status\n\n")
			fmt.Printf("  2. Place something:\n")
			fmt.Printf("     colonyctl place habitat\n\n")

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().BoolVar(&withScript, "with-script", false, "score with a sample Starlark script instead of the stats table")

	return cmd
}

func writeFile(path string, content []byte, force bool) error {
	if exists(path) && !force {
		fmt.Printf("• Kept existing file: %s\n", path)
		return nil
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("✓ Created %s\n", path)
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
