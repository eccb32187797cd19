package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sfbuilder/colony/pkg/config"
	"github.com/sfbuilder/colony/pkg/goals"
	"github.com/sfbuilder/colony/pkg/session"
)

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate goal catalogs",
		Long: `Inspect and validate goal catalogs.

A catalog is a YAML file with the authored goals, the easy and hard preset
pools used once the authored goals run out, optional infinite-play
constants and optional per-kind stats used for scoring.`,
	}

	cmd.AddCommand(newCatalogValidateCommand())
	cmd.AddCommand(newCatalogShowCommand())
	cmd.AddCommand(newCatalogKindsCommand())

	return cmd
}

// catalogPath returns the path argument or the configured catalog.
func catalogPath(args []string) (string, *goals.InfinitePlay, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", nil, err
	}
	if len(args) > 0 {
		return args[0], cfg.Play(), nil
	}
	return cfg.CatalogPath, cfg.Play(), nil
}

func newCatalogValidateCommand() *cobra.Command {
	var previewCount int

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a catalog file",
		Long: `Validate a catalog file against the catalog schema and the goal rules.

This command checks:
  - YAML syntax and unknown keys
  - Schema conformance (CUE)
  - Object kinds, counts and thresholds
  - Non-empty easy and hard preset pools`,
		Example: `  # Validate the configured catalog
  colonyctl catalog validate

  # Validate a specific file and show the first 8 goals
  colonyctl catalog validate ./catalogs/desert.yaml -n 8`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, play, err := catalogPath(args)
			if err != nil {
				return err
			}

			log.Debug().Str("path", path).Msg("Validating catalog")

			loaded, err := config.NewCatalogLoader().LoadFile(path, play)
			if err != nil {
				return err
			}

			c := loaded.Catalog
			previews := session.PreviewCatalog(c, 0, previewCount)
			summary := map[string]interface{}{
				"name":          loaded.Name,
				"goals":         c.Len(),
				"easy_presets":  c.Presets(goals.TierEasy),
				"hard_presets":  c.Presets(goals.TierHard),
				"crossover":     c.Scaler().CrossoverIndex(),
				"infinite_play": c.InfinitePlay(),
				"kinds":         c.Kinds(),
				"stat_kinds":    len(loaded.Stats),
				"preview":       previews,
			}

			return output(summary, func() {
				name := loaded.Name
				if name == "" {
					name = path
				}
				fmt.Printf("✓ %s is valid\n\n", name)
				fmt.Printf("Authored goals: %d\n", c.Len())
				fmt.Printf("Presets:        %d easy, %d hard\n", c.Presets(goals.TierEasy), c.Presets(goals.TierHard))
				fmt.Printf("Crossover:      index %d\n", c.Scaler().CrossoverIndex())
				fmt.Printf("Stats:          %d kinds\n\n", len(loaded.Stats))
				printPreviews(previews)
			})
		},
	}

	cmd.Flags().IntVarP(&previewCount, "count", "n", 5, "number of goals to preview")

	return cmd
}

func newCatalogShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [path]",
		Short: "Print a catalog in normalized form",
		Long: `Print a catalog after validation with canonical object kind names and the
effective infinite-play constants filled in.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, play, err := catalogPath(args)
			if err != nil {
				return err
			}

			loaded, err := config.NewCatalogLoader().LoadFile(path, play)
			if err != nil {
				return err
			}

			doc := config.Document(loaded.Name, loaded.Catalog, loaded.Stats)
			return output(doc, func() {
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				if err := enc.Encode(doc); err != nil {
					log.Error().Err(err).Msg("Failed to encode catalog")
				}
				_ = enc.Close()
			})
		},
	}

	return cmd
}

func newCatalogKindsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List known object kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := goals.ObjectTypes()
			return output(kinds, func() {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				for _, k := range kinds {
					fmt.Fprintf(w, "%d\t%s\n", int(k), k)
				}
				w.Flush()
			})
		},
	}

	return cmd
}
