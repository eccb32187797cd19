package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	sessionID  string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "colonyctl",
		Short: "colonyctl - colony goal progression",
		Long: `colonyctl drives the goal progression of a colony-building level.

A level works through an authored catalog of goals. Each goal requires a
number of objects of given kinds and a minimum viability score; once the
catalog is exhausted goals are drawn from easy and hard preset pools with
a rising viability threshold.

Progression, placed objects and a journal of every operation are kept in a
SQLite save file, so each command picks up where the last one stopped.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default ./colony.yaml)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session id recorded in the journal (default random)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newPlaceCommand())
	rootCmd.AddCommand(newUndoCommand())
	rootCmd.AddCommand(newAdvanceCommand())
	rootCmd.AddCommand(newBanishCommand())
	rootCmd.AddCommand(newTransitionCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newPreviewCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newCatalogCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
