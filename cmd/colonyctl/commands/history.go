package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sfbuilder/colony/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		action string
		limit  int
		offset int
		undo   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the operation journal",
		Long: `Show the journal of session operations, most recent first.

With --undo, show the placements that can still be undone instead.`,
		Example: `  # Last 20 operations
  colonyctl history

  # Only advances
  colonyctl history --action advance

  # Undoable placements
  colonyctl history --undo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *stores.JournalAction
			if action != "" {
				a := stores.JournalAction(action)
				if err := a.Validate(); err != nil {
					return err
				}
				filter = &a
			}

			return withSession(cmd.Context(), func(ctx context.Context, env *environment) error {
				if undo {
					records := env.session.History()
					return output(records, func() {
						w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
						fmt.Fprintln(w, "#\tKIND\tREQUIRED\tPOSITION")
						for i, rec := range records {
							fmt.Fprintf(w, "%d\t%s\t%t\t%.1f,%.1f,%.1f\n", i+1, rec.Kind, rec.Required,
								rec.Position.X, rec.Position.Y, rec.Position.Z)
						}
						w.Flush()
					})
				}

				entries, err := env.store.ListJournal(ctx, filter, limit, offset)
				if err != nil {
					return err
				}
				return output(entries, func() {
					w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "TIME\tACTION\tGOAL\tSESSION\tDETAILS")
					for _, e := range entries {
						details := ""
						if e.Details != nil {
							details = *e.Details
						}
						fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
							e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action, e.GoalIndex, shortID(e.SessionID), details)
					}
					w.Flush()
				})
			})
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "only show one action (place, undo, advance, banish, transition, verify)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of entries to skip")
	cmd.Flags().BoolVar(&undo, "undo", false, "show undoable placements instead of the journal")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
