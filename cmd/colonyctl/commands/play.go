package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sfbuilder/colony/pkg/goals"
	"github.com/sfbuilder/colony/pkg/session"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active goal and its progress",
		Long: `Show the active goal, its remaining requirement and extra counters, the
current scores and whether the goal is ready to advance.`,
		Example: `  # Show progress
  colonyctl status

  # Machine-readable
  colonyctl status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, env *environment) error {
				st := env.session.Status()
				return output(st, func() { printSnapshot(st) })
			})
		},
	}

	return cmd
}

func newPlaceCommand() *cobra.Command {
	var (
		at  []float64
		rot []float64
	)

	cmd := &cobra.Command{
		Use:   "place KIND",
		Short: "Place an object",
		Long: `Place an object of KIND in the level.

The placement counts against the goal's requirement for KIND first and its
extras second. It fails when the goal does not list KIND or its counters
for KIND are already used up.

Known kinds: Habitat, Farm, PowerPlant, WaterPump, Greenhouse, Mine,
Refinery, ResearchLab, Park, Hospital, Storehouse, Monument. Case,
underscores and dashes are ignored.`,
		Example: `  # Place a habitat at the origin
  colonyctl place habitat

  # Place a power plant at a position, rotated 90 degrees about Y
  colonyctl place power_plant --at 12,0,-4 --rot 0,0.7071,0,0.7071`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := goals.ParseObjectType(args[0])
			if err != nil {
				return err
			}
			pos, err := vec3(at)
			if err != nil {
				return err
			}
			orientation, err := rotation(rot)
			if err != nil {
				return err
			}

			return withSession(cmd.Context(), func(ctx context.Context, env *environment) error {
				rec, err := env.session.Place(ctx, kind, pos, orientation)
				if err != nil {
					return describeError(err)
				}

				st := env.session.Status()
				return output(map[string]interface{}{"placement": rec, "status": st}, func() {
					bucket := "requirement"
					if !rec.Required {
						bucket = "extra"
					}
					fmt.Printf("Placed %s (%s) for goal %d\n\n", rec.Kind, bucket, rec.GoalIndex)
					printSnapshot(st)
				})
			})
		},
	}

	cmd.Flags().Float64SliceVar(&at, "at", nil, "position as x,y,z")
	cmd.Flags().Float64SliceVar(&rot, "rot", nil, "orientation quaternion as x,y,z,w")

	return cmd
}

func newUndoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Undo the most recent placement",
		Long: `Undo the most recent placement of the active goal and give its counter back.

Only the most recent placements are kept for undo (ledger.capacity in the
config). Placements made for earlier goals cannot be undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, env *environment) error {
				rec, err := env.session.Undo(ctx)
				if err != nil {
					return describeError(err)
				}

				st := env.session.Status()
				return output(map[string]interface{}{"undone": rec, "status": st}, func() {
					fmt.Printf("Undid %s\n\n", rec.Kind)
					printSnapshot(st)
				})
			})
		},
	}

	return cmd
}

func newAdvanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Advance to the next goal",
		Long: `Advance to the next goal once the active goal is ready.

A goal is ready when every requirement counter is used up, viability has
reached the goal's threshold and happiness, power and sustenance are all
positive. Advancing clears the undo history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, env *environment) error {
				if _, err := env.session.Advance(ctx); err != nil {
					return describeError(err)
				}

				st := env.session.Status()
				return output(st, func() {
					fmt.Printf("Advanced to goal %d\n\n", st.GoalIndex)
					printSnapshot(st)
				})
			})
		},
	}

	return cmd
}

func newBanishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "banish",
		Short: "Abandon the level and start over",
		Long: `Abandon the level: progression returns to the first goal and every placed
object is removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, env *environment) error {
				if err := env.session.Banish(ctx); err != nil {
					return err
				}
				st := env.session.Status()
				return output(st, func() {
					fmt.Printf("Level banished\n\n")
					printSnapshot(st)
				})
			})
		},
	}

	return cmd
}

func newTransitionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transition",
		Short: "Leave the level for the next one",
		Long: `Leave the level. Progression returns to the first goal, placed objects are
removed and the save is marked as written between levels, so the next
session starts the first goal with fresh counters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, env *environment) error {
				if err := env.session.TransitionLevel(ctx); err != nil {
					return err
				}
				st := env.session.Status()
				return output(st, func() {
					fmt.Printf("Level transition saved\n\n")
					printSnapshot(st)
				})
			})
		},
	}

	return cmd
}

func newVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check counters against the placement history",
		Long: `Check every counter of the active goal against the placements recorded for
it. Mismatches are healed from the placement history unless strict mode is
enabled in the config, in which case they are reported as an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, env *environment) error {
				healed, err := env.session.Verify(ctx)
				if err != nil {
					return err
				}
				return output(map[string]int{"healed": healed}, func() {
					if healed == 0 {
						fmt.Println("Counters match the placement history")
						return
					}
					fmt.Printf("Healed %d counter(s)\n", healed)
				})
			})
		},
	}

	return cmd
}

func newPreviewCommand() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview upcoming goals",
		Long: `List the tier and viability threshold of upcoming goals, starting with the
active one. Past the authored catalog the preset is drawn on advance, so
only the tier and threshold are known.`,
		Example: `  # Next 10 goals
  colonyctl preview -n 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			return withSession(cmd.Context(), func(ctx context.Context, env *environment) error {
				previews := env.session.Preview(count)
				return output(previews, func() { printPreviews(previews) })
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of goals to list")

	return cmd
}

func printSnapshot(st session.Snapshot) {
	source := st.Source
	if source == "" {
		source = "-"
	}
	fmt.Printf("Goal:       %d (%s, %s)\n", st.GoalIndex, source, st.Tier)
	fmt.Printf("State:      %s\n", st.State)
	fmt.Printf("Viability:  %.1f / %.1f\n", st.Scores.Viability, st.Threshold)
	fmt.Printf("Happiness:  %.1f\n", st.Scores.Happiness)
	fmt.Printf("Power:      %.1f\n", st.Scores.Power)
	fmt.Printf("Sustenance: %.1f\n", st.Scores.Sustenance)
	fmt.Printf("Undo:       %d of %d\n", st.LedgerDepth, st.LedgerCapacity)
	if st.LevelCompletable {
		fmt.Println("The level can be completed.")
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tBUCKET\tPLACED\tREMAINING")
	for _, c := range st.Requirements {
		fmt.Fprintf(w, "%s\trequirement\t%d\t%d\n", c.Kind, c.Required-c.Remaining, c.Remaining)
	}
	for _, c := range st.Extras {
		fmt.Fprintf(w, "%s\textra\t%d\t%d\n", c.Kind, c.Required-c.Remaining, c.Remaining)
	}
	w.Flush()
}

func printPreviews(previews []session.GoalPreview) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tTIER\tTHRESHOLD\tGOAL")
	for _, p := range previews {
		source := p.Source
		if source == "" {
			source = "(drawn on advance)"
		}
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%s\n", p.Index, p.Tier, p.Threshold, source)
	}
	w.Flush()
}

func vec3(v []float64) (goals.Vec3, error) {
	switch len(v) {
	case 0:
		return goals.Vec3{}, nil
	case 3:
		return goals.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
	default:
		return goals.Vec3{}, fmt.Errorf("--at needs 3 values, got %d", len(v))
	}
}

func rotation(v []float64) (goals.Rotation, error) {
	switch len(v) {
	case 0:
		return goals.Rotation{W: 1}, nil
	case 4:
		return goals.Rotation{X: v[0], Y: v[1], Z: v[2], W: v[3]}, nil
	default:
		return goals.Rotation{}, fmt.Errorf("--rot needs 4 values, got %d", len(v))
	}
}
