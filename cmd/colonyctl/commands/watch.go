package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sfbuilder/colony/pkg/config"
	"github.com/sfbuilder/colony/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	var (
		interval    time.Duration
		reloadDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow progression and hot-reload the catalog",
		Long: `Keep a session open, print its events and serve metrics until interrupted.

The save file is re-read every --interval so changes made by other
colonyctl invocations show up as events. Edits to the catalog file are
validated and applied without a restart; an invalid edit is logged and the
previous catalog stays in effect.

Metrics are served when telemetry.metrics.enabled is set in the config.`,
		Example: `  # Follow progress in one terminal, play in another
  colonyctl watch

  # Re-read the save every 500ms
  colonyctl watch --interval 500ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}

			return withSession(cmd.Context(), func(ctx context.Context, env *environment) error {
				unsubscribe := env.tel.Events.Subscribe(newEventPrinter(), nil)
				defer unsubscribe()

				env.tel.StartMetricsServer()

				watcher := config.NewCatalogWatcher(env.cfg.CatalogPath, env.cfg.Play(), log.Logger)
				watcher.SetReloadDelay(reloadDelay)
				err := watcher.Watch(ctx, func(loaded *config.LoadedCatalog) error {
					return env.session.ReplaceCatalog(ctx, loaded.Catalog)
				})
				if err != nil {
					return err
				}
				defer watcher.Stop()

				st := env.session.Status()
				log.Info().
					Str("session", env.session.ID()).
					Str("catalog", env.cfg.CatalogPath).
					Int("goal_index", st.GoalIndex).
					Str("state", string(st.State)).
					Msg("Watching")

				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
						before := env.session.Status().GoalIndex
						if err := env.session.Reload(ctx); err != nil {
							log.Warn().Err(err).Msg("Failed to re-read save")
							continue
						}
						if after := env.session.Status(); after.GoalIndex != before {
							log.Info().
								Int("from", before).
								Int("goal_index", after.GoalIndex).
								Str("source", after.Source).
								Msg("Goal changed")
						}
					}
				}
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "how often to re-read the save file")
	cmd.Flags().DurationVar(&reloadDelay, "reload-delay", config.DefaultReloadDelay, "debounce delay for catalog edits")

	return cmd
}

// newEventPrinter logs events whose data changed since the last event of
// the same type and subject. A reload republishes every counter and flag,
// so repeats are dropped.
func newEventPrinter() telemetry.EventSubscriber {
	last := make(map[string]string)

	return func(e telemetry.Event) {
		key := e.Type
		if kind, ok := e.Data["kind"]; ok {
			key = fmt.Sprintf("%s/%v/%v", e.Type, kind, e.Data["required"])
		}
		data := fmt.Sprint(e.Data)
		if prev, seen := last[key]; seen && prev == data && e.Type != telemetry.EventTypeGoalAdvanced {
			return
		}
		last[key] = data

		evt := log.Info()
		switch e.Type {
		case telemetry.EventTypeRequirementCountChanged:
			evt = log.Debug()
		case telemetry.EventTypeDesyncDetected, telemetry.EventTypeError:
			evt = log.Warn()
		}
		evt.Str("type", e.Type).Fields(e.Data).Msg(e.Message)
	}
}
