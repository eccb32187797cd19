package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sfbuilder/colony/pkg/config"
	"github.com/sfbuilder/colony/pkg/goals"
	"github.com/sfbuilder/colony/pkg/scoring"
	"github.com/sfbuilder/colony/pkg/session"
	"github.com/sfbuilder/colony/pkg/stores"
	"github.com/sfbuilder/colony/pkg/telemetry"
)

// environment is everything a command needs to run a session.
type environment struct {
	cfg     *config.Config
	catalog *config.LoadedCatalog
	store   stores.Store
	tel     *telemetry.Telemetry
	session *session.Session
}

// loadConfig reads --config, or ./colony.yaml when present, or the defaults.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadOrDefault(config.DefaultConfigFile)
}

// openEnvironment loads config and catalog, opens the save file and
// restores the session from it.
func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	catalog, err := config.NewCatalogLoader().LoadFile(cfg.CatalogPath, cfg.Play())
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	env := &environment{cfg: cfg, catalog: catalog, tel: tel}

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		env.close()
		return nil, err
	}
	env.store = store

	scorer, err := newScorer(cfg, catalog)
	if err != nil {
		env.close()
		return nil, err
	}

	sess, err := session.Open(ctx, session.Options{
		Catalog:        catalog.Catalog,
		Mirror:         store,
		Journal:        store,
		Scorer:         scorer,
		Telemetry:      tel,
		LedgerCapacity: cfg.Ledger.Capacity,
		Strict:         cfg.Strict,
		Seed:           cfg.Seed,
		ID:             sessionID,
	})
	if err != nil {
		env.close()
		return nil, err
	}
	env.session = sess

	log.Debug().
		Str("catalog", catalog.Source).
		Str("database", cfg.Database.Path).
		Str("session", sess.ID()).
		Msg("Session ready")
	return env, nil
}

func openStore(ctx context.Context, db config.DatabaseConfig) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            db.Path,
		MaxOpenConns:    db.MaxOpenConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newScorer returns the configured Starlark scorer, or a table scorer over
// the catalog's stats.
func newScorer(cfg *config.Config, catalog *config.LoadedCatalog) (scoring.Scorer, error) {
	if cfg.Scoring.Script != "" {
		return scoring.LoadScriptScorer(cfg.Scoring.Script, cfg.Scoring.Timeout, catalog.Stats)
	}
	return scoring.NewTableScorer(catalog.Stats, goals.Scores{}), nil
}

func (e *environment) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if e.store != nil {
		if err := e.store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
	if err := e.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// withSession runs fn against a freshly opened session.
func withSession(ctx context.Context, fn func(ctx context.Context, env *environment) error) error {
	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.close()

	return fn(env.tel.WithContext(ctx), env)
}

// output prints v as indented JSON with --json and calls text otherwise.
func output(v interface{}, text func()) error {
	if !jsonOutput {
		text()
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describeError turns recoverable goal errors into a short user message.
func describeError(err error) error {
	var gerr *goals.GoalError
	if !errors.As(err, &gerr) {
		return err
	}
	switch {
	case errors.Is(err, goals.ErrNotReady):
		return fmt.Errorf("goal is not ready to advance: %w", err)
	case errors.Is(err, goals.ErrLedgerEmpty):
		return fmt.Errorf("nothing to undo: %w", err)
	case errors.Is(err, goals.ErrCountExhausted):
		return fmt.Errorf("no %s left to place for this goal: %w", gerr.Kind, err)
	default:
		return err
	}
}
