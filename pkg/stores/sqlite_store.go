package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sfbuilder/colony/pkg/goals"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNoPlacements is returned when popping from an empty placed object list.
var ErrNoPlacements = errors.New("no placed objects")

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: is a separate database
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// withTx runs fn in a transaction, committing on success.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load implements goals.SaveMirror. It returns nil when no progression has
// been written yet.
func (s *SQLiteStore) Load(ctx context.Context) (*goals.SaveState, error) {
	row, err := s.GetProgression(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	placements, err := s.ListPlacements(ctx)
	if err != nil {
		return nil, err
	}

	state := &goals.SaveState{
		Progression: goals.Progression{
			GoalIndex:         row.GoalIndex,
			PresetIndex:       row.PresetIndex,
			Counts:            row.Counts,
			BetweenTransition: row.BetweenTransition,
		},
		PlacedObjects: make([]goals.PlacedObject, len(placements)),
	}
	for i, p := range placements {
		state.PlacedObjects[i] = p.Object
	}
	return state, nil
}

// AppendPlacement implements goals.SaveMirror.
func (s *SQLiteStore) AppendPlacement(ctx context.Context, obj goals.PlacedObject, counts []int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO placed_objects (kind, pos_x, pos_y, pos_z, rot_x, rot_y, rot_z, rot_w, goal_index, required, placed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			obj.Kind.String(),
			obj.Position.X, obj.Position.Y, obj.Position.Z,
			obj.Rotation.X, obj.Rotation.Y, obj.Rotation.Z, obj.Rotation.W,
			obj.GoalIndex,
			obj.Required,
			time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert placed object: %w", err)
		}
		return updateCounts(ctx, tx, counts)
	})
}

// PopPlacement implements goals.SaveMirror.
func (s *SQLiteStore) PopPlacement(ctx context.Context, counts []int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM placed_objects WHERE seq = (SELECT MAX(seq) FROM placed_objects)`)
		if err != nil {
			return fmt.Errorf("failed to delete placed object: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNoPlacements
		}
		return updateCounts(ctx, tx, counts)
	})
}

// WriteProgression implements goals.SaveMirror.
func (s *SQLiteStore) WriteProgression(ctx context.Context, p goals.Progression) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertProgression(ctx, tx, p)
	})
}

// ResetLevel implements goals.SaveMirror.
func (s *SQLiteStore) ResetLevel(ctx context.Context, p goals.Progression) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM placed_objects`); err != nil {
			return fmt.Errorf("failed to clear placed objects: %w", err)
		}
		return upsertProgression(ctx, tx, p)
	})
}

func upsertProgression(ctx context.Context, tx *sql.Tx, p goals.Progression) error {
	counts, err := encodeCounts(p.Counts)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO progression (id, goal_index, preset_index, counts, between_transition, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			goal_index = excluded.goal_index,
			preset_index = excluded.preset_index,
			counts = excluded.counts,
			between_transition = excluded.between_transition,
			updated_at = excluded.updated_at
	`
	_, err = tx.ExecContext(ctx, query, p.GoalIndex, p.PresetIndex, counts, p.BetweenTransition, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write progression: %w", err)
	}
	return nil
}

// updateCounts stores counts, creating the progression row at goal 0 if
// it does not exist yet.
func updateCounts(ctx context.Context, tx *sql.Tx, counts []int) error {
	encoded, err := encodeCounts(counts)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO progression (id, goal_index, preset_index, counts, between_transition, updated_at)
		VALUES (1, 0, 0, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			counts = excluded.counts,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, encoded, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update counts: %w", err)
	}
	return nil
}

func encodeCounts(counts []int) (string, error) {
	if counts == nil {
		counts = []int{}
	}
	b, err := json.Marshal(counts)
	if err != nil {
		return "", fmt.Errorf("failed to encode counts: %w", err)
	}
	return string(b), nil
}

// GetProgression returns the saved progression row, or nil if none exists
func (s *SQLiteStore) GetProgression(ctx context.Context) (*ProgressionRow, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT goal_index, preset_index, counts, between_transition, updated_at
		FROM progression
		WHERE id = 1
	`

	row := &ProgressionRow{}
	var counts string
	err := s.db.QueryRowContext(ctx, query).Scan(
		&row.GoalIndex,
		&row.PresetIndex,
		&counts,
		&row.BetweenTransition,
		&row.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progression: %w", err)
	}

	if err := json.Unmarshal([]byte(counts), &row.Counts); err != nil {
		return nil, fmt.Errorf("failed to decode counts: %w", err)
	}

	return row, nil
}

// ListPlacements lists every placed object in placement order
func (s *SQLiteStore) ListPlacements(ctx context.Context) ([]*PlacementRow, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT seq, kind, pos_x, pos_y, pos_z, rot_x, rot_y, rot_z, rot_w, goal_index, required, placed_at
		FROM placed_objects
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list placed objects: %w", err)
	}
	defer rows.Close()

	placements := []*PlacementRow{}
	for rows.Next() {
		p := &PlacementRow{}
		var kind string
		err := rows.Scan(
			&p.Seq,
			&kind,
			&p.Object.Position.X,
			&p.Object.Position.Y,
			&p.Object.Position.Z,
			&p.Object.Rotation.X,
			&p.Object.Rotation.Y,
			&p.Object.Rotation.Z,
			&p.Object.Rotation.W,
			&p.Object.GoalIndex,
			&p.Object.Required,
			&p.PlacedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan placed object: %w", err)
		}

		p.Object.Kind, err = goals.ParseObjectType(kind)
		if err != nil {
			return nil, fmt.Errorf("placed object %d: %w", p.Seq, err)
		}
		placements = append(placements, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating placed objects: %w", err)
	}

	return placements, nil
}

// AppendJournal records a session operation
func (s *SQLiteStore) AppendJournal(ctx context.Context, entry *JournalEntry) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO journal (session_id, action, goal_index, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.SessionID,
		entry.Action,
		entry.GoalIndex,
		entry.Details,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get journal entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListJournal lists journal entries, newest first, with an optional action filter
func (s *SQLiteStore) ListJournal(ctx context.Context, action *JournalAction, limit, offset int) ([]*JournalEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, session_id, action, goal_index, details, timestamp
		FROM journal
		WHERE (? IS NULL OR action = ?)
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, action, action, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	entries := []*JournalEntry{}
	for rows.Next() {
		entry := &JournalEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.Action,
			&entry.GoalIndex,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
