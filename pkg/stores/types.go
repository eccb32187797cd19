package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sfbuilder/colony/pkg/goals"
)

// JournalAction identifies a session operation recorded in the journal
type JournalAction string

const (
	JournalActionPlace      JournalAction = "place"
	JournalActionUndo       JournalAction = "undo"
	JournalActionAdvance    JournalAction = "advance"
	JournalActionBanish     JournalAction = "banish"
	JournalActionTransition JournalAction = "transition"
	JournalActionVerify     JournalAction = "verify"
)

// Validate checks if the journal action is valid
func (a JournalAction) Validate() error {
	switch a {
	case JournalActionPlace, JournalActionUndo, JournalActionAdvance,
		JournalActionBanish, JournalActionTransition, JournalActionVerify:
		return nil
	default:
		return fmt.Errorf("invalid journal action: %s", a)
	}
}

// ProgressionRow is the single saved progression row
type ProgressionRow struct {
	GoalIndex         int       `json:"goal_index"`
	PresetIndex       int       `json:"preset_index"`
	Counts            []int     `json:"counts"` // JSON array, requirements then extras
	BetweenTransition bool      `json:"between_transition"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PlacementRow is one placed object in placement order
type PlacementRow struct {
	Seq      int64              `json:"seq"`
	Object   goals.PlacedObject `json:"object"`
	PlacedAt time.Time          `json:"placed_at"`
}

// JournalEntry is an append-only record of a session operation
type JournalEntry struct {
	ID        int64         `json:"id"`
	SessionID string        `json:"session_id"`
	Action    JournalAction `json:"action"`
	GoalIndex int           `json:"goal_index"`
	Details   *string       `json:"details,omitempty"` // JSON blob
	Timestamp time.Time     `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	goals.SaveMirror

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Read access
	GetProgression(ctx context.Context) (*ProgressionRow, error)
	ListPlacements(ctx context.Context) ([]*PlacementRow, error)

	// Journal operations
	AppendJournal(ctx context.Context, entry *JournalEntry) error
	ListJournal(ctx context.Context, action *JournalAction, limit, offset int) ([]*JournalEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
