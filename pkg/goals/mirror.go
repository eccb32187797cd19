package goals

import "context"

// Vec3 is a world-space position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation is an orientation quaternion.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityRotation is the unrotated orientation.
var IdentityRotation = Rotation{W: 1}

// PlacedObject is one entry of the save mirror's placed object list.
type PlacedObject struct {
	Kind      ObjectType `json:"kind"`
	Position  Vec3       `json:"position"`
	Rotation  Rotation   `json:"rotation"`
	GoalIndex int        `json:"goal_index"`
	Required  bool       `json:"required"`
}

// Progression is the progression part of a save.
type Progression struct {
	GoalIndex   int
	PresetIndex int
	// Counts are remaining counts, requirements then extras.
	Counts []int
	// BetweenTransition marks a save written while leaving a level; the next
	// restore starts the goal with fresh counters.
	BetweenTransition bool
}

// SaveState is the full snapshot the core reconstructs itself from.
type SaveState struct {
	Progression
	PlacedObjects []PlacedObject
}

// SaveMirror is the durable counterpart of progression and ledger state.
// Each method is one atomic write; a failed write must leave the mirror unchanged.
type SaveMirror interface {
	// Load returns the saved state, or nil when nothing has been saved yet.
	Load(ctx context.Context) (*SaveState, error)

	// AppendPlacement adds obj to the end of the placed list and stores counts.
	AppendPlacement(ctx context.Context, obj PlacedObject, counts []int) error

	// PopPlacement removes the last placed object and stores counts.
	PopPlacement(ctx context.Context, counts []int) error

	// WriteProgression stores goal index, preset index, counts and the
	// transition flag, keeping placed objects.
	WriteProgression(ctx context.Context, p Progression) error

	// ResetLevel stores p and clears every placed object.
	ResetLevel(ctx context.Context, p Progression) error
}

// Notifier receives fire-and-forget notifications. Calls are synchronous and
// happen at most once per notification per operation; implementations must
// tolerate repeated identical values.
type Notifier interface {
	GoalAdvanced(newIndex int)
	GoalReadinessChanged(ready bool)
	RequirementCountChanged(kind ObjectType, required bool, newCount int)
	LevelCompletable(completable bool)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) GoalAdvanced(int) {}
func (NopNotifier) GoalReadinessChanged(bool) {}
func (NopNotifier) RequirementCountChanged(ObjectType, bool, int) {}
func (NopNotifier) LevelCompletable(bool) {}
