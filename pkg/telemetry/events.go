package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sfbuilder/colony/pkg/goals"
)

// Event is a notification published by a session.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// SessionID is the session that published the event.
	SessionID string `json:"session_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeGoalAdvanced            = "goal.advanced"
	EventTypeGoalReadinessChanged    = "goal.readiness_changed"
	EventTypeRequirementCountChanged = "requirement.count_changed"
	EventTypeLevelCompletable        = "level.completable"
	EventTypeDesyncDetected          = "ledger.desync_detected"
	EventTypeError                   = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher delivers events synchronously, in publish order, and keeps a
// bounded history of recent events.
type EventPublisher struct {
	config      EventsConfig
	subscribers []subscriberEntry
	nextID      uint64
	filters     []EventFilter
	history     []Event
	mu          sync.RWMutex
}

type subscriberEntry struct {
	id         uint64
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) *EventPublisher {
	return &EventPublisher{
		config: cfg,
	}
}

// Publish delivers an event to every matching subscriber before returning.
func (ep *EventPublisher) Publish(event Event) {
	if !ep.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.Lock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.Unlock()
			return
		}
	}
	if ep.config.HistorySize > 0 {
		ep.history = append(ep.history, event)
		if over := len(ep.history) - ep.config.HistorySize; over > 0 {
			ep.history = append([]Event(nil), ep.history[over:]...)
		}
	}
	entries := append([]subscriberEntry(nil), ep.subscribers...)
	ep.mu.Unlock()

	for _, entry := range entries {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Subscribe adds a subscriber and returns a function that removes it.
// Subscribers are called in subscription order.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) (unsubscribe func()) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	id := ep.nextID
	ep.nextID++
	ep.subscribers = append(ep.subscribers, subscriberEntry{
		id:         id,
		subscriber: subscriber,
		filter:     filter,
	})

	return func() {
		ep.mu.Lock()
		defer ep.mu.Unlock()
		for i, entry := range ep.subscribers {
			if entry.id == id {
				ep.subscribers = append(ep.subscribers[:i:i], ep.subscribers[i+1:]...)
				return
			}
		}
	}
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// History returns the retained events, oldest first.
func (ep *EventPublisher) History() []Event {
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	return append([]Event(nil), ep.history...)
}

// Shutdown removes every subscriber.
func (ep *EventPublisher) Shutdown() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.subscribers = nil
}

// Notifier returns a goals.Notifier that publishes on ep under sessionID.
func (ep *EventPublisher) Notifier(sessionID string) goals.Notifier {
	return &sessionNotifier{ep: ep, sessionID: sessionID}
}

type sessionNotifier struct {
	ep        *EventPublisher
	sessionID string
}

func (n *sessionNotifier) GoalAdvanced(newIndex int) {
	n.ep.Publish(Event{
		Type:      EventTypeGoalAdvanced,
		SessionID: n.sessionID,
		Message:   fmt.Sprintf("Goal %d is now active", newIndex),
		Level:     EventLevelInfo,
		Data:      map[string]interface{}{"goal_index": newIndex},
	})
}

func (n *sessionNotifier) GoalReadinessChanged(ready bool) {
	n.ep.Publish(Event{
		Type:      EventTypeGoalReadinessChanged,
		SessionID: n.sessionID,
		Message:   fmt.Sprintf("Goal ready: %t", ready),
		Level:     EventLevelInfo,
		Data:      map[string]interface{}{"ready": ready},
	})
}

func (n *sessionNotifier) RequirementCountChanged(kind goals.ObjectType, required bool, newCount int) {
	n.ep.Publish(Event{
		Type:      EventTypeRequirementCountChanged,
		SessionID: n.sessionID,
		Message:   fmt.Sprintf("%s remaining: %d", kind, newCount),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"kind":     kind.String(),
			"required": required,
			"count":    newCount,
		},
	})
}

func (n *sessionNotifier) LevelCompletable(completable bool) {
	n.ep.Publish(Event{
		Type:      EventTypeLevelCompletable,
		SessionID: n.sessionID,
		Message:   fmt.Sprintf("Level completable: %t", completable),
		Level:     EventLevelInfo,
		Data:      map[string]interface{}{"completable": completable},
	})
}

// PublishDesync reports counters that disagreed with the placement history.
// err is nil when the counters were healed and non-nil when strict mode
// refused to heal them.
func (ep *EventPublisher) PublishDesync(sessionID string, healed int, err error) {
	evt := Event{
		Type:      EventTypeDesyncDetected,
		SessionID: sessionID,
		Message:   fmt.Sprintf("Healed %d counter(s) from the placement history", healed),
		Level:     EventLevelWarning,
		Data:      map[string]interface{}{"healed": healed},
	}
	if err != nil {
		evt.Message = "Counters disagree with the placement history"
		evt.Level = EventLevelError
		evt.Data["error"] = err.Error()
	}
	ep.Publish(evt)
}

// PublishError reports a failed session operation.
func (ep *EventPublisher) PublishError(sessionID, operation string, err error) {
	data := map[string]interface{}{"operation": operation, "error": err.Error()}
	if code := goals.CodeOf(err); code != "" {
		data["code"] = code
	}
	ep.Publish(Event{
		Type:      EventTypeError,
		SessionID: sessionID,
		Message:   fmt.Sprintf("%s failed", operation),
		Level:     EventLevelError,
		Data:      data,
	})
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterBySession creates a filter that only allows events for a specific session.
func FilterBySession(sessionID string) EventFilter {
	return func(event Event) bool {
		return event.SessionID == sessionID
	}
}
