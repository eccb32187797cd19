package stores

import (
	"context"
	"sync"

	"github.com/sfbuilder/colony/pkg/goals"
)

// MemoryMirror is an in-process goals.SaveMirror. It backs previews and
// tests; nothing survives the process.
type MemoryMirror struct {
	mu       sync.Mutex
	saved    bool
	state    goals.SaveState
	failNext error
	writes   int
}

// NewMemoryMirror creates an empty mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{}
}

// NewMemoryMirrorFrom creates a mirror holding a copy of state.
func NewMemoryMirrorFrom(state goals.SaveState) *MemoryMirror {
	m := &MemoryMirror{saved: true}
	m.state = copyState(state)
	return m
}

// FailNext makes the next write return err and leave the mirror unchanged.
func (m *MemoryMirror) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Writes returns the number of successful writes.
func (m *MemoryMirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Load implements goals.SaveMirror.
func (m *MemoryMirror) Load(_ context.Context) (*goals.SaveState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return nil, nil
	}
	s := copyState(m.state)
	return &s, nil
}

// AppendPlacement implements goals.SaveMirror.
func (m *MemoryMirror) AppendPlacement(_ context.Context, obj goals.PlacedObject, counts []int) error {
	return m.write(func() error {
		m.state.PlacedObjects = append(m.state.PlacedObjects, obj)
		m.state.Counts = append([]int(nil), counts...)
		return nil
	})
}

// PopPlacement implements goals.SaveMirror.
func (m *MemoryMirror) PopPlacement(_ context.Context, counts []int) error {
	return m.write(func() error {
		n := len(m.state.PlacedObjects)
		if n == 0 {
			return ErrNoPlacements
		}
		m.state.PlacedObjects = m.state.PlacedObjects[:n-1]
		m.state.Counts = append([]int(nil), counts...)
		return nil
	})
}

// WriteProgression implements goals.SaveMirror.
func (m *MemoryMirror) WriteProgression(_ context.Context, p goals.Progression) error {
	return m.write(func() error {
		m.state.Progression = copyProgression(p)
		return nil
	})
}

// ResetLevel implements goals.SaveMirror.
func (m *MemoryMirror) ResetLevel(_ context.Context, p goals.Progression) error {
	return m.write(func() error {
		m.state.Progression = copyProgression(p)
		m.state.PlacedObjects = nil
		return nil
	})
}

func (m *MemoryMirror) write(apply func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	if err := apply(); err != nil {
		return err
	}
	m.saved = true
	m.writes++
	return nil
}

func copyProgression(p goals.Progression) goals.Progression {
	p.Counts = append([]int(nil), p.Counts...)
	return p
}

func copyState(s goals.SaveState) goals.SaveState {
	return goals.SaveState{
		Progression:   copyProgression(s.Progression),
		PlacedObjects: append([]goals.PlacedObject(nil), s.PlacedObjects...),
	}
}
