package history

import (
	"errors"
	"sync"

	"github.com/aretw0/inquiry/pkg/domain"
)

// Mutator derives the next graph from the current one.
// A logical edit that touches nodes and edges together must be a single Mutator.
type Mutator func(g *domain.Graph) (*domain.Graph, error)

// ErrNilGraph is returned when a mutator produces no graph.
var ErrNilGraph = errors.New("mutator returned nil graph")

// Listener is notified with the new current graph after every commit, undo or redo.
type Listener func(g *domain.Graph)

// Manager gives an editor session transactional undo/redo over a graph.
// History depth is unbounded and lives only in memory.
type Manager struct {
	mu      sync.Mutex
	current *domain.Graph
	undo    []*domain.Graph
	redo    []*domain.Graph

	nextListener int
	listeners    map[int]Listener
}

// New creates a manager whose current graph is initial.
func New(initial *domain.Graph) *Manager {
	if initial == nil {
		initial = domain.NewGraph()
	}
	return &Manager{
		current:   initial.Clone(),
		listeners: make(map[int]Listener),
	}
}

// Current returns a copy of the current graph.
func (m *Manager) Current() *domain.Graph {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Commit applies fn to the current graph as one history entry.
// The previous graph is pushed onto the undo stack and the redo stack is cleared.
// If fn fails, nothing changes.
func (m *Manager) Commit(fn Mutator) error {
	m.mu.Lock()
	next, err := fn(m.current.Clone())
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if next == nil {
		m.mu.Unlock()
		return ErrNilGraph
	}

	m.undo = append(m.undo, m.current)
	m.redo = nil
	m.current = next
	notify := m.snapshotLocked()
	m.mu.Unlock()

	notify()
	return nil
}

// Undo restores the previous graph. It reports false when there is nothing to undo.
func (m *Manager) Undo() bool {
	m.mu.Lock()
	if len(m.undo) == 0 {
		m.mu.Unlock()
		return false
	}
	prev := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, m.current)
	m.current = prev
	notify := m.snapshotLocked()
	m.mu.Unlock()

	notify()
	return true
}

// Redo re-applies the last undone graph. It reports false when there is nothing to redo.
func (m *Manager) Redo() bool {
	m.mu.Lock()
	if len(m.redo) == 0 {
		m.mu.Unlock()
		return false
	}
	next := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, m.current)
	m.current = next
	notify := m.snapshotLocked()
	m.mu.Unlock()

	notify()
	return true
}

// CanUndo returns true if undo is available.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

// CanRedo returns true if redo is available.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Depth returns the sizes of the undo and redo stacks.
func (m *Manager) Depth() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// Reset replaces the current graph and clears both stacks (e.g. after a reload).
func (m *Manager) Reset(g *domain.Graph) {
	m.mu.Lock()
	m.current = g.Clone()
	m.undo = nil
	m.redo = nil
	notify := m.snapshotLocked()
	m.mu.Unlock()

	notify()
}

// Subscribe registers a listener and returns the function that removes it.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// snapshotLocked captures listeners and graph so they can be called without holding the lock.
func (m *Manager) snapshotLocked() func() {
	if len(m.listeners) == 0 {
		return func() {}
	}
	g := m.current.Clone()
	ls := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		ls = append(ls, l)
	}
	return func() {
		for _, l := range ls {
			l(g)
		}
	}
}
