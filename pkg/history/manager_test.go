package history_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed() *domain.Graph {
	g := domain.NewGraph()
	g.Nodes["start"] = domain.NewNode("start", domain.StartData{})
	g.Nodes["end"] = domain.NewNode("end", domain.EndData{})
	g.Edges = append(g.Edges, domain.Edge{ID: "e0", Source: "start", Target: "end"})
	return g
}

func addInfo(id string) history.Mutator {
	return func(g *domain.Graph) (*domain.Graph, error) {
		return g.AddNode(domain.NewNode(id, domain.InformationData{Text: id}))
	}
}

func TestManager_UndoRedoSymmetry(t *testing.T) {
	for _, n := range []int{1, 2, 5, 12} {
		t.Run(fmt.Sprintf("%d commits", n), func(t *testing.T) {
			initial := seed()
			m := history.New(initial)

			for i := 0; i < n; i++ {
				require.NoError(t, m.Commit(addInfo(fmt.Sprintf("n%d", i))))
			}
			assert.Len(t, m.Current().Nodes, 2+n)

			for i := 0; i < n; i++ {
				assert.True(t, m.Undo())
			}
			assert.True(t, initial.Equal(m.Current()), "undoing every commit must restore the initial graph")
			assert.False(t, m.CanUndo())
			assert.False(t, m.Undo(), "undo on empty stack is a no-op")

			for i := 0; i < n; i++ {
				assert.True(t, m.Redo())
			}
			assert.Len(t, m.Current().Nodes, 2+n)
			assert.False(t, m.Redo())
		})
	}
}

func TestManager_CommitAfterUndoClearsRedo(t *testing.T) {
	m := history.New(seed())
	require.NoError(t, m.Commit(addInfo("a")))
	require.NoError(t, m.Commit(addInfo("b")))

	require.True(t, m.Undo())
	assert.True(t, m.CanRedo())

	require.NoError(t, m.Commit(addInfo("c")))
	assert.False(t, m.CanRedo())
	assert.False(t, m.Redo(), "redo after a fresh commit is a no-op")

	g := m.Current()
	assert.Contains(t, g.Nodes, "a")
	assert.Contains(t, g.Nodes, "c")
	assert.NotContains(t, g.Nodes, "b")
}

func TestManager_CompositeEditIsOneEntry(t *testing.T) {
	m := history.New(seed())

	err := m.Commit(func(g *domain.Graph) (*domain.Graph, error) {
		next, err := g.AddNode(domain.NewNode("info", domain.InformationData{Text: "hello"}))
		if err != nil {
			return nil, err
		}
		return next.AddEdge(domain.Edge{ID: "e1", Source: "info", Target: "end"})
	})
	require.NoError(t, err)

	undo, redo := m.Depth()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 0, redo)

	require.True(t, m.Undo())
	g := m.Current()
	assert.NotContains(t, g.Nodes, "info")
	assert.Len(t, g.Edges, 1, "one undo reverts node and edge together")
}

func TestManager_FailedCommitLeavesStateUntouched(t *testing.T) {
	m := history.New(seed())
	boom := errors.New("boom")

	err := m.Commit(func(g *domain.Graph) (*domain.Graph, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	err = m.Commit(func(g *domain.Graph) (*domain.Graph, error) { return nil, nil })
	assert.ErrorIs(t, err, history.ErrNilGraph)

	assert.False(t, m.CanUndo())
}

func TestManager_CurrentIsACopy(t *testing.T) {
	m := history.New(seed())
	g := m.Current()
	delete(g.Nodes, "start")
	assert.Contains(t, m.Current().Nodes, "start")
}

func TestManager_Subscribe(t *testing.T) {
	m := history.New(seed())
	var seen []int
	unsubscribe := m.Subscribe(func(g *domain.Graph) {
		seen = append(seen, len(g.Nodes))
	})

	require.NoError(t, m.Commit(addInfo("a")))
	m.Undo()
	m.Redo()
	unsubscribe()
	require.NoError(t, m.Commit(addInfo("b")))

	assert.Equal(t, []int{3, 2, 3}, seen)
}
