package editor_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/inquiry/pkg/adapters/memory"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/editor"
	"github.com/aretw0/inquiry/pkg/reasoning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string, data domain.NodeData) *domain.Node {
	n := domain.NewNode(id, data)
	return &n
}

func validGraph() *domain.Graph {
	g := domain.NewGraph()
	g.Nodes["start"] = domain.NewNode("start", domain.StartData{})
	g.Nodes["end"] = domain.NewNode("end", domain.EndData{})
	g.Edges = []domain.Edge{{ID: "e0", Source: "start", Target: "end"}}
	return g
}

// flakyRepo fails SaveGraph while fail is set.
type flakyRepo struct {
	*memory.Repository
	fail  atomic.Bool
	saves atomic.Int32
}

func (r *flakyRepo) SaveGraph(ctx context.Context, id string, g *domain.Graph) error {
	r.saves.Add(1)
	if r.fail.Load() {
		return errors.New("network down")
	}
	return r.Repository.SaveGraph(ctx, id, g)
}

func TestCommand_Mutators(t *testing.T) {
	s := editor.NewSession(memory.NewRepository(), "inq", validGraph(), editor.WithAutosaveQuiet(0))

	require.NoError(t, s.Apply(editor.Command{Op: editor.OpAddNode, Node: node("info", domain.InformationData{Text: "hi"})}))
	require.NoError(t, s.Apply(editor.Command{Op: editor.OpAddEdge, Edge: &domain.Edge{Source: "info", Target: "end"}}))
	require.NoError(t, s.Apply(editor.Command{Op: editor.OpUpdateNode, ID: "info", Node: node("info", domain.InformationData{Text: "hello"})}))

	g := s.Graph()
	assert.Equal(t, "hello", g.Nodes["info"].Text())
	assert.Len(t, g.Edges, 2)
	assert.NotEmpty(t, g.Edges[1].ID, "missing edge ids are generated")

	require.NoError(t, s.Apply(editor.Command{Op: editor.OpRemoveNode, ID: "info"}))
	assert.Len(t, s.Graph().Edges, 1, "removing a node cascades to its edges")

	err := s.Apply(editor.Command{Op: "rename"})
	assert.ErrorContains(t, err, "unknown editor op")

	err = s.Apply(editor.Command{Op: editor.OpRemoveEdge, ID: "nope"})
	assert.ErrorIs(t, err, domain.ErrEdgeNotFound)
}

func TestCommand_BatchIsOneUndo(t *testing.T) {
	s := editor.NewSession(memory.NewRepository(), "inq", validGraph(), editor.WithAutosaveQuiet(0))

	cmd, err := editor.DecodeCommand([]byte(`{"op":"batch","commands":[
		{"op":"addNode","node":{"id":"q","type":"information","data":{"text":"x"}}},
		{"op":"addEdge","edge":{"id":"e1","source":"q","target":"end"}}
	]}`))
	require.NoError(t, err)
	require.NoError(t, s.Apply(cmd))
	assert.Contains(t, s.Graph().Nodes, "q")

	require.True(t, s.Undo())
	assert.True(t, validGraph().Equal(s.Graph()))
	require.True(t, s.Redo())
	assert.Len(t, s.Graph().Edges, 2)
}

func TestPublish_Gate(t *testing.T) {
	repo := memory.NewRepository()
	broken := domain.NewGraph()
	broken.Nodes["end"] = domain.NewNode("end", domain.EndData{})

	s := editor.NewSession(repo, "inq", broken, editor.WithAutosaveQuiet(0))
	_, err := s.Publish(context.Background())

	var structural *domain.StructuralError
	require.ErrorAs(t, err, &structural)
	assert.NotEmpty(t, structural.Errors)

	_, err = repo.LoadGraph(context.Background(), "inq")
	assert.ErrorIs(t, err, domain.ErrInquiryNotFound, "a rejected publish must not save")

	s = editor.NewSession(repo, "inq", validGraph(), editor.WithAutosaveQuiet(0))
	report, err := s.Publish(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())

	saved, err := repo.LoadGraph(context.Background(), "inq")
	require.NoError(t, err)
	assert.True(t, validGraph().Equal(saved))
}

func TestAutosave_Quiescence(t *testing.T) {
	repo := &flakyRepo{Repository: memory.NewRepository()}
	s := editor.NewSession(repo, "inq", validGraph(), editor.WithAutosaveQuiet(40*time.Millisecond))
	defer s.Close(context.Background())

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Apply(editor.Command{Op: editor.OpAddNode, Node: node(id, domain.InformationData{Text: id})}))
		if i < 2 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	assert.Equal(t, int32(0), repo.saves.Load(), "no save while edits keep arriving")

	assert.Eventually(t, func() bool { return repo.saves.Load() == 1 }, time.Second, 5*time.Millisecond)
	saved, err := repo.LoadGraph(context.Background(), "inq")
	require.NoError(t, err)
	assert.Len(t, saved.Nodes, 5)
}

func TestAutosave_FailureKeepsLocalState(t *testing.T) {
	repo := &flakyRepo{Repository: memory.NewRepository()}
	repo.fail.Store(true)

	var (
		mu      sync.Mutex
		results []error
	)
	a := editor.NewAutosaver(
		func(ctx context.Context, g *domain.Graph) error { return repo.SaveGraph(ctx, "inq", g) },
		editor.WithQuiet(time.Hour),
		editor.WithSaveObserver(func(err error) {
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}),
	)
	defer a.Stop()

	a.Changed(validGraph())
	assert.Error(t, a.Flush(context.Background()))
	assert.True(t, a.Dirty(), "failed save keeps the pending graph")

	repo.fail.Store(false)
	require.NoError(t, a.Flush(context.Background()))
	assert.False(t, a.Dirty())
	require.NoError(t, a.Flush(context.Background()), "flush with nothing pending is a no-op")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 2)
	assert.Error(t, results[0])
	assert.NoError(t, results[1])
}

func TestAutosave_Stop(t *testing.T) {
	var saves atomic.Int32
	a := editor.NewAutosaver(func(context.Context, *domain.Graph) error {
		saves.Add(1)
		return nil
	}, editor.WithQuiet(10*time.Millisecond))

	a.Changed(validGraph())
	a.Stop()
	a.Changed(validGraph())
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), saves.Load())
}

func TestAutoFix_RoundTrip(t *testing.T) {
	client := reasoning.NewClient(reasoning.NewLoopback(reasoning.NewRules()))
	defer client.Close()
	sub, err := client.Open(context.Background(), "editor-inq")
	require.NoError(t, err)
	defer sub.Close()

	broken := domain.NewGraph()
	broken.Nodes["start"] = domain.NewNode("start", domain.StartData{})
	broken.Nodes["info"] = domain.NewNode("info", domain.InformationData{Text: "hi"})
	broken.Edges = []domain.Edge{{ID: "e0", Source: "start", Target: "info"}}

	s := editor.NewSession(memory.NewRepository(), "inq", broken,
		editor.WithAutosaveQuiet(0), editor.WithFixer(sub))
	require.False(t, s.Validate().OK())

	report, err := s.AutoFix(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK(), "errors after fix: %v", report.Errors)

	undo, _ := s.History().Depth()
	assert.Equal(t, 1, undo, "the fix is a single history entry")

	require.True(t, s.Undo())
	assert.True(t, broken.Equal(s.Graph()))
}

func TestAutoFix_NoFixer(t *testing.T) {
	broken := domain.NewGraph()
	s := editor.NewSession(memory.NewRepository(), "inq", broken, editor.WithAutosaveQuiet(0))
	_, err := s.AutoFix(context.Background())
	assert.ErrorIs(t, err, editor.ErrNoFixer)

	s = editor.NewSession(memory.NewRepository(), "inq", validGraph(), editor.WithAutosaveQuiet(0))
	report, err := s.AutoFix(context.Background())
	require.NoError(t, err, "a valid graph needs no fixer")
	assert.True(t, report.OK())
}

func TestOpen_NewInquiry(t *testing.T) {
	s, err := editor.Open(context.Background(), memory.NewRepository(), "fresh", editor.WithAutosaveQuiet(0))
	require.NoError(t, err)
	assert.Empty(t, s.Graph().Nodes)
	assert.Equal(t, "fresh", s.InquiryID())
}
