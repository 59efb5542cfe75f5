package validator_test

import (
	"strings"
	"testing"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(nodes []domain.Node, edges []domain.Edge) *domain.Graph {
	g := domain.NewGraph()
	for _, n := range nodes {
		g.Nodes[n.ID] = n
	}
	g.Edges = append(g.Edges, edges...)
	return g
}

func linear() *domain.Graph {
	return build(
		[]domain.Node{
			domain.NewNode("start", domain.StartData{}),
			domain.NewNode("a", domain.InformationData{Text: "hi"}),
			domain.NewNode("b", domain.QuestionData{Prompt: "?", AnswerKind: domain.AnswerOpenEnded}),
			domain.NewNode("end", domain.EndData{}),
		},
		[]domain.Edge{
			{ID: "e1", Source: "start", Target: "a"},
			{ID: "e2", Source: "a", Target: "b"},
			{ID: "e3", Source: "b", Target: "end"},
		},
	)
}

func TestValidate_ValidGraph(t *testing.T) {
	report := validator.Validate(linear())
	assert.True(t, report.OK(), "unexpected errors: %v", report.Errors)
	assert.NoError(t, report.Err())
	assert.Empty(t, report.Warnings)
}

func TestValidate_StartCount(t *testing.T) {
	tests := []struct {
		name   string
		starts int
		want   bool
	}{
		{"No Start", 0, true},
		{"One Start", 1, false},
		{"Two Starts", 2, true},
		{"Three Starts", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build([]domain.Node{domain.NewNode("end", domain.EndData{})}, nil)
			for i := 0; i < tt.starts; i++ {
				id := "s" + strings.Repeat("x", i)
				g.Nodes[id] = domain.NewNode(id, domain.StartData{})
				g.Edges = append(g.Edges, domain.Edge{ID: "e" + id, Source: id, Target: "end"})
			}

			report := validator.Validate(g)
			assert.Equal(t, tt.want, contains(report.Errors, validator.MsgStartCount), "errors: %v", report.Errors)
			if tt.want {
				assert.NotEmpty(t, report.Errors)
			}
		})
	}
}

func TestValidate_Rules(t *testing.T) {
	t.Run("Missing End", func(t *testing.T) {
		g := build(
			[]domain.Node{domain.NewNode("start", domain.StartData{}), domain.NewNode("a", domain.InformationData{Text: "x"})},
			[]domain.Edge{{ID: "e1", Source: "start", Target: "a"}, {ID: "e2", Source: "a", Target: "a"}},
		)
		report := validator.Validate(g)
		assert.Contains(t, report.Errors, validator.MsgNoEnd)
	})

	t.Run("Dead End Node", func(t *testing.T) {
		g := linear()
		next, err := g.RemoveEdge("e2")
		require.NoError(t, err)
		report := validator.Validate(next)
		assert.Contains(t, report.Errors, "node 'a' (information) has no outgoing edges")
	})

	t.Run("Unreachable Node Reported By ID", func(t *testing.T) {
		g := linear()
		g.Nodes["island"] = domain.NewNode("island", domain.InformationData{Text: "alone"})
		g.Edges = append(g.Edges, domain.Edge{ID: "e9", Source: "island", Target: "end"})

		report := validator.Validate(g)
		assert.Contains(t, report.Errors, "node 'island' is unreachable from start")
		assert.Len(t, report.Errors, 1)
	})

	t.Run("Dangling Edge", func(t *testing.T) {
		g := linear()
		g.Edges = append(g.Edges, domain.Edge{ID: "ghost", Source: "a", Target: "nowhere"})
		report := validator.Validate(g)
		assert.Contains(t, report.Errors, "edge 'ghost' references missing target node 'nowhere'")
	})

	t.Run("Cycles Are Allowed", func(t *testing.T) {
		g := linear()
		g.Nodes["loop"] = domain.NewNode("loop", domain.ConditionData{Instructions: "when true -> b"})
		g.Edges = []domain.Edge{
			{ID: "e1", Source: "start", Target: "a"},
			{ID: "e2", Source: "a", Target: "b"},
			{ID: "e3", Source: "b", Target: "loop"},
			{ID: "e4", Source: "loop", Target: "b"},
			{ID: "e5", Source: "loop", Target: "end"},
		}
		report := validator.Validate(g)
		assert.True(t, report.OK(), "errors: %v", report.Errors)
	})

	t.Run("Structural Error", func(t *testing.T) {
		report := validator.Validate(domain.NewGraph())
		var structural *domain.StructuralError
		require.ErrorAs(t, report.Err(), &structural)
		assert.Equal(t, report.Errors, structural.Errors)
	})

	t.Run("Does Not Mutate", func(t *testing.T) {
		g := linear()
		before := g.Clone()
		validator.Validate(g)
		assert.True(t, before.Equal(g))
	})
}

func TestValidate_Warnings(t *testing.T) {
	g := linear()
	g.Nodes["route"] = domain.NewNode("route", domain.ConditionData{Instructions: "when contains(last, 'yes') -> b\notherwise -> summary"})
	g.Nodes["rate"] = domain.NewNode("rate", domain.QuestionData{Prompt: "Rate", AnswerKind: domain.AnswerRatingSingle})
	g.Edges = []domain.Edge{
		{ID: "e1", Source: "start", Target: "a"},
		{ID: "e2", Source: "a", Target: "route"},
		{ID: "e3", Source: "route", Target: "b"},
		{ID: "e4", Source: "b", Target: "rate"},
		{ID: "e5", Source: "rate", Target: "end"},
	}

	report := validator.Validate(g)
	assert.True(t, report.OK(), "warnings must not be errors: %v", report.Errors)
	assert.Contains(t, report.Warnings, "condition 'route' routes to 'summary' but has no edge to it")
	assert.Contains(t, report.Warnings, "question 'rate' is rating-single but defines no options")
}

func TestCheckDocument(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		doc := `{"nodes":{"start":{"id":"start","type":"start"},"end":{"id":"end","type":"end"}},"edges":[{"id":"e","source":"start","target":"end"}]}`
		g, err := validator.ParseDocument([]byte(doc))
		require.NoError(t, err)
		assert.Len(t, g.Nodes, 2)
	})

	t.Run("Missing Edges", func(t *testing.T) {
		err := validator.CheckDocument([]byte(`{"nodes":{}}`))
		assert.ErrorContains(t, err, "edges")
	})

	t.Run("Bad Node Type", func(t *testing.T) {
		err := validator.CheckDocument([]byte(`{"nodes":{"x":{"type":"modal"}},"edges":[]}`))
		assert.Error(t, err)
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
