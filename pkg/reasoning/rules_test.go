package reasoning_test

import (
	"context"
	"testing"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/reasoning"
	"github.com/aretw0/inquiry/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcript(answers ...string) []domain.TranscriptEntry {
	var out []domain.TranscriptEntry
	for i, a := range answers {
		out = append(out,
			domain.TranscriptEntry{Role: domain.RoleBot, NodeID: "q", Text: "question"},
			domain.TranscriptEntry{Role: domain.RoleUser, NodeID: "q" + string(rune('0'+i)), Text: a},
		)
	}
	return out
}

func TestRules_ResolveCondition(t *testing.T) {
	instructions := `Route happy customers to the thank-you page.
when contains(last, "yes") -> happy
when visits >= 3 -> end
otherwise -> ask_again`

	tests := []struct {
		name       string
		transcript []domain.TranscriptEntry
		want       string
	}{
		{"Matches Contains", transcript("YES please"), "happy"},
		{"Counts Visits", transcript("no", "no", "no"), "end"},
		{"Falls Through", transcript("no"), "ask_again"},
		{"Empty Transcript", nil, "ask_again"},
	}

	sub := open(t, reasoning.NewLoopback(reasoning.NewRules()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := sub.ResolveCondition(context.Background(), "route", instructions, tt.transcript)
			require.NoError(t, err)
			assert.Equal(t, tt.want, target)
		})
	}
}

func TestRules_Deterministic(t *testing.T) {
	sub := open(t, reasoning.NewLoopback(reasoning.NewRules()))
	tr := transcript("maybe")
	for i := 0; i < 5; i++ {
		target, err := sub.ResolveCondition(context.Background(), "c", "when last == \"maybe\" -> t\notherwise -> u", tr)
		require.NoError(t, err)
		assert.Equal(t, "t", target)
	}
}

func TestRules_Ratings(t *testing.T) {
	sub := open(t, reasoning.NewLoopback(reasoning.NewRules()))
	tr := []domain.TranscriptEntry{{Role: domain.RoleUser, NodeID: "rate", Text: "5", Ratings: []string{"5"}}}
	target, err := sub.ResolveCondition(context.Background(), "c", `when "5" in ratings -> promoter
otherwise -> detractor`, tr)
	require.NoError(t, err)
	assert.Equal(t, "promoter", target)
}

func TestRules_NoMatch(t *testing.T) {
	sub := open(t, reasoning.NewLoopback(reasoning.NewRules()))

	_, err := sub.ResolveCondition(context.Background(), "c", "Ask the model nicely.", nil)
	assert.ErrorContains(t, err, reasoning.ErrNoRuleMatched.Error())

	_, err = sub.ResolveCondition(context.Background(), "c", "when visits > 10 -> x", nil)
	assert.ErrorContains(t, err, reasoning.ErrNoRuleMatched.Error())

	_, err = sub.ResolveCondition(context.Background(), "c", "when visits >>> 1 -> x", nil)
	assert.ErrorContains(t, err, "invalid rule")
}

func TestRules_Generate(t *testing.T) {
	sub := open(t, reasoning.NewLoopback(reasoning.NewRules()))
	tr := []domain.TranscriptEntry{{Role: domain.RoleUser, NodeID: "name", Text: "Ada"}, {Role: domain.RoleUser, NodeID: "food", Text: "pasta"}}

	text, err := sub.GenerateText(context.Background(), "n", "So {{ answer.name }}, you said {{last}}.", tr)
	require.NoError(t, err)
	assert.Equal(t, "So Ada, you said pasta.", text)
}

func TestParseRules(t *testing.T) {
	rules := reasoning.ParseRules("# comment\nwhen a > 1 -> x\n\nfree text\nOtherwise -> y\n")
	assert.Equal(t, []reasoning.Rule{{Cond: "a > 1", Target: "x"}, {Cond: "", Target: "y"}}, rules)
}

func TestRules_AutoFix(t *testing.T) {
	broken := domain.NewGraph()
	broken.Nodes["start"] = domain.NewNode("start", domain.StartData{})
	broken.Nodes["ask"] = domain.NewNode("ask", domain.QuestionData{Prompt: "Why?"})
	broken.Nodes["orphan"] = domain.NewNode("orphan", domain.InformationData{Text: "lost"})
	broken.Edges = []domain.Edge{
		{ID: "e1", Source: "start", Target: "ask"},
		{ID: "e2", Source: "ask", Target: "ghost"},
	}
	before := validator.Validate(broken)
	require.False(t, before.OK())

	doc, err := domain.EncodeGraph(broken)
	require.NoError(t, err)

	sub := open(t, reasoning.NewLoopback(reasoning.NewRules()))
	fixedDoc, err := sub.AutoFix(context.Background(), before.Errors, doc)
	require.NoError(t, err)

	fixed, err := validator.ParseDocument(fixedDoc)
	require.NoError(t, err)
	after := validator.Validate(fixed)
	assert.True(t, after.OK(), "errors: %v", after.Errors)
	assert.NotContains(t, fixed.Nodes, "orphan")
	assert.Contains(t, fixed.Nodes, "end")
}

func TestFixInstructions(t *testing.T) {
	text := reasoning.FixInstructions([]string{"graph must contain at least one end node"})
	assert.Contains(t, text, "- graph must contain at least one end node")
}
