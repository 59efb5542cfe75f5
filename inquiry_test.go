package inquiry_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedbackGraph() *domain.Graph {
	g := domain.NewGraph()
	g.Nodes["start"] = domain.NewNode("start", domain.StartData{})
	g.Nodes["hello"] = domain.NewNode("hello", domain.InformationData{Text: "Welcome!"})
	g.Nodes["mood"] = domain.NewNode("mood", domain.QuestionData{
		Prompt:     "How do you feel?",
		AnswerKind: domain.AnswerRatingMulti,
		Options:    []string{"calm", "busy", "tired"},
	})
	g.Nodes["why"] = domain.NewNode("why", domain.QuestionData{Prompt: "Why?", AnswerKind: domain.AnswerOpenEnded})
	g.Nodes["end"] = domain.NewNode("end", domain.EndData{})
	g.Edges = []domain.Edge{
		{ID: "e1", Source: "start", Target: "hello"},
		{ID: "e2", Source: "hello", Target: "mood"},
		{ID: "e3", Source: "mood", Target: "why"},
		{ID: "e4", Source: "why", Target: "end"},
	}
	return g
}

func TestNew_RejectsInvalidGraph(t *testing.T) {
	g := feedbackGraph()
	delete(g.Nodes, "end")
	g.Edges = g.Edges[:3]

	_, err := inquiry.New(g, nil)
	var structural *domain.StructuralError
	require.ErrorAs(t, err, &structural)
	assert.NotEmpty(t, structural.Errors)

	_, err = inquiry.New(nil, nil)
	assert.Error(t, err)
}

func TestEngine_IsolatedFromCallerGraph(t *testing.T) {
	g := feedbackGraph()
	eng, err := inquiry.New(g, nil)
	require.NoError(t, err)

	delete(g.Nodes, "hello")
	_, ok := eng.Graph().Node("hello")
	assert.True(t, ok)
}

func TestLoad(t *testing.T) {
	data, err := domain.EncodeGraph(feedbackGraph())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "team-pulse.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	eng, err := inquiry.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "team-pulse", eng.Name)
	assert.Equal(t, "team-pulse", eng.Start("s1").InquiryID)
	assert.NotEmpty(t, eng.Start("").SessionID)

	require.NoError(t, os.WriteFile(path, []byte(`{"nodes": []}`), 0o644))
	_, err = inquiry.Load(path, nil)
	assert.Error(t, err)

	_, err = inquiry.Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEngine_Question(t *testing.T) {
	eng, err := inquiry.New(feedbackGraph(), nil)
	require.NoError(t, err)

	state := eng.Start("s1")
	_, ok := eng.Question(state)
	assert.False(t, ok)

	state, _, err = eng.Begin(context.Background(), state, domain.Respondent{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	q, ok := eng.Question(state)
	require.True(t, ok)
	assert.Equal(t, "How do you feel?", q.Prompt)
}

func TestRunner_Run(t *testing.T) {
	eng, err := inquiry.New(feedbackGraph(), nil)
	require.NoError(t, err)

	input := strings.Join([]string{
		"Ana",
		"not-an-email",
		"Ana",
		"ana@example.com",
		"1, Tired",
		"Deadlines",
	}, "\n") + "\n"
	var out bytes.Buffer
	var steps int
	r := &inquiry.Runner{
		Input:  strings.NewReader(input),
		Output: &out,
		OnStep: func(*domain.TraversalState) { steps++ },
	}

	state, err := r.Run(context.Background(), eng, eng.Start("s1"))
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseTerminated, state.Phase)
	assert.Equal(t, 3, steps)

	text := out.String()
	assert.Contains(t, text, "Welcome!")
	assert.Contains(t, text, "  3. tired")
	assert.Contains(t, text, "Please try again")

	var answers []domain.Response
	for _, v := range state.History {
		if v.Response != nil {
			answers = append(answers, *v.Response)
		}
	}
	require.Len(t, answers, 2)
	assert.Equal(t, []string{"calm", "tired"}, answers[0].SelectedRatings)
	assert.Equal(t, "Deadlines", answers[1].Text)
}

func TestRunner_RetriesInvalidAnswer(t *testing.T) {
	eng, err := inquiry.New(feedbackGraph(), nil)
	require.NoError(t, err)

	var out bytes.Buffer
	r := &inquiry.Runner{
		Input:      strings.NewReader("sleepy\n2\nok\n"),
		Output:     &out,
		Respondent: &domain.Respondent{Name: "Ana", Email: "ana@example.com"},
	}
	state, err := r.Run(context.Background(), eng, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseTerminated, state.Phase)
	assert.Contains(t, out.String(), `"sleepy" is not an option`)
}

func TestRunner_EOF(t *testing.T) {
	eng, err := inquiry.New(feedbackGraph(), nil)
	require.NoError(t, err)

	r := &inquiry.Runner{
		Input:      strings.NewReader(""),
		Output:     io.Discard,
		Respondent: &domain.Respondent{Name: "Ana", Email: "ana@example.com"},
	}
	state, err := r.Run(context.Background(), eng, eng.Start("s1"))
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, domain.PhaseAwaitingResponse, state.Phase, "the last committed state is returned")
}

func TestRunner_ContextCancel(t *testing.T) {
	eng, err := inquiry.New(feedbackGraph(), nil)
	require.NoError(t, err)

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := &inquiry.Runner{
		Input:      pr,
		Output:     io.Discard,
		Respondent: &domain.Respondent{Name: "Ana", Email: "ana@example.com"},
	}
	_, err = r.Run(ctx, eng, eng.Start("s1"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunner_CustomDisplay(t *testing.T) {
	eng, err := inquiry.New(feedbackGraph(), nil)
	require.NoError(t, err)

	var shown []string
	r := &inquiry.Runner{
		Input:      strings.NewReader("calm\nfine\n"),
		Output:     io.Discard,
		Respondent: &domain.Respondent{Name: "Ana", Email: "ana@example.com"},
		Display: func(_ context.Context, events []domain.DisplayEvent) error {
			for _, ev := range events {
				shown = append(shown, string(ev.Sender)+":"+ev.Content)
			}
			return nil
		},
	}
	_, err = r.Run(context.Background(), eng, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"bot:Welcome!", "bot:How do you feel?",
		"user:calm", "bot:Why?",
		"user:fine",
	}, shown)
}

func TestParseAnswer(t *testing.T) {
	rating := domain.QuestionData{AnswerKind: domain.AnswerRatingSingle, Options: []string{"Low", "High"}}
	open := domain.QuestionData{AnswerKind: domain.AnswerOpenEnded}

	tests := []struct {
		name string
		q    domain.QuestionData
		line string
		want domain.Response
	}{
		{"number", rating, "2", domain.Response{SelectedRatings: []string{"High"}}},
		{"label any case", rating, " low ", domain.Response{SelectedRatings: []string{"Low"}}},
		{"out of range kept", rating, "7", domain.Response{SelectedRatings: []string{"7"}}},
		{"several", rating, "1,,High", domain.Response{SelectedRatings: []string{"Low", "High"}}},
		{"open ended", open, "  some text ", domain.Response{Text: "some text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inquiry.ParseAnswer(tt.q, tt.line))
		})
	}
}
