package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractGraph is the smallest valid inquiry with one node of each displayable type.
func contractGraph() *domain.Graph {
	g := domain.NewGraph()
	g.Nodes["start"] = domain.NewNode("start", domain.StartData{Label: "Welcome"})
	g.Nodes["info"] = domain.NewNode("info", domain.InformationData{Text: "hi"})
	g.Nodes["ask"] = domain.NewNode("ask", domain.QuestionData{
		Prompt:     "How was it?",
		AnswerKind: domain.AnswerRatingSingle,
		Options:    []string{"bad", "ok", "great"},
	})
	g.Nodes["route"] = domain.NewNode("route", domain.ConditionData{Instructions: "otherwise -> end"})
	g.Nodes["end"] = domain.NewNode("end", domain.EndData{})
	g.Edges = []domain.Edge{
		{ID: "e1", Source: "start", Target: "info"},
		{ID: "e2", Source: "info", Target: "ask"},
		{ID: "e3", Source: "ask", Target: "route"},
		{ID: "e4", Source: "route", Target: "end"},
	}
	return g
}

// RunRepositoryContract runs a suite of tests to verify that a Repository implementation
// adheres to the defined interface contract.
func RunRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()
	inquiryID := fmt.Sprintf("contract-%d", time.Now().UnixNano())

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := repo.LoadGraph(ctx, "missing-"+inquiryID)
		assert.ErrorIs(t, err, domain.ErrInquiryNotFound)
	})

	t.Run("Save and Load Round Trip", func(t *testing.T) {
		g := contractGraph()
		require.NoError(t, repo.SaveGraph(ctx, inquiryID, g))

		loaded, err := repo.LoadGraph(ctx, inquiryID)
		require.NoError(t, err)
		assert.True(t, g.Equal(loaded), "graph must round-trip losslessly")
	})

	t.Run("Save Replaces", func(t *testing.T) {
		g, err := contractGraph().UpdateNodeData("info", domain.InformationData{Text: "changed"})
		require.NoError(t, err)
		require.NoError(t, repo.SaveGraph(ctx, inquiryID, g))

		loaded, err := repo.LoadGraph(ctx, inquiryID)
		require.NoError(t, err)
		assert.Equal(t, "changed", loaded.Nodes["info"].Text())
	})

	t.Run("Append Response", func(t *testing.T) {
		sub := domain.Submission{
			InquiryID:  inquiryID,
			SessionID:  "s1",
			Respondent: &domain.Respondent{Name: "Ada", Email: "ada@example.com"},
			Visits: []domain.NodeVisit{
				{NodeID: "info", NodeType: domain.NodeTypeInformation, EnteredAt: time.Now().UTC(), Shown: "hi"},
				{NodeID: "ask", NodeType: domain.NodeTypeQuestion, EnteredAt: time.Now().UTC(), Response: &domain.Response{SelectedRatings: []string{"great"}}},
			},
			SubmittedAt: time.Now().UTC(),
		}

		id1, err := repo.AppendResponse(ctx, inquiryID, sub)
		require.NoError(t, err)
		assert.NotEmpty(t, id1)

		id2, err := repo.AppendResponse(ctx, inquiryID, sub)
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2, "each append yields a new response id")

		lister, ok := repo.(ResponseLister)
		if !ok {
			return
		}
		list, err := lister.ListResponses(ctx, inquiryID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, id1, list[0].ID)
		require.Len(t, list[0].Visits, 2)
		assert.Equal(t, []string{"great"}, list[0].Visits[1].Response.SelectedRatings)
	})

	t.Run("Append To Unknown Inquiry", func(t *testing.T) {
		_, err := repo.AppendResponse(ctx, "missing-"+inquiryID, domain.Submission{})
		assert.ErrorIs(t, err, domain.ErrInquiryNotFound)
	})
}
