package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/inquiry/pkg/adapters/memory"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/persistence/middleware"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func masked(t *testing.T, inner ports.Repository, patterns []string) ports.Repository {
	t.Helper()
	mw, err := middleware.NewPIIMiddleware(patterns)
	require.NoError(t, err)
	return mw(inner)
}

func TestPII_Contract(t *testing.T) {
	ports.RunRepositoryContract(t, masked(t, memory.NewRepository(), middleware.DefaultPIIPatterns))
}

func TestPII_MasksAnswers(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewRepository()
	repo := masked(t, inner, middleware.DefaultPIIPatterns)
	require.NoError(t, repo.SaveGraph(ctx, "survey", domain.NewGraph()))

	resp := &domain.Response{Text: "reach me at jane@example.com or +1 (555) 010-9999"}
	sub := domain.Submission{
		Respondent: &domain.Respondent{Name: "Jane", Email: "jane@example.com"},
		Visits: []domain.NodeVisit{
			{NodeID: "ask", NodeType: domain.NodeTypeQuestion, Shown: "Contact?", Response: resp},
			{NodeID: "bye", NodeType: domain.NodeTypeInformation, Shown: "We'll write to jane@example.com"},
		},
	}
	_, err := repo.AppendResponse(ctx, "survey", sub)
	require.NoError(t, err)

	// The caller's copy is unchanged.
	assert.Contains(t, resp.Text, "jane@example.com")

	stored, err := inner.ListResponses(ctx, "survey")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	got := stored[0]
	assert.Equal(t, "reach me at *** or ***", got.Visits[0].Response.Text)
	assert.Equal(t, "We'll write to ***", got.Visits[1].Shown)
	assert.Equal(t, "jane@example.com", got.Respondent.Email)

	listed, err := repo.(ports.ResponseLister).ListResponses(ctx, "survey")
	require.NoError(t, err)
	assert.Equal(t, stored, listed)
}

func TestPII_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

type writeOnly struct{ ports.Repository }

func TestPII_ListingUnsupported(t *testing.T) {
	repo := masked(t, writeOnly{memory.NewRepository()}, nil)
	_, err := repo.(ports.ResponseLister).ListResponses(context.Background(), "x")
	assert.ErrorIs(t, err, middleware.ErrListingUnsupported)
}
