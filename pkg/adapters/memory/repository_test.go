package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/inquiry/pkg/adapters/memory"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Contract(t *testing.T) {
	ports.RunRepositoryContract(t, memory.NewRepository())
}

func TestRepository_Isolation(t *testing.T) {
	repo := memory.NewRepository()
	g := domain.NewGraph()
	g.Nodes["start"] = domain.NewNode("start", domain.StartData{})
	require.NoError(t, repo.SaveGraph(context.Background(), "inq", g))

	g.Nodes["late"] = domain.NewNode("late", domain.EndData{})

	loaded, err := repo.LoadGraph(context.Background(), "inq")
	require.NoError(t, err)
	assert.NotContains(t, loaded.Nodes, "late", "saved graph must not alias the caller's value")
	assert.Equal(t, []string{"inq"}, repo.Inquiries())
}
