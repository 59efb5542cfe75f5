package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contractValue struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// RunBackendContract verifies that a Backend behaves as Store expects.
func RunBackendContract(t *testing.T, backend Backend) {
	ctx := context.Background()
	summaries := New[string](backend, "summary:inq-1")
	records := New[contractValue](backend, "record")

	t.Run("Missing Key", func(t *testing.T) {
		_, err := summaries.Get(ctx, "q1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Put Get", func(t *testing.T) {
		require.NoError(t, summaries.Put(ctx, "q1", "mostly positive"))
		v, err := summaries.Get(ctx, "q1")
		require.NoError(t, err)
		assert.Equal(t, "mostly positive", v)

		require.NoError(t, records.Put(ctx, "r", contractValue{Name: "x", Items: []string{"a", "b"}}))
		rec, err := records.Get(ctx, "r")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, rec.Items)
	})

	t.Run("Namespaces Are Isolated", func(t *testing.T) {
		other := New[string](backend, "summary:inq-2")
		_, err := other.Get(ctx, "q1")
		assert.ErrorIs(t, err, ErrNotFound)

		keys, err := summaries.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"q1"}, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, summaries.Delete(ctx, "q1"))
		_, err := summaries.Get(ctx, "q1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, summaries.Delete(ctx, "q1"), "deleting twice is fine")
	})
}
