package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct{ calls []string }

func (s *stubRunner) Execute(_ context.Context, call domain.IntegrationCall) (domain.IntegrationResult, error) {
	s.calls = append(s.calls, call.Tool)
	return domain.IntegrationResult{ID: call.ID, Result: "from fallback"}, nil
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	r.Register("double", func(_ context.Context, args map[string]any) (any, error) {
		return args["n"].(int) * 2, nil
	})
	r.Register("fail", func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	res, err := r.Execute(context.Background(), domain.IntegrationCall{ID: "1", Tool: "double", Args: map[string]any{"n": 21}})
	require.NoError(t, err)
	assert.Equal(t, domain.IntegrationResult{ID: "1", Result: 42}, res)

	res, err = r.Execute(context.Background(), domain.IntegrationCall{ID: "2", Tool: "fail"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "boom", res.Error)

	_, err = r.Execute(context.Background(), domain.IntegrationCall{ID: "3", Tool: "missing"})
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_Fallback(t *testing.T) {
	next := &stubRunner{}
	r := NewRegistry(WithBuiltins(), WithFallback(next))

	res, err := r.Execute(context.Background(), domain.IntegrationCall{ID: "1", Tool: "crm.push"})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", res.Result)

	res, err = r.Execute(context.Background(), domain.IntegrationCall{ID: "2", Tool: "echo", Args: map[string]any{"a": "b"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "b"}, res.Result)
	assert.Equal(t, []string{"crm.push"}, next.calls)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry(WithBuiltins())
	r.Register("zeta", echo)
	assert.Equal(t, []string{"echo", "now", "sleep", "zeta"}, r.Names())
}

func TestBuiltins_Sleep(t *testing.T) {
	r := NewRegistry(WithBuiltins())

	res, err := r.Execute(context.Background(), domain.IntegrationCall{Tool: "sleep", Args: map[string]any{"duration": "1ms"}})
	require.NoError(t, err)
	assert.Equal(t, "1ms", res.Result)

	res, err = r.Execute(context.Background(), domain.IntegrationCall{Tool: "sleep", Args: map[string]any{"duration": "soon"}})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = r.Execute(ctx, domain.IntegrationCall{Tool: "sleep", Args: map[string]any{"duration": "1h"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuiltins_Now(t *testing.T) {
	res, err := NewRegistry(WithBuiltins()).Execute(context.Background(), domain.IntegrationCall{Tool: "now"})
	require.NoError(t, err)
	_, perr := time.Parse(time.RFC3339, res.Result.(string))
	assert.NoError(t, perr)
}
