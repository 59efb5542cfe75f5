package observability_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_RecordMetrics(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks(nil)
	ctx := context.Background()

	hooks.OnNodeEnter(ctx, &domain.NodeEvent{NodeID: "q1", NodeType: domain.NodeTypeQuestion})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{NodeID: "q2", NodeType: domain.NodeTypeQuestion})
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{NodeID: "end", NodeType: domain.NodeTypeEnd})
	hooks.OnFailure(ctx, &domain.FailureEvent{Kind: "routing", Cause: "no edge"})
	hooks.OnResolve(ctx, &domain.ResolveEvent{Kind: "condition", Duration: 20 * time.Millisecond})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("question")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("end")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TraversalErrors.WithLabelValues("routing")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ReasoningDuration))
}

func TestQueueDepth_SumsSessions(t *testing.T) {
	m := observability.NewMetrics()
	m.ObserveQueueDepth("a", 3)
	m.ObserveQueueDepth("b", 2)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.QueueDepth))

	m.ObserveQueueDepth("a", 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueueDepth))
}

func TestHandler_ServesMetrics(t *testing.T) {
	m := observability.NewMetrics()
	m.SessionCompleted(domain.Submission{})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "inquiry_sessions_completed_total 1")
}
