package observability

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the inquiry collectors.
type Metrics struct {
	registry *prometheus.Registry

	NodeVisits        *prometheus.CounterVec
	TraversalErrors   *prometheus.CounterVec
	ReasoningDuration *prometheus.HistogramVec
	QueueDepth        prometheus.Gauge
	SessionsCompleted prometheus.Counter

	mu     sync.Mutex
	depths map[string]int
}

// NewMetrics creates and registers the collectors on a fresh registry,
// together with the Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquiry_node_visits_total",
			Help: "Total number of node visits by node type",
		}, []string{"type"}),
		TraversalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inquiry_traversal_errors_total",
			Help: "Traversals that ended in the errored state, by kind",
		}, []string{"kind"}),
		ReasoningDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inquiry_reasoning_duration_seconds",
			Help:    "Duration of reasoning service round trips",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"kind"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inquiry_pacing_queue_depth",
			Help: "Display events waiting in pacing queues across sessions",
		}),
		SessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inquiry_sessions_completed_total",
			Help: "Sessions whose responses were stored",
		}),
		depths: make(map[string]int),
	}
	m.registry.MustRegister(
		m.NodeVisits,
		m.TraversalErrors,
		m.ReasoningDuration,
		m.QueueDepth,
		m.SessionsCompleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record metrics and log each event.
// A nil logger disables logging.
func (m *Metrics) Hooks(logger *slog.Logger) domain.LifecycleHooks {
	if logger == nil {
		logger = logging.NewNop()
	}
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "session_id", e.SessionID, "node_id", e.NodeID, "type", e.NodeType)
			m.NodeVisits.WithLabelValues(string(e.NodeType)).Inc()
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave", "session_id", e.SessionID, "node_id", e.NodeID)
		},
		OnResolve: func(ctx context.Context, e *domain.ResolveEvent) {
			logger.DebugContext(ctx, "resolve",
				"session_id", e.SessionID,
				"node_id", e.NodeID,
				"kind", e.Kind,
				"duration", e.Duration,
				"is_error", e.IsError)
			m.ReasoningDuration.WithLabelValues(e.Kind).Observe(e.Duration.Seconds())
		},
		OnTerminate: func(ctx context.Context, e *domain.NodeEvent) {
			logger.InfoContext(ctx, "terminate", "session_id", e.SessionID, "node_id", e.NodeID)
		},
		OnFailure: func(ctx context.Context, e *domain.FailureEvent) {
			logger.WarnContext(ctx, "traversal failed",
				"session_id", e.SessionID,
				"node_id", e.NodeID,
				"kind", e.Kind,
				"cause", e.Cause)
			m.TraversalErrors.WithLabelValues(e.Kind).Inc()
		},
	}
}

// ObserveQueueDepth records the depth of one session's queue. The gauge is the sum over sessions.
func (m *Metrics) ObserveQueueDepth(sessionID string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if depth <= 0 {
		delete(m.depths, sessionID)
	} else {
		m.depths[sessionID] = depth
	}
	total := 0
	for _, d := range m.depths {
		total += d
	}
	m.QueueDepth.Set(float64(total))
}

// SessionCompleted counts a stored submission.
func (m *Metrics) SessionCompleted(domain.Submission) {
	m.SessionsCompleted.Inc()
}
