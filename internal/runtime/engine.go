package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/google/uuid"
)

// DefaultMaxConditionHops is the number of consecutive condition nodes a
// traversal may pass through before it is stopped as a routing loop.
const DefaultMaxConditionHops = 8

// Engine walks an inquiry graph for respondent sessions.
// It holds no session state: every operation takes a state and returns the next one.
type Engine struct {
	graph        *domain.Graph
	reasoner     ports.Reasoner
	narrator     ports.Narrator
	integrations ports.IntegrationRunner

	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	observer func(context.Context, *domain.TraversalState)
	maxHops  int
	now      func() time.Time
	newID    func() string
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithNarrator enables narration of finalized bot text.
func WithNarrator(n ports.Narrator) Option {
	return func(e *Engine) {
		e.narrator = n
	}
}

// WithIntegrationRunner sets the runner for integration nodes.
func WithIntegrationRunner(r ports.IntegrationRunner) Option {
	return func(e *Engine) {
		e.integrations = r
	}
}

// WithMaxConditionHops overrides the loop protection cap.
func WithMaxConditionHops(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxHops = n
		}
	}
}

// WithStateObserver receives intermediate states, such as the loading state
// while the reasoning service is working.
func WithStateObserver(fn func(context.Context, *domain.TraversalState)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine for a graph. The reasoner may be nil for graphs
// without condition or dynamic nodes.
func NewEngine(graph *domain.Graph, reasoner ports.Reasoner, opts ...Option) *Engine {
	e := &Engine{
		graph:    graph,
		reasoner: reasoner,
		logger:   logging.NewNop(),
		maxHops:  DefaultMaxConditionHops,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the graph the engine walks.
func (e *Engine) Graph() *domain.Graph {
	return e.graph
}

// Reasoner returns the reasoner the engine was built with, or nil.
func (e *Engine) Reasoner() ports.Reasoner {
	return e.reasoner
}

// ErrAlreadyStarted is returned by Begin on a state that left the idle phase.
var ErrAlreadyStarted = errors.New("traversal already started")

// Begin records the respondent and walks from the start node until the
// traversal needs input or ends.
// Invalid respondent details return ErrRespondentDetails and leave the state idle.
func (e *Engine) Begin(ctx context.Context, state *domain.TraversalState, who domain.Respondent) (*domain.TraversalState, []domain.DisplayEvent, error) {
	if state == nil {
		return nil, nil, fmt.Errorf("begin: nil state")
	}
	if state.Phase.Final() {
		return nil, nil, domain.ErrTerminated
	}
	if state.Phase != domain.PhaseIdle {
		return nil, nil, ErrAlreadyStarted
	}
	clean, err := checkRespondent(who)
	if err != nil {
		return nil, nil, err
	}

	next := state.Clone()
	next.Respondent = &clean

	start, err := e.graph.Start()
	if err != nil {
		w := e.newWalk(ctx, next)
		w.fail(&domain.RoutingError{Reason: err.Error()})
		return w.state, w.events, nil
	}

	next.Phase = domain.PhaseAwaitingEntry
	next.CurrentNodeID = start.ID
	return e.walk(ctx, next)
}

// Submit answers the pending question and walks on.
func (e *Engine) Submit(ctx context.Context, state *domain.TraversalState, resp domain.Response) (*domain.TraversalState, []domain.DisplayEvent, error) {
	if state == nil {
		return nil, nil, fmt.Errorf("submit: nil state")
	}
	if state.Phase.Final() {
		return nil, nil, domain.ErrTerminated
	}
	if state.Phase != domain.PhaseAwaitingResponse {
		return nil, nil, domain.ErrNotAwaitingResponse
	}

	node, ok := e.graph.Node(state.CurrentNodeID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, state.CurrentNodeID)
	}
	q, ok := node.Data.(domain.QuestionData)
	if !ok {
		return nil, nil, fmt.Errorf("node '%s' is %s, not a question: %w", node.ID, node.Type, domain.ErrNotAwaitingResponse)
	}
	if err := checkResponse(q, resp); err != nil {
		return nil, nil, err
	}

	next := state.Clone()
	answer := resp
	answer.SelectedRatings = append([]string(nil), resp.SelectedRatings...)
	next.History = append(next.History, domain.NodeVisit{
		NodeID:    node.ID,
		NodeType:  node.Type,
		EnteredAt: state.EnteredAt,
		Shown:     state.Prompt,
		Response:  &answer,
	})
	next.Prompt = ""
	next.EnteredAt = time.Time{}

	w := e.newWalk(ctx, next)
	w.emit(domain.DisplayEvent{
		Sender:  domain.SenderUser,
		Kind:    domain.KindText,
		Content: answer.String(),
		NodeID:  node.ID,
	})
	if !w.advance(node) {
		return w.state, w.events, nil
	}
	if err := w.run(); err != nil {
		return nil, nil, err
	}
	return w.state, w.events, nil
}

// NotFound returns the terminal state of a session whose inquiry does not exist.
func NotFound(inquiryID, sessionID string) *domain.TraversalState {
	s := domain.NewTraversalState(inquiryID, sessionID)
	s.Phase = domain.PhaseErrored
	s.NotFound = true
	s.Failure = fmt.Sprintf("%v: %s", domain.ErrInquiryNotFound, inquiryID)
	return s
}

func (e *Engine) walk(ctx context.Context, state *domain.TraversalState) (*domain.TraversalState, []domain.DisplayEvent, error) {
	w := e.newWalk(ctx, state)
	if err := w.run(); err != nil {
		return nil, nil, err
	}
	return w.state, w.events, nil
}
