package inquiry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/internal/runtime"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/aretw0/inquiry/pkg/validator"
	"github.com/google/uuid"
)

// Version is set at build time with -ldflags "-X github.com/aretw0/inquiry.Version=...".
var Version = "dev"

// Engine is the high-level entry point for walking an inquiry.
// It wraps the internal runtime and holds no session state.
type Engine struct {
	runtime *runtime.Engine
	graph   *domain.Graph
	logger  *slog.Logger

	// Name identifies the inquiry; it becomes the InquiryID of new sessions.
	Name string

	hooks       domain.LifecycleHooks
	runtimeOpts []runtime.Option
}

// Option configures the Engine.
type Option func(*Engine)

// WithName overrides the inquiry name.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithNarrator hands finalized bot text to a narration service.
func WithNarrator(n ports.Narrator) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithNarrator(n))
	}
}

// WithIntegrationRunner sets the runner used by integration nodes.
func WithIntegrationRunner(r ports.IntegrationRunner) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithIntegrationRunner(r))
	}
}

// WithMaxConditionHops caps consecutive condition nodes in one step.
func WithMaxConditionHops(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxConditionHops(n))
	}
}

// WithStateObserver receives intermediate states such as the loading state.
func WithStateObserver(fn func(context.Context, *domain.TraversalState)) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithStateObserver(fn))
	}
}

// New creates an engine for a graph. Graphs that fail structural validation
// are rejected with a *domain.StructuralError.
// The reasoner may be nil when the graph has no condition or dynamic nodes.
func New(g *domain.Graph, reasoner ports.Reasoner, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if err := validator.Validate(g).Err(); err != nil {
		return nil, err
	}

	eng := &Engine{graph: g.Clone()}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("inquiry", eng.Name)
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	eng.runtime = runtime.NewEngine(eng.graph, reasoner, runtimeOpts...)
	return eng, nil
}

// Load reads a graph document from disk and creates an engine for it.
// The inquiry is named after the file unless WithName is given.
func Load(path string, reasoner ports.Reasoner, opts ...Option) (*Engine, error) {
	g, err := LoadGraph(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return New(g, reasoner, append([]Option{WithName(name)}, opts...)...)
}

// LoadGraph reads and shape-checks a graph document without validating its structure.
func LoadGraph(path string) (*domain.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	g, err := validator.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Graph returns a copy of the graph being walked.
func (e *Engine) Graph() *domain.Graph {
	return e.graph.Clone()
}

// Start creates an idle session. An empty sessionID gets a generated one.
func (e *Engine) Start(sessionID string) *domain.TraversalState {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return domain.NewTraversalState(e.Name, sessionID)
}

// Begin records the respondent and walks to the first question or the end.
func (e *Engine) Begin(ctx context.Context, state *domain.TraversalState, who domain.Respondent) (*domain.TraversalState, []domain.DisplayEvent, error) {
	return e.runtime.Begin(ctx, state, who)
}

// Submit answers the pending question and walks on.
func (e *Engine) Submit(ctx context.Context, state *domain.TraversalState, resp domain.Response) (*domain.TraversalState, []domain.DisplayEvent, error) {
	return e.runtime.Submit(ctx, state, resp)
}

// Question returns the question a state is waiting on.
func (e *Engine) Question(state *domain.TraversalState) (domain.QuestionData, bool) {
	if state == nil || state.Phase != domain.PhaseAwaitingResponse {
		return domain.QuestionData{}, false
	}
	n, ok := e.graph.Node(state.CurrentNodeID)
	if !ok {
		return domain.QuestionData{}, false
	}
	q, ok := n.Data.(domain.QuestionData)
	return q, ok
}
