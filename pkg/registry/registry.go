// Package registry runs integration tools implemented as Go functions.
// Calls for tools it does not know are handed to a fallback runner,
// usually the process adapter.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
)

// ErrToolNotFound is returned when neither the registry nor the fallback knows a tool.
var ErrToolNotFound = errors.New("tool not found")

// ToolFunction defines the signature for a tool implementation.
// It receives a context and a map of arguments, and returns a result or error.
type ToolFunction func(ctx context.Context, args map[string]any) (any, error)

// Registry manages the available tools.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]ToolFunction
	fallback ports.IntegrationRunner
}

// Option configures a Registry.
type Option func(*Registry)

// WithFallback delegates unknown tools to next.
func WithFallback(next ports.IntegrationRunner) Option {
	return func(r *Registry) { r.fallback = next }
}

// WithBuiltins registers the built-in tools.
func WithBuiltins() Option {
	return func(r *Registry) {
		for name, fn := range Builtins() {
			r.tools[name] = fn
		}
	}
}

// NewRegistry creates a new registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{tools: make(map[string]ToolFunction)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool to the registry.
// If a tool with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn ToolFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

// Names lists the registered tools, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute runs the tool named by call. Tool failures are reported in the
// result with IsError set; the error return is reserved for unknown tools
// and cancellation.
func (r *Registry) Execute(ctx context.Context, call domain.IntegrationCall) (domain.IntegrationResult, error) {
	r.mu.RLock()
	fn, ok := r.tools[call.Tool]
	r.mu.RUnlock()

	if !ok {
		if r.fallback != nil {
			return r.fallback.Execute(ctx, call)
		}
		return domain.IntegrationResult{ID: call.ID}, fmt.Errorf("%w: %s", ErrToolNotFound, call.Tool)
	}

	out, err := fn(ctx, call.Args)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.IntegrationResult{ID: call.ID}, ctxErr
	}
	if err != nil {
		return domain.IntegrationResult{ID: call.ID, IsError: true, Error: err.Error()}, nil
	}
	return domain.IntegrationResult{ID: call.ID, Result: out}, nil
}
