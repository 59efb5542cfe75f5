package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
)

// DefaultQuiet is how long edits must pause before an automatic save.
const DefaultQuiet = 1500 * time.Millisecond

// SaveFunc persists a graph.
type SaveFunc func(ctx context.Context, g *domain.Graph) error

// Autosaver saves the latest graph after a period with no changes.
// Failed saves are logged and retried on the next change or Flush; the
// pending graph is kept.
type Autosaver struct {
	save    SaveFunc
	quiet   time.Duration
	logger  *slog.Logger
	onSaved func(error)

	mu      sync.Mutex
	pending *domain.Graph
	timer   *time.Timer
	stopped bool
	saving  sync.Mutex
}

// AutosaveOption configures an Autosaver.
type AutosaveOption func(*Autosaver)

// WithQuiet sets the quiescence window.
func WithQuiet(d time.Duration) AutosaveOption {
	return func(a *Autosaver) {
		if d > 0 {
			a.quiet = d
		}
	}
}

// WithAutosaveLogger sets the logger for save failures.
func WithAutosaveLogger(logger *slog.Logger) AutosaveOption {
	return func(a *Autosaver) {
		a.logger = logger
	}
}

// WithSaveObserver is called after every save attempt.
func WithSaveObserver(fn func(error)) AutosaveOption {
	return func(a *Autosaver) {
		a.onSaved = fn
	}
}

// NewAutosaver creates an idle autosaver.
func NewAutosaver(save SaveFunc, opts ...AutosaveOption) *Autosaver {
	a := &Autosaver{
		save:   save,
		quiet:  DefaultQuiet,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Changed records g as the graph to save and restarts the quiet timer.
func (a *Autosaver) Changed(g *domain.Graph) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.pending = g
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.quiet, func() {
		_ = a.Flush(context.Background())
	})
}

// Dirty reports whether a change has not been saved yet.
func (a *Autosaver) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Flush saves the pending graph now. It is a no-op when nothing is pending.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.saving.Lock()
	defer a.saving.Unlock()

	a.mu.Lock()
	g := a.pending
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	if g == nil {
		return nil
	}

	err := a.save(ctx, g)
	if err != nil {
		a.logger.Warn("autosave failed", "err", err)
		a.mu.Lock()
		// Keep the failed graph unless a newer change arrived meanwhile.
		if a.pending == nil {
			a.pending = g
		}
		a.mu.Unlock()
	} else {
		a.logger.Debug("autosaved", "nodes", len(g.Nodes))
	}
	if a.onSaved != nil {
		a.onSaved(err)
	}
	return err
}

// Stop cancels any scheduled save. Pending changes are not written.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
