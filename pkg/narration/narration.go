// Package narration adapts text-to-speech collaborators to the engine.
package narration

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/ports"
)

// Async makes a narrator fire-and-forget: Speak returns at once and the
// wrapped narrator runs on a single background worker, in order.
// When the backlog is full, new text is dropped.
type Async struct {
	inner   ports.Narrator
	logger  *slog.Logger
	timeout time.Duration

	texts chan string
	once  sync.Once
	wg    sync.WaitGroup
}

// AsyncOption configures Async.
type AsyncOption func(*Async)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) AsyncOption {
	return func(a *Async) {
		a.logger = logger
	}
}

// WithTimeout bounds each call to the wrapped narrator.
func WithTimeout(d time.Duration) AsyncOption {
	return func(a *Async) {
		a.timeout = d
	}
}

// WithBacklog sets how many texts may wait for the worker.
func WithBacklog(n int) AsyncOption {
	return func(a *Async) {
		a.texts = make(chan string, n)
	}
}

// NewAsync starts the worker. Call Close to stop it.
func NewAsync(inner ports.Narrator, opts ...AsyncOption) *Async {
	a := &Async{
		inner:   inner,
		logger:  logging.NewNop(),
		timeout: 30 * time.Second,
		texts:   make(chan string, 32),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

// Speak queues text. It never fails.
func (a *Async) Speak(_ context.Context, text string) error {
	select {
	case a.texts <- text:
	default:
		a.logger.Warn("narration backlog full, dropping text", "chars", len(text))
	}
	return nil
}

// Close stops accepting text and waits for the backlog to drain.
func (a *Async) Close() {
	a.once.Do(func() {
		close(a.texts)
	})
	a.wg.Wait()
}

func (a *Async) loop() {
	defer a.wg.Done()
	for text := range a.texts {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.inner.Speak(ctx, text); err != nil {
			a.logger.Warn("narration failed", "error", err)
		}
		cancel()
	}
}

// Log is a narrator that writes the text it would speak to a logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a logging narrator.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Speak(ctx context.Context, text string) error {
	l.logger.InfoContext(ctx, "narrate", "text", text)
	return nil
}
