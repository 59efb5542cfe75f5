package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/history"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/aretw0/inquiry/pkg/validator"
)

// Fixer proposes a repaired graph document for a list of validation errors.
// *reasoning.Subscription satisfies it.
type Fixer interface {
	AutoFix(ctx context.Context, errs []string, document []byte) ([]byte, error)
}

// ErrNoFixer is returned by AutoFix when the session has no Fixer.
var ErrNoFixer = errors.New("auto-fix is not configured")

// Session is one author's editing session over an inquiry graph.
type Session struct {
	inquiryID string
	repo      ports.Repository
	history   *history.Manager
	autosave  *Autosaver
	fixer     Fixer
	logger    *slog.Logger

	quiet       time.Duration
	unsubscribe func()
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithFixer enables AutoFix.
func WithFixer(f Fixer) Option {
	return func(s *Session) {
		s.fixer = f
	}
}

// WithAutosaveQuiet sets the autosave quiescence window. Zero disables autosave.
func WithAutosaveQuiet(d time.Duration) Option {
	return func(s *Session) {
		s.quiet = d
	}
}

// Open loads the inquiry graph (an empty graph if it does not exist yet) and starts a session.
func Open(ctx context.Context, repo ports.Repository, inquiryID string, opts ...Option) (*Session, error) {
	g, err := repo.LoadGraph(ctx, inquiryID)
	if err != nil {
		if !errors.Is(err, domain.ErrInquiryNotFound) {
			return nil, fmt.Errorf("failed to load inquiry %s: %w", inquiryID, err)
		}
		g = domain.NewGraph()
	}
	return NewSession(repo, inquiryID, g, opts...), nil
}

// NewSession starts a session over an already loaded graph.
func NewSession(repo ports.Repository, inquiryID string, g *domain.Graph, opts ...Option) *Session {
	s := &Session{
		inquiryID: inquiryID,
		repo:      repo,
		history:   history.New(g),
		logger:    logging.NewNop(),
		quiet:     DefaultQuiet,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.quiet > 0 {
		s.autosave = NewAutosaver(s.save,
			WithQuiet(s.quiet),
			WithAutosaveLogger(s.logger.With("inquiry_id", inquiryID)))
		s.unsubscribe = s.history.Subscribe(s.autosave.Changed)
	}
	return s
}

func (s *Session) save(ctx context.Context, g *domain.Graph) error {
	return s.repo.SaveGraph(ctx, s.inquiryID, g)
}

// InquiryID returns the edited inquiry.
func (s *Session) InquiryID() string { return s.inquiryID }

// Graph returns a copy of the current graph.
func (s *Session) Graph() *domain.Graph { return s.history.Current() }

// History exposes the undo/redo manager.
func (s *Session) History() *history.Manager { return s.history }

// Apply commits a command as one history entry.
func (s *Session) Apply(cmd Command) error {
	m, err := cmd.Mutator()
	if err != nil {
		return err
	}
	return s.history.Commit(m)
}

// Undo reverts the last entry.
func (s *Session) Undo() bool { return s.history.Undo() }

// Redo re-applies the last undone entry.
func (s *Session) Redo() bool { return s.history.Redo() }

// Validate checks the current graph.
func (s *Session) Validate() validator.Report {
	return validator.Validate(s.history.Current())
}

// Publish saves the graph if it has no structural errors.
// Otherwise it returns a *domain.StructuralError and saves nothing.
func (s *Session) Publish(ctx context.Context) (validator.Report, error) {
	g := s.history.Current()
	report := validator.Validate(g)
	if err := report.Err(); err != nil {
		return report, err
	}
	if err := s.save(ctx, g); err != nil {
		return report, fmt.Errorf("publish: %w", err)
	}
	s.logger.Info("inquiry published", "inquiry_id", s.inquiryID, "nodes", len(g.Nodes))
	return report, nil
}

// AutoFix sends the current validation errors to the Fixer and commits its
// proposal as one history entry. A graph without errors is left untouched.
// The returned report describes the graph after the fix.
func (s *Session) AutoFix(ctx context.Context) (validator.Report, error) {
	current := s.history.Current()
	report := validator.Validate(current)
	if report.OK() {
		return report, nil
	}
	if s.fixer == nil {
		return report, ErrNoFixer
	}

	doc, err := domain.EncodeGraph(current)
	if err != nil {
		return report, err
	}
	proposal, err := s.fixer.AutoFix(ctx, report.Errors, doc)
	if err != nil {
		return report, fmt.Errorf("auto-fix: %w", err)
	}
	fixed, err := validator.ParseDocument(proposal)
	if err != nil {
		return report, fmt.Errorf("auto-fix returned an invalid document: %w", err)
	}
	if err := s.history.Commit(func(*domain.Graph) (*domain.Graph, error) { return fixed, nil }); err != nil {
		return report, err
	}
	after := validator.Validate(fixed)
	s.logger.Info("auto-fix applied",
		"inquiry_id", s.inquiryID,
		"errors_before", len(report.Errors),
		"errors_after", len(after.Errors))
	return after, nil
}

// Dirty reports whether an edit is waiting for autosave.
func (s *Session) Dirty() bool {
	return s.autosave != nil && s.autosave.Dirty()
}

// Flush writes any unsaved change now.
func (s *Session) Flush(ctx context.Context) error {
	if s.autosave == nil {
		return nil
	}
	return s.autosave.Flush(ctx)
}

// Close flushes pending changes and stops autosave.
func (s *Session) Close(ctx context.Context) error {
	if s.autosave == nil {
		return nil
	}
	err := s.autosave.Flush(ctx)
	s.autosave.Stop()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return err
}
