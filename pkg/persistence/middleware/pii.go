package middleware

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
)

// DefaultPIIPatterns match e-mail addresses and phone-like digit runs.
var DefaultPIIPatterns = []string{
	`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
	`\+?\d[\d\s().\-]{7,}\d`,
}

// ErrListingUnsupported is returned by ListResponses when the wrapped
// repository cannot read responses back.
var ErrListingUnsupported = errors.New("repository does not list responses")

type piiRepository struct {
	next     ports.Repository
	patterns []*regexp.Regexp
}

// NewPIIMiddleware returns a middleware that masks matches of the patterns
// in answer text and shown text before a submission is stored. The
// respondent block is kept since it is collected on purpose.
func NewPIIMiddleware(patternStrings []string) (RepositoryMiddleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.Repository) ports.Repository {
		return &piiRepository{next: next, patterns: patterns}
	}, nil
}

func (r *piiRepository) LoadGraph(ctx context.Context, inquiryID string) (*domain.Graph, error) {
	return r.next.LoadGraph(ctx, inquiryID)
}

func (r *piiRepository) SaveGraph(ctx context.Context, inquiryID string, g *domain.Graph) error {
	return r.next.SaveGraph(ctx, inquiryID, g)
}

func (r *piiRepository) AppendResponse(ctx context.Context, inquiryID string, sub domain.Submission) (string, error) {
	// Visits are copied so the caller's history is left untouched.
	visits := make([]domain.NodeVisit, len(sub.Visits))
	for i, v := range sub.Visits {
		v.Shown = r.mask(v.Shown)
		if v.Response != nil {
			resp := *v.Response
			resp.Text = r.mask(resp.Text)
			v.Response = &resp
		}
		visits[i] = v
	}
	sub.Visits = visits
	return r.next.AppendResponse(ctx, inquiryID, sub)
}

func (r *piiRepository) ListResponses(ctx context.Context, inquiryID string) ([]domain.Submission, error) {
	lister, ok := r.next.(ports.ResponseLister)
	if !ok {
		return nil, ErrListingUnsupported
	}
	return lister.ListResponses(ctx, inquiryID)
}

func (r *piiRepository) mask(s string) string {
	for _, p := range r.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}
