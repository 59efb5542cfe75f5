package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/google/uuid"
)

// Repository implements ports.Repository in memory.
// Safe for concurrent use.
type Repository struct {
	mu        sync.RWMutex
	graphs    map[string]*domain.Graph
	responses map[string][]domain.Submission
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		graphs:    make(map[string]*domain.Graph),
		responses: make(map[string][]domain.Submission),
	}
}

// LoadGraph returns a copy of the stored graph.
func (r *Repository) LoadGraph(ctx context.Context, inquiryID string) (*domain.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.graphs[inquiryID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInquiryNotFound, inquiryID)
	}
	return g.Clone(), nil
}

// SaveGraph stores a copy of the graph so later edits by the caller do not leak in.
func (r *Repository) SaveGraph(ctx context.Context, inquiryID string, g *domain.Graph) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[inquiryID] = g.Clone()
	return nil
}

// AppendResponse stores the submission under a new id.
func (r *Repository) AppendResponse(ctx context.Context, inquiryID string, sub domain.Submission) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.graphs[inquiryID]; !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrInquiryNotFound, inquiryID)
	}
	sub.ID = uuid.NewString()
	sub.InquiryID = inquiryID
	sub.Visits = append([]domain.NodeVisit(nil), sub.Visits...)
	r.responses[inquiryID] = append(r.responses[inquiryID], sub)
	return sub.ID, nil
}

// ListResponses returns the submissions of an inquiry in append order.
func (r *Repository) ListResponses(ctx context.Context, inquiryID string) ([]domain.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Submission(nil), r.responses[inquiryID]...), nil
}

// Inquiries lists the stored inquiry ids.
func (r *Repository) Inquiries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	return ids
}
