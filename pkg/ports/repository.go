package ports

import (
	"context"

	"github.com/aretw0/inquiry/pkg/domain"
)

// Repository is the persistence service for inquiries.
type Repository interface {
	// LoadGraph returns the stored graph.
	// Returns domain.ErrInquiryNotFound if the inquiry does not exist.
	LoadGraph(ctx context.Context, inquiryID string) (*domain.Graph, error)

	// SaveGraph creates or replaces the graph of an inquiry.
	SaveGraph(ctx context.Context, inquiryID string, g *domain.Graph) error

	// AppendResponse stores a finished traversal and returns its response id.
	AppendResponse(ctx context.Context, inquiryID string, sub domain.Submission) (string, error)
}

// ResponseLister is implemented by repositories that can read back responses.
type ResponseLister interface {
	ListResponses(ctx context.Context, inquiryID string) ([]domain.Submission, error)
}
