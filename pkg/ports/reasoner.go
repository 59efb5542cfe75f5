package ports

import (
	"context"

	"github.com/aretw0/inquiry/pkg/domain"
)

// Reasoner is the view of the reasoning service the traversal engine needs.
type Reasoner interface {
	// ResolveCondition returns the id of the node the instructions route to.
	ResolveCondition(ctx context.Context, nodeID, instructions string, transcript []domain.TranscriptEntry) (string, error)

	// GenerateText returns the text produced for a dynamic node.
	GenerateText(ctx context.Context, nodeID, instructions string, transcript []domain.TranscriptEntry) (string, error)
}

// Narrator speaks finalized bot text. Implementations must not block for long.
type Narrator interface {
	Speak(ctx context.Context, text string) error
}

// IntegrationRunner executes the tool behind an integration node.
// Tool-level failures are reported in the result; the error return is for runner failures.
type IntegrationRunner interface {
	Execute(ctx context.Context, call domain.IntegrationCall) (domain.IntegrationResult, error)
}
