package reasoning

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aretw0/inquiry/pkg/domain"
)

// Kind is the type of work asked of the reasoning service.
type Kind string

const (
	KindCondition Kind = "condition" // Pick the next node of a condition
	KindGenerate  Kind = "generate"  // Produce text for a dynamic node
	KindPredict   Kind = "predict"   // Final prediction after the inquiry ends
	KindAutoFix   Kind = "autofix"   // Repair a graph from validator errors
)

// Request is what a Transport sends to the service.
type Request struct {
	ID           string                   `json:"id"`
	SessionID    string                   `json:"sessionId"`
	Kind         Kind                     `json:"kind"`
	NodeID       string                   `json:"nodeId,omitempty"`
	Instructions string                   `json:"instructions"`
	Transcript   []domain.TranscriptEntry `json:"transcript"`

	// Document is the graph to repair (autofix only).
	Document json.RawMessage `json:"document,omitempty"`
}

// Frame is one piece of a streamed result.
type Frame struct {
	RequestID string `json:"requestId"`
	Chunk     string `json:"chunk,omitempty"`
	Target    string `json:"target,omitempty"`
	Done      bool   `json:"done,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Sink receives the frames of a request.
type Sink interface {
	Emit(f Frame) error
}

// Transport delivers a request to the service. Result frames go to sink,
// the last one with Done set. Send may block until the stream ends.
type Transport interface {
	Send(ctx context.Context, req Request, sink Sink) error
}

// Handler computes the frames of a request in-process.
type Handler interface {
	Handle(ctx context.Context, req Request, emit func(Frame)) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request, emit func(Frame)) error

func (f HandlerFunc) Handle(ctx context.Context, req Request, emit func(Frame)) error {
	return f(ctx, req, emit)
}

var (
	// ErrClosed is returned by calls on a closed subscription or client.
	ErrClosed = errors.New("reasoning subscription closed")

	// ErrNoTarget is returned when a condition result names no node.
	ErrNoTarget = errors.New("reasoning result has no target")
)

// RemoteError is an error frame reported by the service.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "reasoning service: " + e.Message
}
