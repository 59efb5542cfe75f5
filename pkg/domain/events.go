package domain

import (
	"context"
	"time"
)

// Sender identifies who authored a display event.
type Sender string

const (
	SenderBot  Sender = "bot"
	SenderUser Sender = "user"
)

// ContentKind is the visual form of a display event.
type ContentKind string

const (
	KindText  ContentKind = "text"
	KindChart ContentKind = "chart"
	KindImage ContentKind = "image"
)

// DisplayEvent is content the traversal wants shown in the chat.
type DisplayEvent struct {
	ID      string      `json:"id"`
	Sender  Sender      `json:"sender"`
	Kind    ContentKind `json:"kind"`
	Content string      `json:"content"`
	NodeID  string      `json:"nodeId,omitempty"`
	// Options lists rating labels for a question prompt.
	Options    []string   `json:"options,omitempty"`
	AnswerKind AnswerKind `json:"answerKind,omitempty"`
}

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventNodeEnter   EventType = "node_enter"
	EventNodeLeave   EventType = "node_leave"
	EventResolve     EventType = "resolve"
	EventTerminate   EventType = "terminate"
	EventFailure     EventType = "failure"
	EventIntegration EventType = "integration"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
}

// ResolveEvent reports a completed reasoning round trip.
type ResolveEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Kind     string        `json:"kind"` // "condition" or "generate"
	Duration time.Duration `json:"duration"`
	IsError  bool          `json:"is_error,omitempty"`
}

// FailureEvent reports a traversal that moved to the errored or not-found state.
type FailureEvent struct {
	EventBase
	NodeID string `json:"node_id,omitempty"`
	Kind   string `json:"kind"` // "routing", "service", "not_found"
	Cause  string `json:"cause"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
	OnResolve   func(context.Context, *ResolveEvent)
	OnTerminate func(context.Context, *NodeEvent)
	OnFailure   func(context.Context, *FailureEvent)
}
