package runtime

import (
	"context"
	"time"

	"github.com/aretw0/inquiry/pkg/domain"
)

func (e *Engine) emitNodeEnter(ctx context.Context, sessionID string, node domain.Node) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeEnter, SessionID: sessionID},
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, sessionID string, node domain.Node) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeLeave, SessionID: sessionID},
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (e *Engine) emitResolve(ctx context.Context, sessionID, nodeID, kind string, d time.Duration, failed bool) {
	if e.hooks.OnResolve == nil {
		return
	}
	e.hooks.OnResolve(ctx, &domain.ResolveEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventResolve, SessionID: sessionID},
		NodeID:    nodeID,
		Kind:      kind,
		Duration:  d,
		IsError:   failed,
	})
}

func (e *Engine) emitTerminate(ctx context.Context, sessionID string, node domain.Node) {
	if e.hooks.OnTerminate == nil {
		return
	}
	e.hooks.OnTerminate(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventTerminate, SessionID: sessionID},
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (e *Engine) emitFailure(ctx context.Context, sessionID, nodeID, kind, cause string) {
	if e.hooks.OnFailure == nil {
		return
	}
	e.hooks.OnFailure(ctx, &domain.FailureEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventFailure, SessionID: sessionID},
		NodeID:    nodeID,
		Kind:      kind,
		Cause:     cause,
	})
}
