package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/inquiry/pkg/domain"
)

var (
	errNoReasoner = errors.New("no reasoning service configured")
	errNoRunner   = errors.New("no integration runner configured")
)

// walk carries one traversal step: it moves through nodes that need no
// respondent input until the state leaves PhaseAwaitingEntry.
type walk struct {
	e      *Engine
	ctx    context.Context
	state  *domain.TraversalState
	events []domain.DisplayEvent
	hops   int
}

func (e *Engine) newWalk(ctx context.Context, state *domain.TraversalState) *walk {
	return &walk{e: e, ctx: ctx, state: state}
}

// run is iterative: cycles in the graph never grow the stack.
// The only error it returns is the cancellation of its context.
func (w *walk) run() error {
	for w.state.Phase == domain.PhaseAwaitingEntry {
		if err := w.ctx.Err(); err != nil {
			return err
		}

		node, ok := w.e.graph.Node(w.state.CurrentNodeID)
		if !ok {
			w.fail(&domain.RoutingError{NodeID: w.state.CurrentNodeID, Reason: "node does not exist"})
			return nil
		}
		if node.Type != domain.NodeTypeCondition {
			w.hops = 0
		}
		w.e.emitNodeEnter(w.ctx, w.state.SessionID, node)

		var err error
		switch d := node.Data.(type) {
		case domain.StartData:
			w.advance(node)
		case domain.EndData:
			w.terminate(node)
		case domain.InformationData:
			err = w.inform(node, d)
		case domain.QuestionData:
			err = w.ask(node, d)
		case domain.ConditionData:
			err = w.decide(node, d)
		case domain.IntegrationData:
			err = w.integrate(node, d)
		default:
			w.fail(&domain.RoutingError{NodeID: node.ID, Reason: fmt.Sprintf("unsupported node type %q", node.Type)})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// advance follows the first outgoing edge of node.
func (w *walk) advance(node domain.Node) bool {
	edges := w.e.graph.Outgoing(node.ID)
	if len(edges) == 0 {
		w.fail(&domain.RoutingError{NodeID: node.ID, Reason: "node has no outgoing edge"})
		return false
	}
	w.moveTo(node, edges[0].Target)
	return true
}

func (w *walk) moveTo(from domain.Node, target string) {
	w.e.emitNodeLeave(w.ctx, w.state.SessionID, from)
	w.state.Phase = domain.PhaseAdvancing
	w.state.CurrentNodeID = target
	w.state.Phase = domain.PhaseAwaitingEntry
}

func (w *walk) terminate(node domain.Node) {
	w.state.History = append(w.state.History, domain.NodeVisit{
		NodeID:    node.ID,
		NodeType:  node.Type,
		EnteredAt: w.e.now(),
	})
	w.state.Phase = domain.PhaseTerminated
	w.state.Loading = false
	w.e.logger.Debug("traversal terminated", "session_id", w.state.SessionID, "node_id", node.ID)
	w.e.emitTerminate(w.ctx, w.state.SessionID, node)
}

func (w *walk) inform(node domain.Node, d domain.InformationData) error {
	entered := w.e.now()
	text, ok, err := w.text(node, d.Text, d.DynamicGeneration)
	if err != nil || !ok {
		return err
	}

	w.state.History = append(w.state.History, domain.NodeVisit{
		NodeID:    node.ID,
		NodeType:  node.Type,
		EnteredAt: entered,
		Shown:     text,
	})
	w.emit(domain.DisplayEvent{Sender: domain.SenderBot, Kind: domain.KindText, Content: text, NodeID: node.ID})
	w.narrate(text)
	w.advance(node)
	return nil
}

func (w *walk) ask(node domain.Node, d domain.QuestionData) error {
	entered := w.e.now()
	prompt, ok, err := w.text(node, d.Prompt, d.DynamicGeneration)
	if err != nil || !ok {
		return err
	}

	w.state.Phase = domain.PhaseAwaitingResponse
	w.state.EnteredAt = entered
	w.state.Prompt = prompt
	w.emit(domain.DisplayEvent{
		Sender:     domain.SenderBot,
		Kind:       domain.KindText,
		Content:    prompt,
		NodeID:     node.ID,
		Options:    append([]string(nil), d.Options...),
		AnswerKind: d.AnswerKind,
	})
	w.narrate(prompt)
	return nil
}

func (w *walk) decide(node domain.Node, d domain.ConditionData) error {
	w.hops++
	if w.hops > w.e.maxHops {
		w.fail(&domain.RoutingError{
			NodeID: node.ID,
			Reason: fmt.Sprintf("loop protection: %d consecutive condition hops without reaching another node", w.e.maxHops),
		})
		return nil
	}
	if w.e.reasoner == nil {
		w.fail(&domain.ServiceError{Service: "reasoning", Op: "resolve condition", Err: errNoReasoner})
		return nil
	}

	entered := w.e.now()
	transcript := w.state.Transcript()
	target, ok, err := w.reason(node, "condition", func(ctx context.Context) (string, error) {
		return w.e.reasoner.ResolveCondition(ctx, node.ID, d.Instructions, transcript)
	})
	if err != nil || !ok {
		return err
	}

	matched := false
	for _, edge := range w.e.graph.Outgoing(node.ID) {
		if edge.Target == target {
			matched = true
			break
		}
	}
	if !matched {
		w.fail(&domain.RoutingError{NodeID: node.ID, Target: target, Reason: "no outgoing edge leads to the resolved target"})
		return nil
	}

	w.state.History = append(w.state.History, domain.NodeVisit{
		NodeID:    node.ID,
		NodeType:  node.Type,
		EnteredAt: entered,
		Result:    target,
	})
	w.moveTo(node, target)
	return nil
}

func (w *walk) integrate(node domain.Node, d domain.IntegrationData) error {
	if w.e.integrations == nil {
		w.fail(&domain.ServiceError{Service: "integration", Op: d.Tool, Err: errNoRunner})
		return nil
	}

	entered := w.e.now()
	call := domain.IntegrationCall{ID: w.e.newID(), NodeID: node.ID, Tool: d.Tool, Args: d.Args}
	res, err := w.e.integrations.Execute(w.ctx, call)
	if err != nil {
		if w.ctx.Err() != nil {
			return w.ctx.Err()
		}
		w.fail(&domain.ServiceError{Service: "integration", Op: d.Tool, Err: err})
		return nil
	}
	if res.IsError {
		w.fail(&domain.ServiceError{Service: "integration", Op: d.Tool, Err: errors.New(res.Error)})
		return nil
	}

	w.state.History = append(w.state.History, domain.NodeVisit{
		NodeID:    node.ID,
		NodeType:  node.Type,
		EnteredAt: entered,
		Result:    res.Result,
	})
	w.advance(node)
	return nil
}

// text returns literal copy, or the generated text when dynamic is set.
// ok is false when the traversal failed.
func (w *walk) text(node domain.Node, literal string, dynamic bool) (string, bool, error) {
	if !dynamic {
		return literal, true, nil
	}
	if w.e.reasoner == nil {
		w.fail(&domain.ServiceError{Service: "reasoning", Op: "generate text", Err: errNoReasoner})
		return "", false, nil
	}
	transcript := w.state.Transcript()
	return w.reason(node, "generate", func(ctx context.Context) (string, error) {
		return w.e.reasoner.GenerateText(ctx, node.ID, literal, transcript)
	})
}

// reason runs a reasoning call in the resolving phase.
// Failures other than cancellation become a service error on the state.
func (w *walk) reason(node domain.Node, kind string, call func(context.Context) (string, error)) (string, bool, error) {
	w.state.Phase = domain.PhaseResolving
	w.state.Loading = true
	w.observe()

	started := w.e.now()
	out, err := call(w.ctx)
	w.e.emitResolve(w.ctx, w.state.SessionID, node.ID, kind, w.e.now().Sub(started), err != nil)

	w.state.Loading = false
	if err != nil {
		if w.ctx.Err() != nil {
			return "", false, w.ctx.Err()
		}
		w.fail(&domain.ServiceError{Service: "reasoning", Op: kind, Err: err})
		return "", false, nil
	}
	w.state.Phase = domain.PhaseAwaitingEntry
	return out, true, nil
}

func (w *walk) observe() {
	if w.e.observer != nil {
		w.e.observer(w.ctx, w.state.Clone())
	}
}

func (w *walk) emit(ev domain.DisplayEvent) {
	ev.ID = w.e.newID()
	if ev.Kind == "" {
		ev.Kind = domain.KindText
	}
	w.events = append(w.events, ev)
}

// narrate hands text to the narrator. Narration never affects the traversal.
func (w *walk) narrate(text string) {
	if w.e.narrator == nil || text == "" {
		return
	}
	if err := w.e.narrator.Speak(w.ctx, text); err != nil {
		w.e.logger.Warn("narration failed", "session_id", w.state.SessionID, "error", err)
	}
}

// fail moves the traversal to the errored sink.
func (w *walk) fail(err error) {
	kind := "routing"
	var svc *domain.ServiceError
	if errors.As(err, &svc) {
		kind = "service"
	}

	w.state.Phase = domain.PhaseErrored
	w.state.Error = true
	w.state.Loading = false
	w.state.Failure = err.Error()

	w.e.logger.Warn("traversal failed",
		"session_id", w.state.SessionID,
		"node_id", w.state.CurrentNodeID,
		"kind", kind,
		"error", err)
	w.e.emitFailure(w.ctx, w.state.SessionID, w.state.CurrentNodeID, kind, err.Error())
}
