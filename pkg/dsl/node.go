package dsl

import (
	"fmt"

	"github.com/aretw0/inquiry/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
// Misuse, such as options on a non-question node, surfaces from Builder.Build.
type NodeBuilder struct {
	id      string
	data    domain.NodeData
	targets []string
	errs    []error
}

// Start marks the node as the entry point.
func (n *NodeBuilder) Start(label string) *NodeBuilder {
	n.data = domain.StartData{Label: label}
	return n
}

// End marks the node as a terminal node (end of the conversation).
func (n *NodeBuilder) End(label string) *NodeBuilder {
	n.data = domain.EndData{Label: label}
	n.targets = nil
	return n
}

// Info displays text and continues (soft step).
func (n *NodeBuilder) Info(text string) *NodeBuilder {
	n.data = domain.InformationData{Text: text}
	return n
}

// Question asks an open-ended question (hard step).
func (n *NodeBuilder) Question(prompt string) *NodeBuilder {
	n.data = domain.QuestionData{Prompt: prompt, AnswerKind: domain.AnswerOpenEnded}
	return n
}

// Rating turns a question into a single-choice question.
func (n *NodeBuilder) Rating(options ...string) *NodeBuilder {
	return n.withOptions(domain.AnswerRatingSingle, options)
}

// MultiRating turns a question into a multiple-choice question.
func (n *NodeBuilder) MultiRating(options ...string) *NodeBuilder {
	return n.withOptions(domain.AnswerRatingMulti, options)
}

func (n *NodeBuilder) withOptions(kind domain.AnswerKind, options []string) *NodeBuilder {
	q, ok := n.data.(domain.QuestionData)
	if !ok {
		n.errs = append(n.errs, fmt.Errorf("node %s: options apply to questions only", n.id))
		return n
	}
	q.AnswerKind = kind
	q.Options = append([]string(nil), options...)
	n.data = q
	return n
}

// Generated makes the text of an information or question node an
// instruction for the reasoning service instead of literal copy.
func (n *NodeBuilder) Generated() *NodeBuilder {
	switch d := n.data.(type) {
	case domain.InformationData:
		d.DynamicGeneration = true
		n.data = d
	case domain.QuestionData:
		d.DynamicGeneration = true
		n.data = d
	default:
		n.errs = append(n.errs, fmt.Errorf("node %s: only information and question nodes can be generated", n.id))
	}
	return n
}

// Condition routes using free-text instructions (silent step).
func (n *NodeBuilder) Condition(instructions string) *NodeBuilder {
	n.data = domain.ConditionData{Instructions: instructions}
	return n
}

// Integrate invokes an external tool and continues.
func (n *NodeBuilder) Integrate(tool string, args map[string]any) *NodeBuilder {
	n.data = domain.IntegrationData{Tool: tool, Args: args}
	return n
}

// Go adds edges to the targets. Conditions take several; other nodes one.
func (n *NodeBuilder) Go(targets ...string) *NodeBuilder {
	n.targets = append(n.targets, targets...)
	return n
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	return domain.NewNode(n.id, n.data)
}
