package editor

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/history"
	"github.com/google/uuid"
)

// Op names a graph edit.
type Op string

const (
	OpAddNode    Op = "addNode"
	OpRemoveNode Op = "removeNode"
	OpAddEdge    Op = "addEdge"
	OpRemoveEdge Op = "removeEdge"
	OpUpdateNode Op = "updateNode"
	// OpBatch applies Commands as one history entry.
	OpBatch Op = "batch"
)

// Command is one edit as sent by an editor client.
type Command struct {
	Op       Op           `json:"op"`
	Node     *domain.Node `json:"node,omitempty"`
	Edge     *domain.Edge `json:"edge,omitempty"`
	ID       string       `json:"id,omitempty"`
	Commands []Command    `json:"commands,omitempty"`
}

// Mutator converts the command into a history entry.
func (c Command) Mutator() (history.Mutator, error) {
	switch c.Op {
	case OpAddNode:
		if c.Node == nil {
			return nil, fmt.Errorf("%s: node is required", c.Op)
		}
		n := c.Node.Clone()
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if err := n.Check(); err != nil {
			return nil, err
		}
		return func(g *domain.Graph) (*domain.Graph, error) { return g.AddNode(n) }, nil

	case OpRemoveNode:
		id := c.ID
		return func(g *domain.Graph) (*domain.Graph, error) { return g.RemoveNode(id) }, nil

	case OpAddEdge:
		if c.Edge == nil {
			return nil, fmt.Errorf("%s: edge is required", c.Op)
		}
		e := *c.Edge
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		return func(g *domain.Graph) (*domain.Graph, error) { return g.AddEdge(e) }, nil

	case OpRemoveEdge:
		id := c.ID
		return func(g *domain.Graph) (*domain.Graph, error) { return g.RemoveEdge(id) }, nil

	case OpUpdateNode:
		if c.Node == nil {
			return nil, fmt.Errorf("%s: node is required", c.Op)
		}
		n := c.Node.Clone()
		id := c.ID
		if id == "" {
			id = n.ID
		}
		return func(g *domain.Graph) (*domain.Graph, error) { return g.UpdateNodeData(id, n.Data) }, nil

	case OpBatch:
		steps := make([]history.Mutator, 0, len(c.Commands))
		for i, sub := range c.Commands {
			m, err := sub.Mutator()
			if err != nil {
				return nil, fmt.Errorf("batch[%d]: %w", i, err)
			}
			steps = append(steps, m)
		}
		return func(g *domain.Graph) (*domain.Graph, error) {
			var err error
			for _, step := range steps {
				if g, err = step(g); err != nil {
					return nil, err
				}
			}
			return g, nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown editor op %q", c.Op)
	}
}

// DecodeCommand parses a command document.
func DecodeCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("invalid command: %w", err)
	}
	return c, nil
}
