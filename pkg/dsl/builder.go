package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/validator"
)

// Builder manages the graph construction.
type Builder struct {
	nodes map[string]*NodeBuilder
	order []string
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{id: id}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Build assembles the graph and validates it. Edge ids are e1, e2, ... in
// the order nodes were added and targets were declared.
func (b *Builder) Build() (*domain.Graph, error) {
	g := domain.NewGraph()
	var errs []error
	seq := 0
	for _, id := range b.order {
		nb := b.nodes[id]
		if nb.data == nil {
			errs = append(errs, fmt.Errorf("node %s: no type set", id))
			continue
		}
		errs = append(errs, nb.errs...)
		g.Nodes[id] = nb.Build()
		for _, target := range nb.targets {
			seq++
			g.Edges = append(g.Edges, domain.Edge{
				ID:     fmt.Sprintf("e%d", seq),
				Source: id,
				Target: target,
			})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := validator.Validate(g).Err(); err != nil {
		return nil, err
	}
	return g, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *domain.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
