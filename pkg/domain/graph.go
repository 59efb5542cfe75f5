package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Graph is an inquiry: an id-keyed node arena plus an ordered edge list.
// Operations never mutate the receiver; they return a new Graph.
type Graph struct {
	Nodes map[string]Node `json:"nodes"`
	Edges []Edge          `json:"edges"`
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]Node),
		Edges: []Edge{},
	}
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return NewGraph()
	}
	out := &Graph{
		Nodes: make(map[string]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for id, n := range g.Nodes {
		out.Nodes[id] = n.Clone()
	}
	copy(out.Edges, g.Edges)
	return out
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// NodeIDs returns all node ids in lexical order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Outgoing returns the edges leaving the node, in edge order.
func (g *Graph) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// StartNodes returns every node of type start, in lexical id order.
func (g *Graph) StartNodes() []Node {
	var out []Node
	for _, id := range g.NodeIDs() {
		if n := g.Nodes[id]; n.Type == NodeTypeStart {
			out = append(out, n)
		}
	}
	return out
}

// Start returns the unique start node.
func (g *Graph) Start() (Node, error) {
	starts := g.StartNodes()
	if len(starts) != 1 {
		return Node{}, fmt.Errorf("graph has %d start nodes, want exactly one", len(starts))
	}
	return starts[0], nil
}

// AddNode returns a graph with the node added.
func (g *Graph) AddNode(n Node) (*Graph, error) {
	if err := n.Check(); err != nil {
		return nil, err
	}
	if _, exists := g.Nodes[n.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	next := g.Clone()
	next.Nodes[n.ID] = n.Clone()
	return next, nil
}

// RemoveNode returns a graph without the node and without any incident edges.
func (g *Graph) RemoveNode(id string) (*Graph, error) {
	if _, exists := g.Nodes[id]; !exists {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	next := g.Clone()
	delete(next.Nodes, id)

	kept := next.Edges[:0]
	for _, e := range next.Edges {
		if e.Source != id && e.Target != id {
			kept = append(kept, e)
		}
	}
	next.Edges = kept
	return next, nil
}

// AddEdge returns a graph with the edge appended.
// Both endpoints must exist; edge ids are unique.
func (g *Graph) AddEdge(e Edge) (*Graph, error) {
	if e.ID == "" {
		return nil, fmt.Errorf("edge: empty id")
	}
	for _, existing := range g.Edges {
		if existing.ID == e.ID {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEdge, e.ID)
		}
	}
	if _, ok := g.Nodes[e.Source]; !ok {
		return nil, fmt.Errorf("edge %s: source %w: %s", e.ID, ErrNodeNotFound, e.Source)
	}
	if _, ok := g.Nodes[e.Target]; !ok {
		return nil, fmt.Errorf("edge %s: target %w: %s", e.ID, ErrNodeNotFound, e.Target)
	}
	next := g.Clone()
	next.Edges = append(next.Edges, e)
	return next, nil
}

// RemoveEdge returns a graph without the edge.
func (g *Graph) RemoveEdge(id string) (*Graph, error) {
	idx := -1
	for i, e := range g.Edges {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	next := g.Clone()
	next.Edges = append(next.Edges[:idx], next.Edges[idx+1:]...)
	return next, nil
}

// UpdateNodeData returns a graph with the node payload replaced.
// The payload type must match the node type.
func (g *Graph) UpdateNodeData(id string, data NodeData) (*Graph, error) {
	n, ok := g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	n.Data = data
	if err := n.Check(); err != nil {
		return nil, err
	}
	next := g.Clone()
	next.Nodes[id] = n.Clone()
	return next, nil
}

// Equal reports structural equality (nodes by id, edges in order).
func (g *Graph) Equal(other *Graph) bool {
	if g == nil || other == nil {
		return g == other
	}
	if len(g.Nodes) != len(other.Nodes) || len(g.Edges) != len(other.Edges) {
		return false
	}
	for id, n := range g.Nodes {
		o, ok := other.Nodes[id]
		if !ok || n.ID != o.ID || n.Type != o.Type || !reflect.DeepEqual(n.Data, o.Data) {
			return false
		}
	}
	for i := range g.Edges {
		if g.Edges[i] != other.Edges[i] {
			return false
		}
	}
	return true
}

// UnmarshalJSON keeps the node map keyed consistently with each node's id.
func (g *Graph) UnmarshalJSON(b []byte) error {
	var aux struct {
		Nodes map[string]Node `json:"nodes"`
		Edges []Edge          `json:"edges"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	g.Nodes = make(map[string]Node, len(aux.Nodes))
	for key, n := range aux.Nodes {
		if n.ID == "" {
			n.ID = key
		}
		if n.ID != key {
			return fmt.Errorf("node keyed %q declares id %q", key, n.ID)
		}
		g.Nodes[key] = n
	}
	g.Edges = aux.Edges
	if g.Edges == nil {
		g.Edges = []Edge{}
	}
	return nil
}

// DecodeGraph parses a graph document.
func DecodeGraph(data []byte) (*Graph, error) {
	g := NewGraph()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	return g, nil
}

// EncodeGraph serializes a graph document.
func EncodeGraph(g *Graph) ([]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return data, nil
}
