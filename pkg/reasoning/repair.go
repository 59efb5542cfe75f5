package reasoning

import (
	"fmt"

	"github.com/aretw0/inquiry/pkg/domain"
)

// Repair applies deterministic fixes to a graph document so it passes structural
// validation where that is possible without authoring intent:
// dangling edges are dropped, extra start nodes are removed, unreachable nodes are
// removed, a missing end node is added and dead ends are connected to an end.
func Repair(document []byte) ([]byte, error) {
	g, err := domain.DecodeGraph(document)
	if err != nil {
		return nil, err
	}

	g = dropDanglingEdges(g)

	g, err = fixStart(g)
	if err != nil {
		return nil, err
	}
	start, _ := g.Start()

	g = dropUnreachable(g, start.ID)

	endID := firstOfType(g, domain.NodeTypeEnd)
	if endID == "" {
		endID = freeID(g, "end")
		if g, err = g.AddNode(domain.NewNode(endID, domain.EndData{})); err != nil {
			return nil, err
		}
	}

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.Type == domain.NodeTypeEnd || len(g.Outgoing(id)) > 0 {
			continue
		}
		if g, err = g.AddEdge(domain.Edge{ID: freeEdgeID(g, id, endID), Source: id, Target: endID}); err != nil {
			return nil, err
		}
	}

	if !reachable(g, start.ID)[endID] {
		if g, err = g.AddEdge(domain.Edge{ID: freeEdgeID(g, start.ID, endID), Source: start.ID, Target: endID}); err != nil {
			return nil, err
		}
	}

	return domain.EncodeGraph(g)
}

func dropDanglingEdges(g *domain.Graph) *domain.Graph {
	next := g.Clone()
	edges := next.Edges[:0]
	for _, e := range next.Edges {
		_, okS := next.Nodes[e.Source]
		_, okT := next.Nodes[e.Target]
		if okS && okT {
			edges = append(edges, e)
		}
	}
	next.Edges = edges
	return next
}

func fixStart(g *domain.Graph) (*domain.Graph, error) {
	starts := g.StartNodes()
	if len(starts) == 0 {
		return nil, fmt.Errorf("cannot repair a graph without a start node")
	}
	var err error
	for _, s := range starts[1:] {
		if g, err = g.RemoveNode(s.ID); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func dropUnreachable(g *domain.Graph, startID string) *domain.Graph {
	seen := reachable(g, startID)
	for _, id := range g.NodeIDs() {
		if !seen[id] {
			g, _ = g.RemoveNode(id)
		}
	}
	return g
}

func reachable(g *domain.Graph, startID string) map[string]bool {
	seen := map[string]bool{startID: true}
	queue := []string{startID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.Outgoing(id) {
			if !seen[e.Target] {
				seen[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	return seen
}

func firstOfType(g *domain.Graph, t domain.NodeType) string {
	for _, id := range g.NodeIDs() {
		if g.Nodes[id].Type == t {
			return id
		}
	}
	return ""
}

func freeID(g *domain.Graph, base string) string {
	id := base
	for i := 2; ; i++ {
		if _, taken := g.Nodes[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, i)
	}
}

func freeEdgeID(g *domain.Graph, source, target string) string {
	used := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		used[e.ID] = true
	}
	id := fmt.Sprintf("fix-%s-%s", source, target)
	for i := 2; used[id]; i++ {
		id = fmt.Sprintf("fix-%s-%s-%d", source, target, i)
	}
	return id
}
