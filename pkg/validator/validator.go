package validator

import (
	"fmt"
	"regexp"

	"github.com/aretw0/inquiry/pkg/domain"
)

// MsgStartCount is reported when a graph does not have exactly one start node.
const MsgStartCount = "graph must contain exactly one start node"

// MsgNoEnd is reported when a graph has no end node.
const MsgNoEnd = "graph must contain at least one end node"

// Report is the outcome of a validation pass.
// Errors block publishing; Warnings are heuristic and informational.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether there are no structural errors.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

// Err returns the errors as a *domain.StructuralError, or nil.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	return &domain.StructuralError{Errors: r.Errors}
}

// Validate checks the structural invariants of a graph.
// It never mutates the graph.
func Validate(g *domain.Graph) Report {
	report := Report{Errors: []string{}}
	if g == nil {
		report.Errors = append(report.Errors, "graph is nil")
		return report
	}

	ids := g.NodeIDs()

	// 1. Exactly one start
	starts := g.StartNodes()
	if len(starts) != 1 {
		report.Errors = append(report.Errors, MsgStartCount)
	}

	// 2. At least one end
	hasEnd := false
	for _, id := range ids {
		if g.Nodes[id].Type == domain.NodeTypeEnd {
			hasEnd = true
			break
		}
	}
	if !hasEnd {
		report.Errors = append(report.Errors, MsgNoEnd)
	}

	// 3. Every non-end node has an exit
	outgoing := make(map[string][]domain.Edge)
	for _, e := range g.Edges {
		outgoing[e.Source] = append(outgoing[e.Source], e)
	}
	for _, id := range ids {
		n := g.Nodes[id]
		if n.Type != domain.NodeTypeEnd && len(outgoing[id]) == 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("node '%s' (%s) has no outgoing edges", id, n.Type))
		}
	}

	// 4. Reachability (BFS over edges whose endpoints exist)
	if len(starts) > 0 {
		visited := make(map[string]bool)
		queue := make([]string, 0, len(ids))
		for _, s := range starts {
			queue = append(queue, s.ID)
		}

		for len(queue) > 0 {
			currentID := queue[0]
			queue = queue[1:]

			if visited[currentID] {
				continue
			}
			visited[currentID] = true

			for _, e := range outgoing[currentID] {
				if _, ok := g.Nodes[e.Target]; !ok {
					continue // Reported by rule 5
				}
				if !visited[e.Target] {
					queue = append(queue, e.Target)
				}
			}
		}

		for _, id := range ids {
			if !visited[id] {
				report.Errors = append(report.Errors, fmt.Sprintf("node '%s' is unreachable from start", id))
			}
		}
	}

	// 5. Dangling edges
	seenEdges := make(map[string]bool)
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.Source]; !ok {
			report.Errors = append(report.Errors, fmt.Sprintf("edge '%s' references missing source node '%s'", e.ID, e.Source))
		}
		if _, ok := g.Nodes[e.Target]; !ok {
			report.Errors = append(report.Errors, fmt.Sprintf("edge '%s' references missing target node '%s'", e.ID, e.Target))
		}
		if seenEdges[e.ID] {
			report.Errors = append(report.Errors, fmt.Sprintf("edge id '%s' is used more than once", e.ID))
		}
		seenEdges[e.ID] = true
	}

	// 6. Payload consistency
	for _, id := range ids {
		if err := g.Nodes[id].Check(); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
	}

	report.Warnings = warnings(g, ids, outgoing)
	return report
}

// routeTarget matches "-> target" and "go to target" references in condition instructions.
var routeTarget = regexp.MustCompile(`(?i)(?:->|\bgo\s*to\s+)\s*([A-Za-z0-9_.:/-]+)`)

func warnings(g *domain.Graph, ids []string, outgoing map[string][]domain.Edge) []string {
	var out []string
	for _, id := range ids {
		n := g.Nodes[id]
		switch d := n.Data.(type) {
		case domain.ConditionData:
			targets := make(map[string]bool)
			for _, e := range outgoing[id] {
				targets[e.Target] = true
			}
			for _, m := range routeTarget.FindAllStringSubmatch(d.Instructions, -1) {
				ref := m[1]
				if !targets[ref] {
					out = append(out, fmt.Sprintf("condition '%s' routes to '%s' but has no edge to it", id, ref))
				}
			}
		case domain.QuestionData:
			if d.AnswerKind.IsRating() && len(d.Options) == 0 {
				out = append(out, fmt.Sprintf("question '%s' is %s but defines no options", id, d.AnswerKind))
			}
			if len(outgoing[id]) > 1 {
				out = append(out, fmt.Sprintf("question '%s' has %d outgoing edges; only the first is followed", id, len(outgoing[id])))
			}
		case domain.InformationData:
			if len(outgoing[id]) > 1 {
				out = append(out, fmt.Sprintf("information '%s' has %d outgoing edges; only the first is followed", id, len(outgoing[id])))
			}
		case domain.IntegrationData:
			if len(outgoing[id]) > 1 {
				out = append(out, fmt.Sprintf("integration '%s' has %d outgoing edges; only the first is followed", id, len(outgoing[id])))
			}
			if d.Tool == "" {
				out = append(out, fmt.Sprintf("integration '%s' does not name a tool", id))
			}
		case domain.StartData, domain.EndData:
		}
	}
	return out
}
