package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/inquiry/pkg/domain"
)

// Overlay marks traversal progress on a rendered graph.
type Overlay struct {
	Visited []string
	Current string
}

// OverlayFor derives an overlay from a session state.
func OverlayFor(s *domain.TraversalState) *Overlay {
	if s == nil {
		return nil
	}
	o := &Overlay{Visited: s.Visited()}
	if !s.Phase.Final() {
		o.Current = s.CurrentNodeID
	}
	return o
}

// Mermaid renders a graph as a Mermaid flowchart.
// Shapes follow node types: start and end are circles, questions are
// parallelograms, conditions are diamonds and integrations are subroutines.
func Mermaid(g *domain.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if g == nil {
		return sb.String()
	}

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		opener, closer := shape(n.Type)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeID(id), opener, label(n), closer)
	}
	for _, e := range g.Edges {
		arrow := "-->"
		if src, ok := g.Nodes[e.Source]; ok && src.Type == domain.NodeTypeCondition {
			arrow = "-.->"
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeID(e.Source), arrow, sanitizeID(e.Target))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Progress\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			if _, ok := g.Nodes[id]; !ok || seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", sanitizeID(id))
		}
		if _, ok := g.Nodes[overlay.Current]; ok {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeID(overlay.Current))
		}
	}
	return sb.String()
}

func shape(t domain.NodeType) (string, string) {
	switch t {
	case domain.NodeTypeStart:
		return "((", "))"
	case domain.NodeTypeEnd:
		return "(((", ")))"
	case domain.NodeTypeQuestion:
		return "[/", "/]"
	case domain.NodeTypeCondition:
		return "{", "}"
	case domain.NodeTypeIntegration:
		return "[[", "]]"
	default:
		return "[", "]"
	}
}

const maxLabel = 40

func label(n domain.Node) string {
	text := strings.Join(strings.Fields(n.Text()), " ")
	if text == "" {
		return n.ID
	}
	if r := []rune(text); len(r) > maxLabel {
		text = string(r[:maxLabel-1]) + "…"
	}
	return n.ID + ": " + strings.ReplaceAll(text, "\"", "'")
}

func sanitizeID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
