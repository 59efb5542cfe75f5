package domain

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies how the traversal engine interprets a node.
type NodeType string

const (
	// NodeTypeStart is the single entry point of an inquiry.
	NodeTypeStart NodeType = "start"
	// NodeTypeEnd terminates the conversation (sink).
	NodeTypeEnd NodeType = "end"
	// NodeTypeInformation displays content and continues immediately (soft step).
	NodeTypeInformation NodeType = "information"
	// NodeTypeQuestion displays a prompt and halts waiting for a respondent reply (hard step).
	NodeTypeQuestion NodeType = "question"
	// NodeTypeCondition routes to one of its targets using the reasoning service (silent step).
	NodeTypeCondition NodeType = "condition"
	// NodeTypeIntegration invokes an external tool and continues (side-effect step).
	NodeTypeIntegration NodeType = "integration"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeStart, NodeTypeEnd, NodeTypeInformation, NodeTypeQuestion, NodeTypeCondition, NodeTypeIntegration:
		return true
	}
	return false
}

// AnswerKind defines what a question node expects from the respondent.
type AnswerKind string

const (
	AnswerOpenEnded    AnswerKind = "open-ended"
	AnswerRatingSingle AnswerKind = "rating-single"
	AnswerRatingMulti  AnswerKind = "rating-multi"
)

// IsRating reports whether the kind expects option selections.
func (k AnswerKind) IsRating() bool {
	return k == AnswerRatingSingle || k == AnswerRatingMulti
}

// NodeData is the type-specific payload of a node.
// The set of implementations is closed; see the *Data types in this file.
type NodeData interface {
	nodeType() NodeType
}

// StartData is the payload of a start node.
type StartData struct {
	Label string `json:"label,omitempty"`
}

// EndData is the payload of an end node.
type EndData struct {
	Label string `json:"label,omitempty"`
}

// InformationData is the payload of an information node.
// When DynamicGeneration is set, Text is an instruction for the reasoning service.
type InformationData struct {
	Text              string `json:"text"`
	DynamicGeneration bool   `json:"dynamicGeneration,omitempty"`
}

// QuestionData is the payload of a question node.
type QuestionData struct {
	Prompt            string     `json:"prompt"`
	AnswerKind        AnswerKind `json:"answerKind"`
	Options           []string   `json:"options,omitempty"`
	DynamicGeneration bool       `json:"dynamicGeneration,omitempty"`
}

// ConditionData is the payload of a condition node.
// Instructions are free text interpreted against the running transcript.
type ConditionData struct {
	Instructions string `json:"instructions"`
}

// IntegrationData references an external tool invocation.
type IntegrationData struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

func (StartData) nodeType() NodeType       { return NodeTypeStart }
func (EndData) nodeType() NodeType         { return NodeTypeEnd }
func (InformationData) nodeType() NodeType { return NodeTypeInformation }
func (QuestionData) nodeType() NodeType    { return NodeTypeQuestion }
func (ConditionData) nodeType() NodeType   { return NodeTypeCondition }
func (IntegrationData) nodeType() NodeType { return NodeTypeIntegration }

// Node represents a step in the conversation.
type Node struct {
	ID   string
	Type NodeType
	Data NodeData
}

// NewNode builds a node whose type is derived from its payload.
func NewNode(id string, data NodeData) Node {
	return Node{ID: id, Type: data.nodeType(), Data: data}
}

// Check verifies that the payload matches the declared type.
func (n Node) Check() error {
	if n.ID == "" {
		return fmt.Errorf("node: empty id")
	}
	if !n.Type.Valid() {
		return fmt.Errorf("node %s: unknown type %q", n.ID, n.Type)
	}
	if n.Data == nil {
		return fmt.Errorf("node %s: missing data", n.ID)
	}
	if n.Data.nodeType() != n.Type {
		return fmt.Errorf("node %s: data is for type %q, node declares %q", n.ID, n.Data.nodeType(), n.Type)
	}
	return nil
}

// Text returns the displayable copy of the node, if any.
func (n Node) Text() string {
	switch d := n.Data.(type) {
	case StartData:
		return d.Label
	case EndData:
		return d.Label
	case InformationData:
		return d.Text
	case QuestionData:
		return d.Prompt
	case ConditionData:
		return d.Instructions
	case IntegrationData:
		return d.Tool
	default:
		return ""
	}
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	switch d := n.Data.(type) {
	case QuestionData:
		if d.Options != nil {
			d.Options = append([]string(nil), d.Options...)
		}
		n.Data = d
	case IntegrationData:
		if d.Args != nil {
			args := make(map[string]any, len(d.Args))
			for k, v := range d.Args {
				args[k] = v
			}
			d.Args = args
		}
		n.Data = d
	}
	return n
}

type nodeJSON struct {
	ID   string          `json:"id"`
	Type NodeType        `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON implements custom JSON marshaling.
func (n Node) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if n.Data != nil {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
		raw = b
	}
	return json.Marshal(nodeJSON{ID: n.ID, Type: n.Type, Data: raw})
}

// UnmarshalJSON decodes the payload according to the "type" discriminator.
func (n *Node) UnmarshalJSON(b []byte) error {
	var aux nodeJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	data, err := decodeNodeData(aux.Type, aux.Data)
	if err != nil {
		return fmt.Errorf("node %s: %w", aux.ID, err)
	}

	n.ID = aux.ID
	n.Type = aux.Type
	n.Data = data
	return nil
}

func decodeNodeData(t NodeType, raw json.RawMessage) (NodeData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	switch t {
	case NodeTypeStart:
		return unmarshalData[StartData](raw)
	case NodeTypeEnd:
		return unmarshalData[EndData](raw)
	case NodeTypeInformation:
		return unmarshalData[InformationData](raw)
	case NodeTypeQuestion:
		d, err := unmarshalData[QuestionData](raw)
		if err != nil {
			return nil, err
		}
		q := d.(QuestionData)
		if q.AnswerKind == "" {
			q.AnswerKind = AnswerOpenEnded
		}
		return q, nil
	case NodeTypeCondition:
		return unmarshalData[ConditionData](raw)
	case NodeTypeIntegration:
		return unmarshalData[IntegrationData](raw)
	default:
		return nil, fmt.Errorf("unknown node type %q", t)
	}
}

func unmarshalData[T NodeData](raw json.RawMessage) (NodeData, error) {
	var d T
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}
