package domain

import (
	"strings"
	"time"
)

// Phase is the position of a traversal in its state machine.
type Phase string

const (
	PhaseIdle             Phase = "idle"              // Waiting for respondent details
	PhaseAwaitingEntry    Phase = "awaiting_entry"    // About to enter CurrentNodeID
	PhaseResolving        Phase = "resolving"         // Waiting on the reasoning service
	PhaseAwaitingResponse Phase = "awaiting_response" // Question displayed, waiting for the respondent
	PhaseAdvancing        Phase = "advancing"         // Choosing the next node
	PhaseTerminated       Phase = "terminated"        // End node reached (sink)
	PhaseErrored          Phase = "errored"           // Routing or service failure (sink)
)

// Final reports whether no further transitions are accepted.
func (p Phase) Final() bool {
	return p == PhaseTerminated || p == PhaseErrored
}

// Respondent identifies the person walking the inquiry.
type Respondent struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Response is what a respondent submitted for a question.
type Response struct {
	Text            string   `json:"text,omitempty"`
	SelectedRatings []string `json:"selectedRatings,omitempty"`
}

// Empty reports whether nothing was submitted.
func (r Response) Empty() bool {
	return strings.TrimSpace(r.Text) == "" && len(r.SelectedRatings) == 0
}

// String renders the response as transcript text.
func (r Response) String() string {
	parts := make([]string, 0, 2)
	if len(r.SelectedRatings) > 0 {
		parts = append(parts, strings.Join(r.SelectedRatings, ", "))
	}
	if r.Text != "" {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, " - ")
}

// NodeVisit is one recorded step in a respondent's history.
// Visits are never modified after they are appended.
type NodeVisit struct {
	NodeID    string    `json:"nodeId"`
	NodeType  NodeType  `json:"nodeType"`
	EnteredAt time.Time `json:"enteredAt"`
	// Shown is the text displayed to the respondent for this node, after generation.
	Shown    string    `json:"shown,omitempty"`
	Response *Response `json:"response,omitempty"`
	// Result holds the payload returned by an integration.
	Result any `json:"result,omitempty"`
}

// TraversalState is the runtime snapshot of one respondent session.
type TraversalState struct {
	InquiryID string `json:"inquiryId"`
	SessionID string `json:"sessionId"`

	Phase Phase `json:"phase"`

	// CurrentNodeID is empty before traversal begins.
	CurrentNodeID string `json:"currentNodeId,omitempty"`

	// History is append-only.
	History []NodeVisit `json:"history"`

	Loading  bool `json:"loading"`
	Error    bool `json:"error"`
	NotFound bool `json:"notFound"`

	// Failure describes what set Error or NotFound.
	Failure string `json:"failure,omitempty"`

	Respondent *Respondent `json:"respondent,omitempty"`

	// EnteredAt and Prompt describe the pending question while awaiting a response.
	EnteredAt time.Time `json:"enteredAt,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
}

// NewTraversalState creates an idle state for a session.
func NewTraversalState(inquiryID, sessionID string) *TraversalState {
	return &TraversalState{
		InquiryID: inquiryID,
		SessionID: sessionID,
		Phase:     PhaseIdle,
		History:   []NodeVisit{},
	}
}

// Terminated reports whether an end node was reached.
func (s *TraversalState) Terminated() bool {
	return s.Phase == PhaseTerminated
}

// Clone creates a copy that can be extended without aliasing the source history.
func (s *TraversalState) Clone() *TraversalState {
	if s == nil {
		return nil
	}
	next := *s
	next.History = make([]NodeVisit, len(s.History), len(s.History)+4)
	copy(next.History, s.History)
	if s.Respondent != nil {
		r := *s.Respondent
		next.Respondent = &r
	}
	return &next
}

// Visited returns the node ids of the history, in order.
func (s *TraversalState) Visited() []string {
	ids := make([]string, len(s.History))
	for i, v := range s.History {
		ids[i] = v.NodeID
	}
	return ids
}

// Role is the author of a transcript line.
type Role string

const (
	RoleBot  Role = "bot"
	RoleUser Role = "user"
)

// TranscriptEntry is one line of the running conversation.
type TranscriptEntry struct {
	Role   Role   `json:"role"`
	NodeID string `json:"nodeId,omitempty"`
	Text   string `json:"text"`

	// Ratings carries the selected rating labels of a user entry.
	Ratings []string `json:"ratings,omitempty"`
}

// Transcript derives the conversation so far from the history.
func (s *TraversalState) Transcript() []TranscriptEntry {
	var out []TranscriptEntry
	for _, v := range s.History {
		if v.Shown != "" {
			out = append(out, TranscriptEntry{Role: RoleBot, NodeID: v.NodeID, Text: v.Shown})
		}
		if v.Response != nil {
			out = append(out, TranscriptEntry{
				Role:    RoleUser,
				NodeID:  v.NodeID,
				Text:    v.Response.String(),
				Ratings: v.Response.SelectedRatings,
			})
		}
	}
	if s.Phase == PhaseAwaitingResponse && s.Prompt != "" {
		out = append(out, TranscriptEntry{Role: RoleBot, NodeID: s.CurrentNodeID, Text: s.Prompt})
	}
	return out
}
