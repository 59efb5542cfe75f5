package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInquiryNotFound is returned when an inquiry id is unknown to the persistence service.
	ErrInquiryNotFound = errors.New("inquiry not found")

	// ErrSessionNotFound is returned when a session ID cannot be found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTerminated is returned when input reaches a session that already ended.
	ErrTerminated = errors.New("traversal terminated")

	// ErrNotAwaitingResponse is returned when a response is submitted outside of a question.
	ErrNotAwaitingResponse = errors.New("traversal is not awaiting a response")

	// ErrRespondentDetails is returned when name or email are missing or malformed.
	ErrRespondentDetails = errors.New("respondent name and email are required")

	// ErrInvalidResponse is returned when a response does not fit the question.
	ErrInvalidResponse = errors.New("invalid response")

	ErrDuplicateNode = errors.New("duplicate node")
	ErrDuplicateEdge = errors.New("duplicate edge")
	ErrNodeNotFound  = errors.New("node not found")
	ErrEdgeNotFound  = errors.New("edge not found")
)

// RoutingError reports a condition that could not be mapped to an outgoing edge,
// or a run of condition hops that exceeded the loop protection cap.
type RoutingError struct {
	NodeID string
	Target string
	Reason string
}

func (e *RoutingError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("routing failed at node '%s' (target '%s'): %s", e.NodeID, e.Target, e.Reason)
	}
	return fmt.Sprintf("routing failed at node '%s': %s", e.NodeID, e.Reason)
}

// ServiceError wraps a failure of an external collaborator.
type ServiceError struct {
	Service string // "reasoning", "persistence", "narration", "integration"
	Op      string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service: %s: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// StructuralError carries validator failures that block publishing.
type StructuralError struct {
	Errors []string
}

func (e *StructuralError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid graph: " + e.Errors[0]
	}
	return fmt.Sprintf("invalid graph: %d errors:\n- %s", len(e.Errors), strings.Join(e.Errors, "\n- "))
}
