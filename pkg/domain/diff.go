package domain

// StateDiff represents the changes between two traversal states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentNodeID *string `json:"current_node_id,omitempty"`
	Phase         *Phase  `json:"phase,omitempty"`
	Loading       *bool   `json:"loading,omitempty"`
	Error         *bool   `json:"error,omitempty"`
	NotFound      *bool   `json:"not_found,omitempty"`

	// Appended contains only visits added since the old state.
	Appended []NodeVisit `json:"appended,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *TraversalState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{SessionID: newState.SessionID}

	if oldState == nil || oldState.CurrentNodeID != newState.CurrentNodeID {
		diff.CurrentNodeID = &newState.CurrentNodeID
	}
	if oldState == nil || oldState.Phase != newState.Phase {
		diff.Phase = &newState.Phase
	}
	if oldState == nil || oldState.Loading != newState.Loading {
		diff.Loading = &newState.Loading
	}
	if oldState == nil || oldState.Error != newState.Error {
		diff.Error = &newState.Error
	}
	if oldState == nil || oldState.NotFound != newState.NotFound {
		diff.NotFound = &newState.NotFound
	}

	diff.Appended = diffHistory(oldState, newState)

	if diff.empty() {
		return nil
	}
	return diff
}

// diffHistory assumes append-only behavior for History.
func diffHistory(old *TraversalState, new *TraversalState) []NodeVisit {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil {
		return new.History
	}
	if len(new.History) > len(old.History) {
		return new.History[len(old.History):]
	}
	return nil
}

func (d *StateDiff) empty() bool {
	return d.CurrentNodeID == nil &&
		d.Phase == nil &&
		d.Loading == nil &&
		d.Error == nil &&
		d.NotFound == nil &&
		len(d.Appended) == 0
}
