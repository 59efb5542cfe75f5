package domain

import "time"

// Submission is the response record handed to the persistence service
// when a traversal terminates.
type Submission struct {
	ID          string      `json:"id"`
	InquiryID   string      `json:"inquiryId"`
	SessionID   string      `json:"sessionId"`
	Respondent  *Respondent `json:"respondent,omitempty"`
	Visits      []NodeVisit `json:"visits"`
	SubmittedAt time.Time   `json:"submittedAt"`
}

// NewSubmission freezes the history of a state into a submission.
func NewSubmission(s *TraversalState) Submission {
	visits := make([]NodeVisit, len(s.History))
	copy(visits, s.History)
	sub := Submission{
		InquiryID:   s.InquiryID,
		SessionID:   s.SessionID,
		Visits:      visits,
		SubmittedAt: time.Now(),
	}
	if s.Respondent != nil {
		r := *s.Respondent
		sub.Respondent = &r
	}
	return sub
}
