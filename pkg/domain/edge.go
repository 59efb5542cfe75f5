package domain

// Edge is a directed connection between two nodes (an allowed transition).
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}
