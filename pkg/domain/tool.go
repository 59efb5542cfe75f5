package domain

// IntegrationCall is a request from the engine to run an external tool.
type IntegrationCall struct {
	ID     string         `json:"id" mapstructure:"id"`
	NodeID string         `json:"node_id" mapstructure:"node_id"`
	Tool   string         `json:"tool" mapstructure:"tool"`
	Args   map[string]any `json:"args,omitempty" mapstructure:"args"`
}

// IntegrationResult is the outcome returned by the tool runner.
type IntegrationResult struct {
	ID      string `json:"id"` // Must match the IntegrationCall.ID
	Result  any    `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Error   string `json:"error,omitempty"`
}
