package models

// ExecutionContext carries the data a node sees during execution: the
// trigger event payload and the outputs of already-succeeded nodes.
type ExecutionContext struct {
	RunID        string                    `json:"run_id"`
	AutomationID string                    `json:"automation_id"`
	WorkspaceID  string                    `json:"workspace_id"`
	TriggerData  map[string]any            `json:"trigger_data,omitempty"`
	NodeOutputs  map[string]map[string]any `json:"node_outputs,omitempty"`
	Metadata     map[string]any            `json:"metadata,omitempty"`
}
