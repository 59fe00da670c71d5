package models

import "time"

// NodeRunStatus is the lifecycle state of one node within a run.
type NodeRunStatus string

const (
	NodeRunStatusPending   NodeRunStatus = "pending"
	NodeRunStatusRunning   NodeRunStatus = "running"
	NodeRunStatusSucceeded NodeRunStatus = "succeeded"
	NodeRunStatusFailed    NodeRunStatus = "failed"
	NodeRunStatusSkipped   NodeRunStatus = "skipped"
)

// AutomationNodeRun is the execution record for one node within one
// run. Retries increment Attempts and overwrite Output/Error on the
// same row; a node's outcome is always queryable by (run id, node id).
type AutomationNodeRun struct {
	ID         string         `json:"id"`
	RunID      string         `json:"automation_run_id"`
	NodeID     string         `json:"node_id"`
	NodeType   string         `json:"node_type"`
	Status     NodeRunStatus  `json:"status"`
	Attempts   int            `json:"attempts"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Branch     string         `json:"branch,omitempty"` // output handle activated on success
	Error      string         `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// IsTerminal reports whether the node run has reached a final state.
func (nr *AutomationNodeRun) IsTerminal() bool {
	switch nr.Status {
	case NodeRunStatusSucceeded, NodeRunStatusFailed, NodeRunStatusSkipped:
		return true
	default:
		return false
	}
}
