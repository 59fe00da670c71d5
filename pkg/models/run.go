package models

import (
	"slices"
	"time"
)

// RunStatus is the lifecycle state of an automation run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// AutomationRun is one execution instance of a published automation
// version. AutomationVersionID is captured at creation and never
// changes; publishing a new version has no effect on existing runs.
type AutomationRun struct {
	ID                  string         `json:"id"`
	AutomationID        string         `json:"automation_id"`
	AutomationVersionID string         `json:"automation_version_id"`
	WorkspaceID         string         `json:"workspace_id"`
	TriggerID           string         `json:"trigger_id"`
	TriggerEventKey     string         `json:"trigger_event_key"`
	OccurrenceID        string         `json:"occurrence_id"`
	SubjectType         string         `json:"subject_type"`
	SubjectID           string         `json:"subject_id"`
	Status              RunStatus      `json:"status"`
	PendingNodes        []string       `json:"pending_nodes"`
	TriggerPayload      map[string]any `json:"trigger_payload,omitempty"`
	Error               string         `json:"error,omitempty"`
	StartedAt           time.Time      `json:"started_at"`
	FinishedAt          *time.Time     `json:"finished_at,omitempty"`
}

// IsTerminal reports whether the run has reached a final state.
func (r *AutomationRun) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// HasPendingNode reports whether the node is still pending.
func (r *AutomationRun) HasPendingNode(nodeID string) bool {
	return slices.Contains(r.PendingNodes, nodeID)
}

// AddPendingNode adds a node to the pending set, ignoring duplicates.
func (r *AutomationRun) AddPendingNode(nodeID string) {
	if !r.HasPendingNode(nodeID) {
		r.PendingNodes = append(r.PendingNodes, nodeID)
	}
}

// RemovePendingNode removes a node from the pending set.
func (r *AutomationRun) RemovePendingNode(nodeID string) {
	r.PendingNodes = slices.DeleteFunc(r.PendingNodes, func(id string) bool {
		return id == nodeID
	})
}
