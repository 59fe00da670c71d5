package models

import "time"

// AutomationTrigger binds an automation to a domain event key with
// optional workflow/stage scoping. A nil scoping field is a wildcard.
type AutomationTrigger struct {
	ID              string    `json:"id"`
	AutomationID    string    `json:"automation_id" validate:"required"`
	WorkspaceID     string    `json:"workspace_id"  validate:"required"`
	EventKey        string    `json:"event_key"     validate:"required"`
	WorkflowID      *string   `json:"workflow_id,omitempty"`
	WorkflowStageID *string   `json:"workflow_stage_id,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TriggerEvent is one occurrence of a domain event emitted by the
// workflow subsystem. OccurrenceID identifies the delivery attempt's
// logical occurrence; duplicate deliveries share it.
type TriggerEvent struct {
	OccurrenceID    string         `json:"occurrence_id" validate:"required"`
	EventKey        string         `json:"event_key"     validate:"required"`
	WorkspaceID     string         `json:"workspace_id"  validate:"required"`
	WorkflowID      *string        `json:"workflow_id,omitempty"`
	WorkflowStageID *string        `json:"workflow_stage_id,omitempty"`
	SubjectType     string         `json:"subject_type"  validate:"required"`
	SubjectID       string         `json:"subject_id"    validate:"required"`
	Payload         map[string]any `json:"payload,omitempty"`
	OccurredAt      time.Time      `json:"occurred_at"`
}

// Matches reports whether the trigger's scoping matches the event.
// The event key must be equal and every non-nil scoping field on the
// trigger must equal the corresponding event field. Active flags are
// checked by the matcher, not here.
func (t *AutomationTrigger) Matches(event *TriggerEvent) bool {
	if t.WorkspaceID != event.WorkspaceID {
		return false
	}

	if t.EventKey != event.EventKey {
		return false
	}

	if t.WorkflowID != nil && !equalScope(t.WorkflowID, event.WorkflowID) {
		return false
	}

	if t.WorkflowStageID != nil && !equalScope(t.WorkflowStageID, event.WorkflowStageID) {
		return false
	}

	return true
}

func equalScope(want, got *string) bool {
	return got != nil && *want == *got
}
