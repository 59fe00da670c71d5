// Package web provides HTTP request and response types for the automation API.
package web

import "github.com/luisscruza/optiflow-sub005/pkg/models"

// CreateAutomationRequest represents the request body for creating a new automation.
type CreateAutomationRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	Name        string `json:"name"         validate:"required,min=3"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// UpdateAutomationRequest represents the request body for updating an automation.
// All fields are optional to support partial updates. Definitions are
// not updated here; they go through the version endpoints.
type UpdateAutomationRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// CreateDraftRequest represents the request body for creating a new
// draft version of an automation's definition.
type CreateDraftRequest struct {
	Definition *models.Definition `json:"definition" validate:"required"`
	CreatedBy  string             `json:"created_by"`
}

// PublishRequest selects the version number to publish.
type PublishRequest struct {
	Version int `json:"version" validate:"required,min=1"`
}

// CreateTriggerRequest represents the request body for registering a
// trigger on an automation. Nil scoping fields are wildcards.
type CreateTriggerRequest struct {
	EventKey        string  `json:"event_key" validate:"required"`
	WorkflowID      *string `json:"workflow_id,omitempty"`
	WorkflowStageID *string `json:"workflow_stage_id,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

// UpdateTriggerRequest represents the request body for updating a
// trigger's scoping or active flag.
type UpdateTriggerRequest struct {
	EventKey        *string `json:"event_key,omitempty" validate:"omitempty,min=1"`
	WorkflowID      *string `json:"workflow_id,omitempty"`
	WorkflowStageID *string `json:"workflow_stage_id,omitempty"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

// EmitEventRequest represents one domain event occurrence delivered by
// the workflow subsystem.
type EmitEventRequest struct {
	OccurrenceID    string         `json:"occurrence_id" validate:"required"`
	EventKey        string         `json:"event_key"     validate:"required"`
	WorkspaceID     string         `json:"workspace_id"  validate:"required"`
	WorkflowID      *string        `json:"workflow_id,omitempty"`
	WorkflowStageID *string        `json:"workflow_stage_id,omitempty"`
	SubjectType     string         `json:"subject_type"  validate:"required"`
	SubjectID       string         `json:"subject_id"    validate:"required"`
	Payload         map[string]any `json:"payload,omitempty"`
}

// EmitEventResponse reports the runs created for an event. Duplicate
// deliveries produce an empty list.
type EmitEventResponse struct {
	RunIDs []string `json:"run_ids"`
}
