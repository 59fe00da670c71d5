// Package models defines the core domain models for the automation engine
package models

import "time"

// Automation is the root aggregate for an event-triggered automation.
// It owns versions and triggers; only the version referenced by
// PublishedVersion is ever executed.
type Automation struct {
	ID               string     `json:"id"`
	WorkspaceID      string     `json:"workspace_id"      validate:"required"`
	Name             string     `json:"name"              validate:"required,min=3"`
	Description      string     `json:"description"`
	IsActive         bool       `json:"is_active"`
	PublishedVersion int        `json:"published_version"` // 0 means never published
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// IsPublished reports whether the automation has a published version.
func (a *Automation) IsPublished() bool {
	return a.PublishedVersion > 0
}
