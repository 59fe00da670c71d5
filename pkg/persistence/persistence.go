// Package persistence provides the storage abstraction for the automation engine.
package persistence

import (
	"context"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
)

// Persistence exposes one repository per aggregate. Implementations
// must be safe for concurrent use.
type Persistence interface {
	AutomationRepository() AutomationRepository
	VersionRepository() VersionRepository
	TriggerRepository() TriggerRepository
	RunRepository() RunRepository
	NodeRunRepository() NodeRunRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type AutomationRepository interface {
	GetAll(ctx context.Context, workspaceID string) ([]*models.Automation, error)
	GetByID(ctx context.Context, id string) (*models.Automation, error)
	Save(ctx context.Context, automation *models.Automation) error
	Delete(ctx context.Context, id string) error

	// SetPublishedVersion atomically moves the published pointer.
	SetPublishedVersion(ctx context.Context, automationID string, version int) error
}

// VersionRepository stores immutable definition snapshots. There is
// deliberately no update operation.
type VersionRepository interface {
	Create(ctx context.Context, version *models.AutomationVersion) error
	GetByID(ctx context.Context, id string) (*models.AutomationVersion, error)
	GetByNumber(ctx context.Context, automationID string, version int) (*models.AutomationVersion, error)
	LatestNumber(ctx context.Context, automationID string) (int, error)
}

type TriggerRepository interface {
	Save(ctx context.Context, trigger *models.AutomationTrigger) error
	GetByID(ctx context.Context, id string) (*models.AutomationTrigger, error)
	Delete(ctx context.Context, id string) error
	ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationTrigger, error)

	// ListByEventKey returns all triggers registered for the event key
	// in the workspace, active or not; the matcher applies the flags.
	ListByEventKey(ctx context.Context, workspaceID, eventKey string) ([]*models.AutomationTrigger, error)
}

type RunRepository interface {
	// Create persists a new run. It returns ErrDuplicateRun when a run
	// already exists for the same (trigger, subject, occurrence)
	// triple; this is the idempotency guarantee for duplicate event
	// deliveries.
	Create(ctx context.Context, run *models.AutomationRun) error
	GetByID(ctx context.Context, id string) (*models.AutomationRun, error)
	Update(ctx context.Context, run *models.AutomationRun) error
	ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationRun, error)
}

type NodeRunRepository interface {
	Save(ctx context.Context, nodeRun *models.AutomationNodeRun) error
	GetByRunAndNode(ctx context.Context, runID, nodeID string) (*models.AutomationNodeRun, error)
	ListByRun(ctx context.Context, runID string) ([]*models.AutomationNodeRun, error)
}
