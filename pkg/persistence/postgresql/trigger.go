package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// TriggerRepository handles automation trigger database operations.
type TriggerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const triggerColumns = `
	id
  , automation_id
  , workspace_id
  , event_key
  , workflow_id
  , workflow_stage_id
  , is_active
  , created_at
  , updated_at
`

func (r *TriggerRepository) Save(ctx context.Context, trigger *models.AutomationTrigger) error {
	now := time.Now().UTC()

	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	if trigger.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate trigger ID: %w", err)
		}

		trigger.ID = id.String()
	}

	query := `
		INSERT INTO automation_triggers (id, automation_id, workspace_id, event_key, workflow_id, workflow_stage_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			event_key = EXCLUDED.event_key,
			workflow_id = EXCLUDED.workflow_id,
			workflow_stage_id = EXCLUDED.workflow_stage_id,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		trigger.ID,
		trigger.AutomationID,
		trigger.WorkspaceID,
		trigger.EventKey,
		trigger.WorkflowID,
		trigger.WorkflowStageID,
		trigger.IsActive,
		trigger.CreatedAt,
		trigger.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save trigger: %w", err)
	}

	return nil
}

func (r *TriggerRepository) GetByID(ctx context.Context, id string) (*models.AutomationTrigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM automation_triggers
		WHERE id = $1
	`

	trigger, err := r.scanTrigger(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTriggerNotFound
		}

		return nil, fmt.Errorf("failed to scan trigger: %w", err)
	}

	return trigger, nil
}

func (r *TriggerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automation_triggers WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete trigger: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrTriggerNotFound
	}

	return nil
}

func (r *TriggerRepository) ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationTrigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM automation_triggers
		WHERE automation_id = $1
		ORDER BY created_at
	`

	return r.list(ctx, query, automationID)
}

func (r *TriggerRepository) ListByEventKey(ctx context.Context, workspaceID, eventKey string) ([]*models.AutomationTrigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM automation_triggers
		WHERE workspace_id = $1 AND event_key = $2
		ORDER BY created_at
	`

	return r.list(ctx, query, workspaceID, eventKey)
}

func (r *TriggerRepository) list(ctx context.Context, query string, args ...any) ([]*models.AutomationTrigger, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggers: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	triggers := make([]*models.AutomationTrigger, 0)

	for rows.Next() {
		trigger, err := r.scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger: %w", err)
		}

		triggers = append(triggers, trigger)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating triggers: %w", err)
	}

	return triggers, nil
}

func (r *TriggerRepository) scanTrigger(scanner interface {
	Scan(dest ...any) error
}) (*models.AutomationTrigger, error) {
	var trigger models.AutomationTrigger

	err := scanner.Scan(
		&trigger.ID,
		&trigger.AutomationID,
		&trigger.WorkspaceID,
		&trigger.EventKey,
		&trigger.WorkflowID,
		&trigger.WorkflowStageID,
		&trigger.IsActive,
		&trigger.CreatedAt,
		&trigger.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &trigger, nil
}
