package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// uniqueViolation is the PostgreSQL error code raised when an insert
// hits the occurrence unique index.
const uniqueViolation = "23505"

// RunRepository handles automation run database operations.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const runColumns = `
	id
  , automation_id
  , automation_version_id
  , workspace_id
  , trigger_id
  , trigger_event_key
  , occurrence_id
  , subject_type
  , subject_id
  , status
  , pending_nodes
  , trigger_payload
  , error
  , started_at
  , finished_at
`

func (r *RunRepository) Create(ctx context.Context, run *models.AutomationRun) error {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate run ID: %w", err)
		}

		run.ID = id.String()
	}

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	pendingJSON, err := json.Marshal(run.PendingNodes)
	if err != nil {
		return fmt.Errorf("failed to marshal pending nodes: %w", err)
	}

	payloadJSON, err := json.Marshal(run.TriggerPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	query := `
		INSERT INTO automation_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.AutomationID,
		run.AutomationVersionID,
		run.WorkspaceID,
		run.TriggerID,
		run.TriggerEventKey,
		run.OccurrenceID,
		run.SubjectType,
		run.SubjectID,
		run.Status,
		pendingJSON,
		payloadJSON,
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return &persistence.RunError{Op: "Create", RunID: run.ID, Err: persistence.ErrDuplicateRun}
		}

		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.AutomationRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM automation_runs
		WHERE id = $1
	`

	run, err := r.scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.RunError{Op: "GetByID", RunID: id, Err: persistence.ErrRunNotFound}
		}

		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return run, nil
}

func (r *RunRepository) Update(ctx context.Context, run *models.AutomationRun) error {
	pendingJSON, err := json.Marshal(run.PendingNodes)
	if err != nil {
		return fmt.Errorf("failed to marshal pending nodes: %w", err)
	}

	query := `
		UPDATE automation_runs
		SET status = $2, pending_nodes = $3, error = $4, finished_at = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		pendingJSON,
		run.Error,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return &persistence.RunError{Op: "Update", RunID: run.ID, Err: persistence.ErrRunNotFound}
	}

	return nil
}

func (r *RunRepository) ListByAutomation(ctx context.Context, automationID string) ([]*models.AutomationRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM automation_runs
		WHERE automation_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, automationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	runs := make([]*models.AutomationRun, 0)

	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) scanRun(scanner interface {
	Scan(dest ...any) error
}) (*models.AutomationRun, error) {
	var (
		run         models.AutomationRun
		pendingJSON []byte
		payloadJSON []byte
	)

	err := scanner.Scan(
		&run.ID,
		&run.AutomationID,
		&run.AutomationVersionID,
		&run.WorkspaceID,
		&run.TriggerID,
		&run.TriggerEventKey,
		&run.OccurrenceID,
		&run.SubjectType,
		&run.SubjectID,
		&run.Status,
		&pendingJSON,
		&payloadJSON,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(pendingJSON, &run.PendingNodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending nodes: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &run.TriggerPayload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger payload: %w", err)
		}
	}

	return &run, nil
}
