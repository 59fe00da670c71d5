package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// NodeRunRepository stores node runs keyed by (run id, node id).
// Retries upsert the same row, so Attempts and Error always reflect
// the latest attempt.
type NodeRunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const nodeRunColumns = `
	id
  , automation_run_id
  , node_id
  , node_type
  , status
  , attempts
  , input
  , output
  , branch
  , error
  , started_at
  , finished_at
`

func (r *NodeRunRepository) Save(ctx context.Context, nodeRun *models.AutomationNodeRun) error {
	if nodeRun.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate node run ID: %w", err)
		}

		nodeRun.ID = id.String()
	}

	inputJSON, err := json.Marshal(nodeRun.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	outputJSON, err := json.Marshal(nodeRun.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	query := `
		INSERT INTO automation_node_runs (` + nodeRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (automation_run_id, node_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			input = EXCLUDED.input,
			output = EXCLUDED.output,
			branch = EXCLUDED.branch,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.db.ExecContext(ctx, query,
		nodeRun.ID,
		nodeRun.RunID,
		nodeRun.NodeID,
		nodeRun.NodeType,
		nodeRun.Status,
		nodeRun.Attempts,
		inputJSON,
		outputJSON,
		nodeRun.Branch,
		nodeRun.Error,
		nodeRun.StartedAt,
		nodeRun.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save node run: %w", err)
	}

	return nil
}

func (r *NodeRunRepository) GetByRunAndNode(ctx context.Context, runID, nodeID string) (*models.AutomationNodeRun, error) {
	query := `
		SELECT ` + nodeRunColumns + `
		FROM automation_node_runs
		WHERE automation_run_id = $1 AND node_id = $2
	`

	nodeRun, err := r.scanNodeRun(r.db.QueryRowContext(ctx, query, runID, nodeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNodeRunNotFound
		}

		return nil, fmt.Errorf("failed to scan node run: %w", err)
	}

	return nodeRun, nil
}

func (r *NodeRunRepository) ListByRun(ctx context.Context, runID string) ([]*models.AutomationNodeRun, error) {
	query := `
		SELECT ` + nodeRunColumns + `
		FROM automation_node_runs
		WHERE automation_run_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node runs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	nodeRuns := make([]*models.AutomationNodeRun, 0)

	for rows.Next() {
		nodeRun, err := r.scanNodeRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node run: %w", err)
		}

		nodeRuns = append(nodeRuns, nodeRun)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node runs: %w", err)
	}

	return nodeRuns, nil
}

func (r *NodeRunRepository) scanNodeRun(scanner interface {
	Scan(dest ...any) error
}) (*models.AutomationNodeRun, error) {
	var (
		nodeRun               models.AutomationNodeRun
		inputJSON, outputJSON []byte
	)

	err := scanner.Scan(
		&nodeRun.ID,
		&nodeRun.RunID,
		&nodeRun.NodeID,
		&nodeRun.NodeType,
		&nodeRun.Status,
		&nodeRun.Attempts,
		&inputJSON,
		&outputJSON,
		&nodeRun.Branch,
		&nodeRun.Error,
		&nodeRun.StartedAt,
		&nodeRun.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &nodeRun.Input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input: %w", err)
		}
	}

	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &nodeRun.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}

	return &nodeRun, nil
}
