package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
	"github.com/luisscruza/optiflow-sub005/pkg/registry"
)

// ExecutorConfig controls the retry policy for node execution.
type ExecutorConfig struct {
	// MaxAttempts is the total attempt budget per node, including the
	// first attempt.
	MaxAttempts int

	// InitialInterval is the delay before the second attempt; each
	// further delay doubles up to MaxInterval.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// AttemptTimeout bounds a single node execution.
	AttemptTimeout time.Duration
}

// DefaultExecutorConfig returns the production retry policy.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxAttempts:     5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		AttemptTimeout:  10 * time.Second,
	}
}

// Executor runs a single node of a run, persisting every attempt on
// the node's run record. It does not touch run state; the caller
// feeds the terminal record to the orchestrator.
type Executor struct {
	workerID    string
	persistence persistence.Persistence
	registry    *registry.Registry
	config      ExecutorConfig
	logger      *slog.Logger
}

// NewExecutor creates a new node executor.
func NewExecutor(workerID string, p persistence.Persistence, r *registry.Registry, config ExecutorConfig, logger *slog.Logger) *Executor {
	return &Executor{
		workerID:    workerID,
		persistence: p,
		registry:    r,
		config:      config,
		logger:      logger,
	}
}

// Execute runs the node until it succeeds, exhausts its attempt
// budget, or hits a non-retryable failure. The returned record is
// terminal. A redelivered activation for an already-terminal node
// returns the existing record without re-executing; one for an
// already-terminal run returns a nil record with no error and the
// caller must drop it.
func (e *Executor) Execute(ctx context.Context, runID, nodeID string) (*models.AutomationNodeRun, error) {
	run, err := e.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if run.IsTerminal() {
		return nil, nil
	}

	existing, err := e.persistence.NodeRunRepository().GetByRunAndNode(ctx, runID, nodeID)
	if err != nil && !persistence.IsNotFound(err) {
		return nil, err
	}

	if existing != nil && existing.IsTerminal() {
		return existing, nil
	}

	version, err := e.persistence.VersionRepository().GetByID(ctx, run.AutomationVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load version snapshot: %w", err)
	}

	graph := models.NewGraph(&version.Definition)

	node := graph.Node(nodeID)
	if node == nil {
		return nil, &models.UnknownNodeError{NodeID: nodeID}
	}

	executionCtx, err := e.buildExecutionContext(ctx, run)
	if err != nil {
		return nil, err
	}

	nodeRun := existing
	if nodeRun == nil {
		nodeRun = &models.AutomationNodeRun{
			RunID:    runID,
			NodeID:   nodeID,
			NodeType: node.Type,
		}
	}

	nodeRun.Input = node.Config

	instance, err := e.registry.CreateNode(ctx, node.Type, node.ID, node.Config)
	if err != nil {
		// Construction failures are definition problems; retrying
		// cannot fix them.
		return e.finishFailed(ctx, nodeRun, 1, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.config.InitialInterval
	policy.MaxInterval = e.config.MaxInterval
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()

	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		started := time.Now().UTC()
		nodeRun.Attempts = attempt
		nodeRun.Status = models.NodeRunStatusRunning
		nodeRun.StartedAt = &started

		if err := e.persistence.NodeRunRepository().Save(ctx, nodeRun); err != nil {
			return nil, fmt.Errorf("failed to record attempt: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.config.AttemptTimeout)
		result, execErr := instance.Execute(attemptCtx, executionCtx)

		cancel()

		if execErr == nil {
			finished := time.Now().UTC()
			nodeRun.Status = models.NodeRunStatusSucceeded
			nodeRun.Error = ""
			nodeRun.FinishedAt = &finished

			if result != nil {
				nodeRun.Output = result.Output
				nodeRun.Branch = result.Branch
			}

			if err := e.persistence.NodeRunRepository().Save(ctx, nodeRun); err != nil {
				return nil, fmt.Errorf("failed to record success: %w", err)
			}

			e.logger.InfoContext(ctx, "Node succeeded",
				"run_id", runID, "node_id", nodeID, "attempts", attempt, "worker_id", e.workerID)

			return nodeRun, nil
		}

		nodeRun.Error = execErr.Error()

		if !instance.Retryable() || attempt == e.config.MaxAttempts {
			return e.finishFailed(ctx, nodeRun, attempt, execErr)
		}

		if err := e.persistence.NodeRunRepository().Save(ctx, nodeRun); err != nil {
			return nil, fmt.Errorf("failed to record failed attempt: %w", err)
		}

		wait := policy.NextBackOff()

		e.logger.WarnContext(ctx, "Node attempt failed, retrying",
			"run_id", runID, "node_id", nodeID, "attempt", attempt, "backoff", wait, "error", execErr)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// Unreachable: the loop always returns.
	return nodeRun, nil
}

func (e *Executor) finishFailed(ctx context.Context, nodeRun *models.AutomationNodeRun, attempts int, cause error) (*models.AutomationNodeRun, error) {
	finished := time.Now().UTC()
	nodeRun.Attempts = attempts
	nodeRun.Status = models.NodeRunStatusFailed
	nodeRun.Error = cause.Error()
	nodeRun.FinishedAt = &finished

	if err := e.persistence.NodeRunRepository().Save(ctx, nodeRun); err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}

	e.logger.WarnContext(ctx, "Node failed",
		"run_id", nodeRun.RunID, "node_id", nodeRun.NodeID, "attempts", attempts, "worker_id", e.workerID, "error", cause)

	return nodeRun, nil
}

// buildExecutionContext assembles the template context from the run's
// trigger payload and the outputs of every succeeded node so far.
func (e *Executor) buildExecutionContext(ctx context.Context, run *models.AutomationRun) (models.ExecutionContext, error) {
	nodeRuns, err := e.persistence.NodeRunRepository().ListByRun(ctx, run.ID)
	if err != nil {
		return models.ExecutionContext{}, err
	}

	outputs := make(map[string]map[string]any)

	for _, nodeRun := range nodeRuns {
		if nodeRun.Status == models.NodeRunStatusSucceeded {
			outputs[nodeRun.NodeID] = nodeRun.Output
		}
	}

	return models.ExecutionContext{
		RunID:        run.ID,
		AutomationID: run.AutomationID,
		WorkspaceID:  run.WorkspaceID,
		TriggerData:  run.TriggerPayload,
		NodeOutputs:  outputs,
	}, nil
}
