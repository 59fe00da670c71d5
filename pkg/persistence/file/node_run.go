package file

import (
	"context"

	"github.com/google/uuid"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// NodeRunRepository stores node runs keyed by (run id, node id) so a
// node's outcome is a single addressable record across retries.
type NodeRunRepository struct {
	persistence *Persistence
}

func nodeRunKey(runID, nodeID string) string {
	return runID + "_" + nodeID
}

func (r *NodeRunRepository) Save(_ context.Context, nodeRun *models.AutomationNodeRun) error {
	r.persistence.mu.Lock()
	defer r.persistence.mu.Unlock()

	if nodeRun.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		nodeRun.ID = id.String()
	}

	return r.persistence.writeJSON("node_runs", nodeRunKey(nodeRun.RunID, nodeRun.NodeID), nodeRun)
}

func (r *NodeRunRepository) GetByRunAndNode(_ context.Context, runID, nodeID string) (*models.AutomationNodeRun, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	nodeRun := &models.AutomationNodeRun{}
	if err := r.persistence.readJSON("node_runs", nodeRunKey(runID, nodeID), nodeRun, persistence.ErrNodeRunNotFound); err != nil {
		return nil, err
	}

	return nodeRun, nil
}

func (r *NodeRunRepository) ListByRun(_ context.Context, runID string) ([]*models.AutomationNodeRun, error) {
	r.persistence.mu.RLock()
	defer r.persistence.mu.RUnlock()

	ids, err := r.persistence.listIDs("node_runs")
	if err != nil {
		return nil, err
	}

	nodeRuns := make([]*models.AutomationNodeRun, 0)

	for _, id := range ids {
		nodeRun := &models.AutomationNodeRun{}
		if err := r.persistence.readJSON("node_runs", id, nodeRun, persistence.ErrNodeRunNotFound); err != nil {
			return nil, err
		}

		if nodeRun.RunID == runID {
			nodeRuns = append(nodeRuns, nodeRun)
		}
	}

	return nodeRuns, nil
}
