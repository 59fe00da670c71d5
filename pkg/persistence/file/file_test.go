package file

import (
	"context"
	"testing"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	p, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	return p
}

func TestAutomationRepository_SaveAndGet(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	automation := &models.Automation{
		WorkspaceID: "ws1",
		Name:        "Notify lab on stage entry",
		IsActive:    true,
	}

	require.NoError(t, p.AutomationRepository().Save(ctx, automation))
	require.NotEmpty(t, automation.ID)

	loaded, err := p.AutomationRepository().GetByID(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, automation.Name, loaded.Name)
	assert.True(t, loaded.IsActive)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestAutomationRepository_DeleteIsSoft(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	automation := &models.Automation{WorkspaceID: "ws1", Name: "To be removed"}
	require.NoError(t, p.AutomationRepository().Save(ctx, automation))
	require.NoError(t, p.AutomationRepository().Delete(ctx, automation.ID))

	_, err := p.AutomationRepository().GetByID(ctx, automation.ID)
	assert.ErrorIs(t, err, persistence.ErrAutomationNotFound)
}

func TestVersionRepository_MonotonicNumbers(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	latest, err := p.VersionRepository().LatestNumber(ctx, "auto-1")
	require.NoError(t, err)
	assert.Equal(t, 0, latest)

	for i := 1; i <= 3; i++ {
		require.NoError(t, p.VersionRepository().Create(ctx, &models.AutomationVersion{
			AutomationID: "auto-1",
			Version:      i,
			Definition:   models.Definition{},
		}))
	}

	latest, err = p.VersionRepository().LatestNumber(ctx, "auto-1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest)

	version, err := p.VersionRepository().GetByNumber(ctx, "auto-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, version.Version)
}

func TestTriggerRepository_ListByEventKey(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.TriggerRepository().Save(ctx, &models.AutomationTrigger{
		AutomationID: "auto-1", WorkspaceID: "ws1", EventKey: "workflow.stage_entered", IsActive: true,
	}))
	require.NoError(t, p.TriggerRepository().Save(ctx, &models.AutomationTrigger{
		AutomationID: "auto-2", WorkspaceID: "ws1", EventKey: "job.created", IsActive: true,
	}))
	require.NoError(t, p.TriggerRepository().Save(ctx, &models.AutomationTrigger{
		AutomationID: "auto-3", WorkspaceID: "ws2", EventKey: "workflow.stage_entered", IsActive: true,
	}))

	triggers, err := p.TriggerRepository().ListByEventKey(ctx, "ws1", "workflow.stage_entered")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, "auto-1", triggers[0].AutomationID)
}

func TestRunRepository_DuplicateOccurrence(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	run := &models.AutomationRun{
		AutomationID: "auto-1",
		TriggerID:    "trig-1",
		SubjectID:    "job-42",
		OccurrenceID: "occ-1",
		Status:       models.RunStatusRunning,
	}
	require.NoError(t, p.RunRepository().Create(ctx, run))

	duplicate := &models.AutomationRun{
		AutomationID: "auto-1",
		TriggerID:    "trig-1",
		SubjectID:    "job-42",
		OccurrenceID: "occ-1",
		Status:       models.RunStatusRunning,
	}
	err := p.RunRepository().Create(ctx, duplicate)
	assert.ErrorIs(t, err, persistence.ErrDuplicateRun)

	// A different occurrence of the same subject creates a new run.
	other := &models.AutomationRun{
		AutomationID: "auto-1",
		TriggerID:    "trig-1",
		SubjectID:    "job-42",
		OccurrenceID: "occ-2",
		Status:       models.RunStatusRunning,
	}
	require.NoError(t, p.RunRepository().Create(ctx, other))
}

func TestNodeRunRepository_AttemptsOverwriteSameRecord(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	nodeRun := &models.AutomationNodeRun{
		RunID:    "run-1",
		NodeID:   "node-1",
		NodeType: models.NodeTypeWebhook,
		Status:   models.NodeRunStatusRunning,
		Attempts: 1,
		Error:    "HTTP 500",
	}
	require.NoError(t, p.NodeRunRepository().Save(ctx, nodeRun))

	nodeRun.Attempts = 2
	nodeRun.Error = "HTTP 502"
	require.NoError(t, p.NodeRunRepository().Save(ctx, nodeRun))

	loaded, err := p.NodeRunRepository().GetByRunAndNode(ctx, "run-1", "node-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Attempts)
	assert.Equal(t, "HTTP 502", loaded.Error)

	all, err := p.NodeRunRepository().ListByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
