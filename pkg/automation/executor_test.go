package automation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luisscruza/optiflow-sub005/pkg/automation"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence/file"
	"github.com/luisscruza/optiflow-sub005/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutorFixture(t *testing.T, definition *models.Definition) (*automation.Executor, persistence.Persistence, *models.AutomationRun) {
	t.Helper()

	ctx := context.Background()
	logger := testLogger()

	p, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes()

	version := &models.AutomationVersion{
		AutomationID: "auto-1",
		Version:      1,
		Definition:   *definition,
	}
	require.NoError(t, p.VersionRepository().Create(ctx, version))

	run := &models.AutomationRun{
		AutomationID:        "auto-1",
		AutomationVersionID: version.ID,
		WorkspaceID:         "ws1",
		TriggerID:           "trig-1",
		TriggerEventKey:     "workflow.stage_entered",
		OccurrenceID:        "occ-1",
		SubjectType:         "job",
		SubjectID:           "job-42",
		Status:              models.RunStatusRunning,
		TriggerPayload:      map[string]any{"job": map[string]any{"id": float64(42)}},
	}

	for _, node := range definition.Nodes {
		if node.Type != models.NodeTypeStageEntered {
			run.AddPendingNode(node.ID)
		}
	}

	require.NoError(t, p.RunRepository().Create(ctx, run))

	executor := automation.NewExecutor("test-worker", p, reg, automation.ExecutorConfig{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		AttemptTimeout:  time.Second,
	}, logger)

	return executor, p, run
}

func TestExecutor_RetryableNodeExhaustsAttemptBudget(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	executor, p, run := newExecutorFixture(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "flaky", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL}},
		},
		Edges: []*models.Edge{{From: "start", To: "flaky"}},
	})

	nodeRun, err := executor.Execute(context.Background(), run.ID, "flaky")
	require.NoError(t, err)
	require.NotNil(t, nodeRun)

	assert.Equal(t, models.NodeRunStatusFailed, nodeRun.Status)
	assert.Equal(t, 5, nodeRun.Attempts)
	assert.Equal(t, int32(5), calls.Load())
	assert.Contains(t, nodeRun.Error, "503")

	// The record is queryable by (run, node) and reflects the last attempt.
	stored, err := p.NodeRunRepository().GetByRunAndNode(context.Background(), run.ID, "flaky")
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Attempts)
}

func TestExecutor_SucceedsAfterTransientFailures(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor, _, run := newExecutorFixture(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "flaky", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL}},
		},
		Edges: []*models.Edge{{From: "start", To: "flaky"}},
	})

	nodeRun, err := executor.Execute(context.Background(), run.ID, "flaky")
	require.NoError(t, err)

	assert.Equal(t, models.NodeRunStatusSucceeded, nodeRun.Status)
	assert.Equal(t, 3, nodeRun.Attempts)
	assert.Empty(t, nodeRun.Error)
}

func TestExecutor_ConditionFailureIsNotRetried(t *testing.T) {
	executor, _, run := newExecutorFixture(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "check", Type: models.NodeTypeCondition, Config: map[string]any{"expression": "{{job}}"}},
		},
		Edges: []*models.Edge{{From: "start", To: "check"}},
	})

	nodeRun, err := executor.Execute(context.Background(), run.ID, "check")
	require.NoError(t, err)

	assert.Equal(t, models.NodeRunStatusFailed, nodeRun.Status)
	assert.Equal(t, 1, nodeRun.Attempts, "condition nodes never retry")
}

func TestExecutor_TerminalNodeRunIsNotReExecuted(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor, _, run := newExecutorFixture(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "notify", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL}},
		},
		Edges: []*models.Edge{{From: "start", To: "notify"}},
	})

	first, err := executor.Execute(context.Background(), run.ID, "notify")
	require.NoError(t, err)
	require.Equal(t, models.NodeRunStatusSucceeded, first.Status)

	// Redelivered activation: same record, no second request.
	second, err := executor.Execute(context.Background(), run.ID, "notify")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_NodeOutputsFlowDownstream(t *testing.T) {
	ctx := context.Background()

	var received string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.URL.Query().Get("prev")

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	executor, p, run := newExecutorFixture(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "first", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL}},
			{ID: "second", Type: models.NodeTypeWebhook, Config: map[string]any{
				"url": server.URL + "?prev={{nodes.first.status_code}}",
			}},
		},
		Edges: []*models.Edge{
			{From: "start", To: "first"},
			{From: "first", To: "second"},
		},
	})

	firstRun, err := executor.Execute(ctx, run.ID, "first")
	require.NoError(t, err)
	require.Equal(t, models.NodeRunStatusSucceeded, firstRun.Status)
	require.NoError(t, p.NodeRunRepository().Save(ctx, firstRun))

	_, err = executor.Execute(ctx, run.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, "200", received)
}
