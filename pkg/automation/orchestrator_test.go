package automation_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/luisscruza/optiflow-sub005/pkg/automation"
	"github.com/luisscruza/optiflow-sub005/pkg/channels/gochannel"
	"github.com/luisscruza/optiflow-sub005/pkg/eventbus"
	"github.com/luisscruza/optiflow-sub005/pkg/events"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence/file"
	"github.com/luisscruza/optiflow-sub005/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// engine wires the orchestrator to an in-process worker over a
// gochannel bus, mirroring the production worker loop.
type engine struct {
	persistence  persistence.Persistence
	bus          *eventbus.WatermillEventBus
	orchestrator *automation.Orchestrator
	publishing   *automation.PublishingService
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	logger := testLogger()

	p, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes()

	matcher := automation.NewTriggerMatcher(p, logger)
	orchestrator := automation.NewOrchestrator(p, bus, matcher, nil, logger)

	executor := automation.NewExecutor("test-worker", p, reg, automation.ExecutorConfig{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		AttemptTimeout:  5 * time.Second,
	}, logger)

	bus.Handle(events.NodeActivationEvent, func(ctx context.Context, event any) error {
		activation, ok := event.(*events.NodeActivation)
		require.True(t, ok)

		nodeRun, err := executor.Execute(ctx, activation.RunID, activation.NodeID)
		if err != nil || nodeRun == nil {
			return err
		}

		return orchestrator.CompleteNode(ctx, nodeRun)
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, bus.Subscribe(ctx))

	return &engine{
		persistence:  p,
		bus:          bus,
		orchestrator: orchestrator,
		publishing:   automation.NewPublishingService(p, reg, logger),
	}
}

// seed creates an active automation with the given published
// definition and a wildcard stage-entered trigger.
func (e *engine) seed(t *testing.T, definition *models.Definition) (*models.Automation, *models.AutomationTrigger) {
	t.Helper()

	ctx := context.Background()

	a := &models.Automation{WorkspaceID: "ws1", Name: "Lab notification", IsActive: true}
	require.NoError(t, e.persistence.AutomationRepository().Save(ctx, a))

	version, err := e.publishing.CreateDraft(ctx, a.ID, definition, "user-1")
	require.NoError(t, err)

	_, err = e.publishing.Publish(ctx, a.ID, version.Version)
	require.NoError(t, err)

	trigger := &models.AutomationTrigger{
		AutomationID: a.ID,
		WorkspaceID:  "ws1",
		EventKey:     "workflow.stage_entered",
		IsActive:     true,
	}
	require.NoError(t, e.persistence.TriggerRepository().Save(ctx, trigger))

	return a, trigger
}

func (e *engine) waitTerminal(t *testing.T, runID string) *models.AutomationRun {
	t.Helper()

	var run *models.AutomationRun

	require.Eventually(t, func() bool {
		var err error

		run, err = e.persistence.RunRepository().GetByID(context.Background(), runID)

		return err == nil && run.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)

	return run
}

func event(occurrenceID string, payload map[string]any) *models.TriggerEvent {
	return &models.TriggerEvent{
		OccurrenceID: occurrenceID,
		EventKey:     "workflow.stage_entered",
		WorkspaceID:  "ws1",
		SubjectType:  "job",
		SubjectID:    "job-42",
		Payload:      payload,
		OccurredAt:   time.Now().UTC(),
	}
}

func TestOrchestrator_LinearRunDeliversWebhook(t *testing.T) {
	e := newEngine(t)

	var (
		mu     sync.Mutex
		bodies []map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)

		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e.seed(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "notify", Type: models.NodeTypeWebhook, Config: map[string]any{
				"url":  server.URL,
				"body": `{"job": "{{job.id}}", "stage": "{{stage.name}}"}`,
			}},
		},
		Edges: []*models.Edge{{From: "start", To: "notify"}},
	})

	runIDs, err := e.orchestrator.Emit(context.Background(), event("occ-1", map[string]any{
		"job":   map[string]any{"id": float64(42)},
		"stage": map[string]any{"name": "Quality Control"},
	}))
	require.NoError(t, err)
	require.Len(t, runIDs, 1)

	run := e.waitTerminal(t, runIDs[0])
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Empty(t, run.PendingNodes)
	require.NotNil(t, run.FinishedAt)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Equal(t, "42", bodies[0]["job"])
	assert.Equal(t, "Quality Control", bodies[0]["stage"])
}

func TestOrchestrator_DuplicateOccurrenceCreatesOneRun(t *testing.T) {
	e := newEngine(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a, _ := e.seed(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "notify", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL}},
		},
		Edges: []*models.Edge{{From: "start", To: "notify"}},
	})

	first, err := e.orchestrator.Emit(context.Background(), event("occ-1", nil))
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := e.orchestrator.Emit(context.Background(), event("occ-1", nil))
	require.NoError(t, err)
	assert.Empty(t, second, "redelivery of the same occurrence must not create a run")

	third, err := e.orchestrator.Emit(context.Background(), event("occ-2", nil))
	require.NoError(t, err)
	assert.Len(t, third, 1, "a new occurrence is a new run")

	e.waitTerminal(t, first[0])
	e.waitTerminal(t, third[0])

	runs, err := e.persistence.RunRepository().ListByAutomation(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestOrchestrator_ConditionSkipsDeadBranch(t *testing.T) {
	e := newEngine(t)

	var rushCalls, normalCalls atomic.Int32

	rushServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		rushCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer rushServer.Close()

	normalServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		normalCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer normalServer.Close()

	e.seed(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "is_rush", Type: models.NodeTypeCondition, Config: map[string]any{"expression": "{{job.rush}}"}},
			{ID: "rush_alert", Type: models.NodeTypeWebhook, Config: map[string]any{"url": rushServer.URL}},
			{ID: "normal_alert", Type: models.NodeTypeWebhook, Config: map[string]any{"url": normalServer.URL}},
		},
		Edges: []*models.Edge{
			{From: "start", To: "is_rush"},
			{From: "is_rush", To: "rush_alert", SourceHandle: "true"},
			{From: "is_rush", To: "normal_alert", SourceHandle: "false"},
		},
	})

	runIDs, err := e.orchestrator.Emit(context.Background(), event("occ-1", map[string]any{
		"job": map[string]any{"id": float64(42), "rush": true},
	}))
	require.NoError(t, err)
	require.Len(t, runIDs, 1)

	run := e.waitTerminal(t, runIDs[0])
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	assert.Equal(t, int32(1), rushCalls.Load())
	assert.Equal(t, int32(0), normalCalls.Load())

	nodeRuns, err := e.persistence.NodeRunRepository().ListByRun(context.Background(), runIDs[0])
	require.NoError(t, err)

	statuses := make(map[string]models.NodeRunStatus, len(nodeRuns))
	for _, nodeRun := range nodeRuns {
		statuses[nodeRun.NodeID] = nodeRun.Status
	}

	assert.Equal(t, models.NodeRunStatusSucceeded, statuses["start"])
	assert.Equal(t, models.NodeRunStatusSucceeded, statuses["is_rush"])
	assert.Equal(t, models.NodeRunStatusSucceeded, statuses["rush_alert"])
	assert.Equal(t, models.NodeRunStatusSkipped, statuses["normal_alert"])
}

func TestOrchestrator_DiamondJoinRunsOnceAfterBothBranches(t *testing.T) {
	e := newEngine(t)

	var joinCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/join" {
			joinCalls.Add(1)
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e.seed(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "is_rush", Type: models.NodeTypeCondition, Config: map[string]any{"expression": "{{job.rush}}"}},
			{ID: "rush_alert", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL + "/rush"}},
			{ID: "normal_alert", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL + "/normal"}},
			{ID: "log_done", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL + "/join"}},
		},
		Edges: []*models.Edge{
			{From: "start", To: "is_rush"},
			{From: "is_rush", To: "rush_alert", SourceHandle: "true"},
			{From: "is_rush", To: "normal_alert", SourceHandle: "false"},
			{From: "rush_alert", To: "log_done"},
			{From: "normal_alert", To: "log_done"},
		},
	})

	runIDs, err := e.orchestrator.Emit(context.Background(), event("occ-1", map[string]any{
		"job": map[string]any{"rush": false},
	}))
	require.NoError(t, err)
	require.Len(t, runIDs, 1)

	run := e.waitTerminal(t, runIDs[0])
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	// The join fires once: the dead branch resolves to skipped, the
	// live branch succeeds, and one live edge is enough.
	assert.Equal(t, int32(1), joinCalls.Load())
}

func TestOrchestrator_NodeFailureFailsRunAndSkipsRest(t *testing.T) {
	e := newEngine(t)

	var attempts atomic.Int32

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("downstream node must not execute after upstream failure")
	}))
	defer downstream.Close()

	e.seed(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "flaky", Type: models.NodeTypeWebhook, Config: map[string]any{"url": failing.URL}},
			{ID: "after", Type: models.NodeTypeWebhook, Config: map[string]any{"url": downstream.URL}},
		},
		Edges: []*models.Edge{
			{From: "start", To: "flaky"},
			{From: "flaky", To: "after"},
		},
	})

	runIDs, err := e.orchestrator.Emit(context.Background(), event("occ-1", nil))
	require.NoError(t, err)
	require.Len(t, runIDs, 1)

	run := e.waitTerminal(t, runIDs[0])
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "flaky")
	assert.Equal(t, int32(5), attempts.Load(), "retryable node gets the full attempt budget")

	nodeRuns, err := e.persistence.NodeRunRepository().ListByRun(context.Background(), runIDs[0])
	require.NoError(t, err)

	for _, nodeRun := range nodeRuns {
		switch nodeRun.NodeID {
		case "flaky":
			assert.Equal(t, models.NodeRunStatusFailed, nodeRun.Status)
			assert.Equal(t, 5, nodeRun.Attempts)
		case "after":
			assert.Equal(t, models.NodeRunStatusSkipped, nodeRun.Status)
		}
	}
}

func TestOrchestrator_DeadlockedDefinitionFailsRun(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	// A cyclic definition is normally rejected at draft time; store it
	// directly to exercise the runtime safety net.
	a := &models.Automation{WorkspaceID: "ws1", Name: "Broken definition", IsActive: true}
	require.NoError(t, e.persistence.AutomationRepository().Save(ctx, a))

	version := &models.AutomationVersion{
		AutomationID: a.ID,
		Version:      1,
		Definition: models.Definition{
			Nodes: []*models.Node{
				{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
				{ID: "a", Type: models.NodeTypeWebhook, Config: map[string]any{"url": "https://x.test"}},
				{ID: "b", Type: models.NodeTypeWebhook, Config: map[string]any{"url": "https://x.test"}},
			},
			Edges: []*models.Edge{
				{From: "start", To: "a"},
				{From: "a", To: "b"},
				{From: "b", To: "a"},
			},
		},
	}
	require.NoError(t, e.persistence.VersionRepository().Create(ctx, version))
	require.NoError(t, e.persistence.AutomationRepository().SetPublishedVersion(ctx, a.ID, 1))
	require.NoError(t, e.persistence.TriggerRepository().Save(ctx, &models.AutomationTrigger{
		AutomationID: a.ID,
		WorkspaceID:  "ws1",
		EventKey:     "workflow.stage_entered",
		IsActive:     true,
	}))

	_, err := e.orchestrator.Emit(ctx, event("occ-1", nil))
	require.Error(t, err)

	var deadlock *automation.DeadlockError

	require.ErrorAs(t, err, &deadlock)

	run, err := e.persistence.RunRepository().GetByID(ctx, deadlock.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestOrchestrator_RepublishDoesNotRebindExistingRuns(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		paths []string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a, _ := e.seed(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "notify", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL + "/v1"}},
		},
		Edges: []*models.Edge{{From: "start", To: "notify"}},
	})

	first, err := e.orchestrator.Emit(ctx, event("occ-1", nil))
	require.NoError(t, err)
	require.Len(t, first, 1)

	run1 := e.waitTerminal(t, first[0])
	require.Equal(t, models.RunStatusCompleted, run1.Status)

	// Publish a second version pointing somewhere else.
	draft, err := e.publishing.CreateDraft(ctx, a.ID, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "notify", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL + "/v2"}},
		},
		Edges: []*models.Edge{{From: "start", To: "notify"}},
	}, "user-1")
	require.NoError(t, err)

	_, err = e.publishing.Publish(ctx, a.ID, draft.Version)
	require.NoError(t, err)

	// The finished run stays bound to the snapshot it was created with.
	reloaded, err := e.persistence.RunRepository().GetByID(ctx, first[0])
	require.NoError(t, err)
	assert.Equal(t, run1.AutomationVersionID, reloaded.AutomationVersionID)

	second, err := e.orchestrator.Emit(ctx, event("occ-2", nil))
	require.NoError(t, err)
	require.Len(t, second, 1)

	run2 := e.waitTerminal(t, second[0])
	assert.Equal(t, draft.ID, run2.AutomationVersionID)
	assert.NotEqual(t, run1.AutomationVersionID, run2.AutomationVersionID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/v1", "/v2"}, paths)
}

// inlineBus executes activations synchronously inside Publish, the
// tightest consumer possible. It only makes progress when the
// orchestrator publishes after releasing the run lock: a publish made
// while holding it would re-enter CompleteNode on the same mutex.
type inlineBus struct {
	executor     *automation.Executor
	orchestrator *automation.Orchestrator
}

func (b *inlineBus) GenerateID() string { return watermill.NewULID() }

func (b *inlineBus) Handle(_ events.EventType, _ eventbus.EventHandler) {}

func (b *inlineBus) Subscribe(_ context.Context) error { return nil }

func (b *inlineBus) Close() error { return nil }

func (b *inlineBus) Publish(ctx context.Context, _ string, event eventbus.Event) error {
	activation, ok := event.(*events.NodeActivation)
	if !ok {
		return nil
	}

	nodeRun, err := b.executor.Execute(ctx, activation.RunID, activation.NodeID)
	if err != nil || nodeRun == nil {
		return err
	}

	return b.orchestrator.CompleteNode(ctx, nodeRun)
}

func TestOrchestrator_PublishesOutsideRunLock(t *testing.T) {
	logger := testLogger()
	ctx := context.Background()

	p, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bus := &inlineBus{}
	matcher := automation.NewTriggerMatcher(p, logger)
	orchestrator := automation.NewOrchestrator(p, bus, matcher, nil, logger)
	bus.orchestrator = orchestrator
	bus.executor = automation.NewExecutor("test-worker", p, reg, automation.ExecutorConfig{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		AttemptTimeout:  5 * time.Second,
	}, logger)

	publishing := automation.NewPublishingService(p, reg, logger)

	a := &models.Automation{WorkspaceID: "ws1", Name: "Lab notification", IsActive: true}
	require.NoError(t, p.AutomationRepository().Save(ctx, a))

	version, err := publishing.CreateDraft(ctx, a.ID, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "first", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL}},
			{ID: "second", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL}},
		},
		Edges: []*models.Edge{
			{From: "start", To: "first"},
			{From: "first", To: "second"},
		},
	}, "user-1")
	require.NoError(t, err)

	_, err = publishing.Publish(ctx, a.ID, version.Version)
	require.NoError(t, err)

	require.NoError(t, p.TriggerRepository().Save(ctx, &models.AutomationTrigger{
		AutomationID: a.ID,
		WorkspaceID:  "ws1",
		EventKey:     "workflow.stage_entered",
		IsActive:     true,
	}))

	runIDs, err := orchestrator.Emit(ctx, event("occ-1", nil))
	require.NoError(t, err)
	require.Len(t, runIDs, 1)

	// The synchronous consumer drove the run to completion before Emit
	// returned.
	run, err := p.RunRepository().GetByID(ctx, runIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Empty(t, run.PendingNodes)
}

func TestOrchestrator_ConcurrentEventsAdvanceIndependently(t *testing.T) {
	e := newEngine(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e.seed(t, &models.Definition{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStageEntered, Config: map[string]any{}},
			{ID: "notify", Type: models.NodeTypeWebhook, Config: map[string]any{"url": server.URL}},
		},
		Edges: []*models.Edge{{From: "start", To: "notify"}},
	})

	const runs = 8

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		runIDs []string
	)

	for i := 0; i < runs; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			created, err := e.orchestrator.Emit(context.Background(), &models.TriggerEvent{
				OccurrenceID: watermill.NewULID(),
				EventKey:     "workflow.stage_entered",
				WorkspaceID:  "ws1",
				SubjectType:  "job",
				SubjectID:    watermill.NewULID(),
				OccurredAt:   time.Now().UTC(),
			})
			assert.NoError(t, err)

			mu.Lock()
			runIDs = append(runIDs, created...)
			mu.Unlock()
		}(i)
	}

	wg.Wait()
	require.Len(t, runIDs, runs)

	for _, runID := range runIDs {
		run := e.waitTerminal(t, runID)
		assert.Equal(t, models.RunStatusCompleted, run.Status)
	}
}
