package automation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/luisscruza/optiflow-sub005/pkg/eventbus"
	"github.com/luisscruza/optiflow-sub005/pkg/events"
	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
)

// Orchestrator creates runs for trigger events and advances run state
// as node completions arrive. It never executes node work itself; it
// publishes NodeActivation events that workers pick up.
//
// All state transitions for a run happen under that run's mutex, so
// concurrent completions from the same run serialize while different
// runs advance in parallel. The mutex covers state transitions only:
// events produced while it is held are collected into an outbox and
// published to the bus after it is released, so a slow broker never
// stalls run-state progress.
type Orchestrator struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	matcher     *TriggerMatcher
	deduper     OccurrenceDeduper
	logger      *slog.Logger

	locks sync.Map // run id -> *sync.Mutex
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(p persistence.Persistence, bus eventbus.EventBus, matcher *TriggerMatcher, deduper OccurrenceDeduper, logger *slog.Logger) *Orchestrator {
	if deduper == nil {
		deduper = NoopDeduper{}
	}

	return &Orchestrator{
		persistence: p,
		eventBus:    bus,
		matcher:     matcher,
		deduper:     deduper,
		logger:      logger,
	}
}

// Emit matches the event against registered triggers and creates one
// run per match. Duplicate deliveries of the same occurrence are
// absorbed: the run store's unique constraint on (trigger, subject,
// occurrence) makes creation idempotent. Returns the ids of the runs
// actually created.
func (o *Orchestrator) Emit(ctx context.Context, event *models.TriggerEvent) ([]string, error) {
	matches, err := o.matcher.Match(ctx, event)
	if err != nil {
		return nil, err
	}

	runIDs := make([]string, 0, len(matches))

	for _, match := range matches {
		seen, err := o.deduper.Seen(ctx, match.Trigger.ID, event.SubjectID, event.OccurrenceID)
		if err != nil {
			// The deduper is a fast path only; fall through to the
			// persistence constraint.
			o.logger.WarnContext(ctx, "Occurrence dedup check failed", "error", err)
		} else if seen {
			o.logger.DebugContext(ctx, "Skipping duplicate occurrence",
				"trigger_id", match.Trigger.ID, "occurrence_id", event.OccurrenceID)

			continue
		}

		runID, err := o.startRun(ctx, match, event)
		if err != nil {
			if persistence.IsDuplicateRun(err) {
				o.logger.DebugContext(ctx, "Run already exists for occurrence",
					"trigger_id", match.Trigger.ID, "occurrence_id", event.OccurrenceID)

				continue
			}

			return runIDs, err
		}

		runIDs = append(runIDs, runID)
	}

	return runIDs, nil
}

func (o *Orchestrator) startRun(ctx context.Context, match *TriggerMatch, event *models.TriggerEvent) (string, error) {
	graph := models.NewGraph(&match.Version.Definition)
	triggerNode := graph.TriggerNode()

	run := &models.AutomationRun{
		AutomationID:        match.Automation.ID,
		AutomationVersionID: match.Version.ID,
		WorkspaceID:         event.WorkspaceID,
		TriggerID:           match.Trigger.ID,
		TriggerEventKey:     event.EventKey,
		OccurrenceID:        event.OccurrenceID,
		SubjectType:         event.SubjectType,
		SubjectID:           event.SubjectID,
		Status:              models.RunStatusRunning,
		TriggerPayload:      event.Payload,
	}

	for _, node := range graph.Nodes() {
		if node.ID != triggerNode.ID {
			run.AddPendingNode(node.ID)
		}
	}

	if err := o.persistence.RunRepository().Create(ctx, run); err != nil {
		return "", err
	}

	// The trigger node is satisfied by the event itself.
	now := time.Now().UTC()
	triggerRun := &models.AutomationNodeRun{
		RunID:      run.ID,
		NodeID:     triggerNode.ID,
		NodeType:   triggerNode.Type,
		Status:     models.NodeRunStatusSucceeded,
		Output:     event.Payload,
		StartedAt:  &now,
		FinishedAt: &now,
	}

	if err := o.persistence.NodeRunRepository().Save(ctx, triggerRun); err != nil {
		return "", fmt.Errorf("failed to record trigger node run: %w", err)
	}

	o.logger.InfoContext(ctx, "Run created",
		"run_id", run.ID,
		"automation_id", run.AutomationID,
		"version", match.Version.Version,
		"trigger_id", run.TriggerID,
		"subject_id", run.SubjectID)

	outbox := []eventbus.Event{&events.RunCreated{
		BaseEvent:    o.baseEvent(events.RunCreatedEvent, run.AutomationID),
		RunID:        run.ID,
		TriggerID:    run.TriggerID,
		OccurrenceID: run.OccurrenceID,
	}}

	mutex := o.lockRun(run.ID)
	mutex.Lock()
	settled, err := o.settle(ctx, run, graph)
	mutex.Unlock()

	o.publishOutbox(ctx, run.ID, append(outbox, settled...))

	if err != nil {
		return run.ID, err
	}

	return run.ID, nil
}

// CompleteNode records a node's terminal outcome and advances the
// run: successors whose predecessors are now all terminal get
// dispatched, unreachable branches get skipped, and the run finishes
// when the pending set drains.
func (o *Orchestrator) CompleteNode(ctx context.Context, nodeRun *models.AutomationNodeRun) error {
	mutex := o.lockRun(nodeRun.RunID)
	mutex.Lock()
	outbox, err := o.advanceRun(ctx, nodeRun)
	mutex.Unlock()

	o.publishOutbox(ctx, nodeRun.RunID, outbox)

	return err
}

// advanceRun applies a node completion under the run lock and returns
// the events to publish once the lock is released.
func (o *Orchestrator) advanceRun(ctx context.Context, nodeRun *models.AutomationNodeRun) ([]eventbus.Event, error) {
	run, err := o.persistence.RunRepository().GetByID(ctx, nodeRun.RunID)
	if err != nil {
		return nil, err
	}

	if run.IsTerminal() {
		return nil, nil
	}

	graph, err := o.loadGraph(ctx, run)
	if err != nil {
		return nil, err
	}

	completion := &events.NodeCompletion{
		BaseEvent: o.baseEvent(events.NodeCompletionEvent, run.AutomationID),
		RunID:     nodeRun.RunID,
		NodeID:    nodeRun.NodeID,
		Status:    nodeRun.Status,
		Attempts:  nodeRun.Attempts,
		Error:     nodeRun.Error,
	}
	if nodeRun.StartedAt != nil && nodeRun.FinishedAt != nil {
		completion.DurationMs = nodeRun.FinishedAt.Sub(*nodeRun.StartedAt).Milliseconds()
	}

	outbox := []eventbus.Event{completion}

	if nodeRun.Status == models.NodeRunStatusFailed {
		failed, err := o.failRun(ctx, run, fmt.Sprintf("node %s failed after %d attempts: %s", nodeRun.NodeID, nodeRun.Attempts, nodeRun.Error))
		if failed != nil {
			outbox = append(outbox, failed)
		}

		return outbox, err
	}

	run.RemovePendingNode(nodeRun.NodeID)

	settled, err := o.settle(ctx, run, graph)

	return append(outbox, settled...), err
}

// settle drives the run to a stable state under the run lock: skip
// propagation to a fixpoint, dispatch of newly runnable nodes, then
// completion and deadlock checks. The caller publishes the returned
// events after releasing the lock.
func (o *Orchestrator) settle(ctx context.Context, run *models.AutomationRun, graph *models.Graph) ([]eventbus.Event, error) {
	nodeRuns, err := o.nodeRunsByID(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	// Skip propagation: a pending node with every incoming edge dead
	// can never execute. Skipping it may kill its successors' edges,
	// so iterate to a fixpoint.
	for changed := true; changed; {
		changed = false

		for _, nodeID := range slices.Clone(run.PendingNodes) {
			if nodeRuns[nodeID] != nil {
				continue
			}

			if !o.allEdgesDead(graph.Incoming(nodeID), nodeRuns) {
				continue
			}

			node := graph.Node(nodeID)
			now := time.Now().UTC()
			skipped := &models.AutomationNodeRun{
				RunID:      run.ID,
				NodeID:     nodeID,
				NodeType:   node.Type,
				Status:     models.NodeRunStatusSkipped,
				FinishedAt: &now,
			}

			if err := o.persistence.NodeRunRepository().Save(ctx, skipped); err != nil {
				return nil, fmt.Errorf("failed to record skipped node: %w", err)
			}

			nodeRuns[nodeID] = skipped
			run.RemovePendingNode(nodeID)

			changed = true
		}
	}

	if len(run.PendingNodes) == 0 {
		completed, err := o.completeRun(ctx, run)
		if completed == nil {
			return nil, err
		}

		return []eventbus.Event{completed}, err
	}

	var outbox []eventbus.Event

	dispatched := 0
	inFlight := 0

	for _, nodeID := range run.PendingNodes {
		if existing := nodeRuns[nodeID]; existing != nil {
			if !existing.IsTerminal() {
				inFlight++
			}

			continue
		}

		if !o.isRunnable(graph.Incoming(nodeID), nodeRuns) {
			continue
		}

		node := graph.Node(nodeID)
		pending := &models.AutomationNodeRun{
			RunID:    run.ID,
			NodeID:   nodeID,
			NodeType: node.Type,
			Status:   models.NodeRunStatusPending,
		}

		if err := o.persistence.NodeRunRepository().Save(ctx, pending); err != nil {
			return outbox, fmt.Errorf("failed to record pending node: %w", err)
		}

		outbox = append(outbox, &events.NodeActivation{
			BaseEvent: o.baseEvent(events.NodeActivationEvent, run.AutomationID),
			RunID:     run.ID,
			NodeID:    nodeID,
		})

		dispatched++
	}

	if err := o.persistence.RunRepository().Update(ctx, run); err != nil {
		return outbox, err
	}

	if dispatched == 0 && inFlight == 0 {
		deadlock := &DeadlockError{RunID: run.ID, PendingNodes: slices.Clone(run.PendingNodes)}

		failed, err := o.failRun(ctx, run, deadlock.Error())
		if failed != nil {
			outbox = append(outbox, failed)
		}

		if err != nil {
			return outbox, err
		}

		return outbox, deadlock
	}

	return outbox, nil
}

// isRunnable reports whether every incoming edge is resolved and at
// least one is live. Nodes with unresolved predecessors wait; join
// semantics require all branches to settle first.
func (o *Orchestrator) isRunnable(incoming []*models.Edge, nodeRuns map[string]*models.AutomationNodeRun) bool {
	live := false

	for _, edge := range incoming {
		source := nodeRuns[edge.From]
		if source == nil || !source.IsTerminal() {
			return false
		}

		if edgeLive(edge, source) {
			live = true
		}
	}

	return live
}

func (o *Orchestrator) allEdgesDead(incoming []*models.Edge, nodeRuns map[string]*models.AutomationNodeRun) bool {
	if len(incoming) == 0 {
		return false
	}

	for _, edge := range incoming {
		source := nodeRuns[edge.From]
		if source == nil || !source.IsTerminal() {
			return false
		}

		if edgeLive(edge, source) {
			return false
		}
	}

	return true
}

// edgeLive reports whether the edge activates: its source succeeded
// and the edge's handle matches the branch the source chose. An
// unlabeled edge activates on any success.
func edgeLive(edge *models.Edge, source *models.AutomationNodeRun) bool {
	if source.Status != models.NodeRunStatusSucceeded {
		return false
	}

	return edge.SourceHandle == "" || edge.SourceHandle == source.Branch
}

func (o *Orchestrator) completeRun(ctx context.Context, run *models.AutomationRun) (eventbus.Event, error) {
	now := time.Now().UTC()
	run.Status = models.RunStatusCompleted
	run.FinishedAt = &now

	if err := o.persistence.RunRepository().Update(ctx, run); err != nil {
		return nil, err
	}

	o.locks.Delete(run.ID)

	o.logger.InfoContext(ctx, "Run completed",
		"run_id", run.ID, "automation_id", run.AutomationID, "duration", now.Sub(run.StartedAt))

	return &events.RunCompleted{
		BaseEvent: o.baseEvent(events.RunCompletedEvent, run.AutomationID),
		RunID:     run.ID,
		Duration:  now.Sub(run.StartedAt),
	}, nil
}

// failRun marks the run failed and skips every pending node that has
// not started, so the run's node records account for the whole graph.
func (o *Orchestrator) failRun(ctx context.Context, run *models.AutomationRun, reason string) (eventbus.Event, error) {
	nodeRuns, err := o.nodeRunsByID(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	graph, err := o.loadGraph(ctx, run)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	for _, nodeID := range slices.Clone(run.PendingNodes) {
		existing := nodeRuns[nodeID]
		if existing != nil && existing.IsTerminal() {
			run.RemovePendingNode(nodeID)

			continue
		}

		if existing == nil {
			skipped := &models.AutomationNodeRun{
				RunID:      run.ID,
				NodeID:     nodeID,
				NodeType:   graph.Node(nodeID).Type,
				Status:     models.NodeRunStatusSkipped,
				FinishedAt: &now,
			}

			if err := o.persistence.NodeRunRepository().Save(ctx, skipped); err != nil {
				return nil, fmt.Errorf("failed to record skipped node: %w", err)
			}
		}

		run.RemovePendingNode(nodeID)
	}

	run.Status = models.RunStatusFailed
	run.Error = reason
	run.FinishedAt = &now

	if err := o.persistence.RunRepository().Update(ctx, run); err != nil {
		return nil, err
	}

	o.locks.Delete(run.ID)

	o.logger.WarnContext(ctx, "Run failed",
		"run_id", run.ID, "automation_id", run.AutomationID, "error", reason)

	return &events.RunFailed{
		BaseEvent: o.baseEvent(events.RunFailedEvent, run.AutomationID),
		RunID:     run.ID,
		Error:     reason,
		Duration:  now.Sub(run.StartedAt),
	}, nil
}

func (o *Orchestrator) loadGraph(ctx context.Context, run *models.AutomationRun) (*models.Graph, error) {
	version, err := o.persistence.VersionRepository().GetByID(ctx, run.AutomationVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load version snapshot for run %s: %w", run.ID, err)
	}

	return models.NewGraph(&version.Definition), nil
}

func (o *Orchestrator) nodeRunsByID(ctx context.Context, runID string) (map[string]*models.AutomationNodeRun, error) {
	all, err := o.persistence.NodeRunRepository().ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.AutomationNodeRun, len(all))
	for _, nodeRun := range all {
		byID[nodeRun.NodeID] = nodeRun
	}

	return byID, nil
}

func (o *Orchestrator) lockRun(runID string) *sync.Mutex {
	value, _ := o.locks.LoadOrStore(runID, &sync.Mutex{})

	return value.(*sync.Mutex)
}

func (o *Orchestrator) baseEvent(eventType events.EventType, automationID string) events.BaseEvent {
	return events.BaseEvent{
		ID:           o.eventBus.GenerateID(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		AutomationID: automationID,
	}
}

// publishOutbox publishes the collected events in order. Must not be
// called while holding a run mutex; publish failures are logged, not
// propagated, because run state is already persisted.
func (o *Orchestrator) publishOutbox(ctx context.Context, key string, outbox []eventbus.Event) {
	for _, event := range outbox {
		if err := o.eventBus.Publish(ctx, key, event); err != nil {
			o.logger.ErrorContext(ctx, "Failed to publish event",
				"event_type", event.GetType(), "key", key, "error", err)
		}
	}
}
