package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/luisscruza/optiflow-sub005/pkg/automation"
	"github.com/luisscruza/optiflow-sub005/pkg/eventbus"
	"github.com/luisscruza/optiflow-sub005/pkg/events"
	"github.com/luisscruza/optiflow-sub005/pkg/otelhelper"
	"github.com/luisscruza/optiflow-sub005/pkg/persistence"
	"github.com/luisscruza/optiflow-sub005/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// WorkerManager consumes node activation events, executes the node and
// reports the terminal outcome back to the orchestrator.
type WorkerManager struct {
	id           string
	logger       *slog.Logger
	persistence  persistence.Persistence
	eventBus     eventbus.EventBus
	executor     *automation.Executor
	orchestrator *automation.Orchestrator
	tracer       trace.Tracer
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	registry *registry.Registry,
	logger *slog.Logger,
) *WorkerManager {
	workerLogger := logger.With("module", "optiflow-worker", "worker_id", id)

	matcher := automation.NewTriggerMatcher(persistence, workerLogger)

	return &WorkerManager{
		id:           id,
		logger:       workerLogger,
		persistence:  persistence,
		eventBus:     eventBus,
		executor:     automation.NewExecutor(id, persistence, registry, automation.DefaultExecutorConfig(), workerLogger),
		orchestrator: automation.NewOrchestrator(persistence, eventBus, matcher, nil, workerLogger),
		tracer:       noop.NewTracerProvider().Tracer("optiflow-worker"),
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	tracer, err := otelhelper.NewTracer(ctx, "optiflow-worker")
	if err != nil {
		w.logger.WarnContext(ctx, "Tracing disabled", "error", err)

		tracer = noop.NewTracerProvider().Tracer("optiflow-worker")
	}

	w.tracer = tracer

	w.eventBus.Handle(events.NodeActivationEvent, w.handleNodeActivation)

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleNodeActivation(ctx context.Context, event any) error {
	activation, ok := event.(*events.NodeActivation)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for NodeActivation")

		return nil
	}

	logger := w.logger.With(
		"run_id", activation.RunID,
		"node_id", activation.NodeID,
		"event_id", activation.ID,
	)
	logger.InfoContext(ctx, "Processing node activation")

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "node.execute",
		attribute.String(otelhelper.RunIDKey, activation.RunID),
		attribute.String(otelhelper.NodeIDKey, activation.NodeID),
		attribute.String(otelhelper.AutomationIDKey, activation.AutomationID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	nodeRun, err := w.executor.Execute(ctx, activation.RunID, activation.NodeID)
	if err != nil {
		// Infrastructure failure before any attempt was recorded; nack
		// so the activation is redelivered.
		logger.ErrorContext(ctx, "Failed to execute node", "error", err)
		otelhelper.SetError(span, err)

		return err
	}

	if nodeRun == nil {
		// The run reached a terminal state before this activation was
		// delivered; ack the redelivery, there is nothing to advance.
		logger.DebugContext(ctx, "Run already terminal, dropping activation")

		return nil
	}

	if err := w.orchestrator.CompleteNode(ctx, nodeRun); err != nil {
		var deadlock *automation.DeadlockError
		if errors.As(err, &deadlock) {
			// The run is already failed; redelivery cannot help.
			logger.ErrorContext(ctx, "Run deadlocked", "error", err)

			return nil
		}

		logger.ErrorContext(ctx, "Failed to advance run", "error", err)

		return err
	}

	return nil
}
