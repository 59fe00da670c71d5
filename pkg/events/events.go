// Package events defines the event types that drive run advancement.
package events

import (
	"time"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
)

type EventType string

// Bus topic for all engine events.
const Topic = "optiflow.automation.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunCreatedEvent     EventType = "automation.run.created"
	RunCompletedEvent   EventType = "automation.run.completed"
	RunFailedEvent      EventType = "automation.run.failed"
	NodeActivationEvent EventType = "automation.node.activation"
	NodeCompletionEvent EventType = "automation.node.completion"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	AutomationID string         `json:"automation_id"`
	WorkerID     string         `json:"worker_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RunCreated is published once per matched trigger firing.
type RunCreated struct {
	BaseEvent

	RunID        string `json:"run_id"`
	TriggerID    string `json:"trigger_id"`
	OccurrenceID string `json:"occurrence_id"`
}

func (e RunCreated) GetType() EventType { return RunCreatedEvent }

// NodeActivation instructs a worker to execute one node of a run. It
// is published only when every predecessor of the node is terminal.
type NodeActivation struct {
	BaseEvent

	RunID  string `json:"run_id"`
	NodeID string `json:"node_id"`
}

func (e NodeActivation) GetType() EventType { return NodeActivationEvent }

// NodeCompletion records the terminal outcome of one node dispatch.
type NodeCompletion struct {
	BaseEvent

	RunID      string               `json:"run_id"`
	NodeID     string               `json:"node_id"`
	Status     models.NodeRunStatus `json:"status"`
	Attempts   int                  `json:"attempts"`
	Error      string               `json:"error,omitempty"`
	DurationMs int64                `json:"duration_ms"`
}

func (e NodeCompletion) GetType() EventType { return NodeCompletionEvent }

// RunCompleted is published when a run's pending set drains.
type RunCompleted struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Duration time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType { return RunCompletedEvent }

// RunFailed is published when a node exhausts its retry budget or a
// fatal condition occurs. The run is terminal; there is no automatic
// re-trigger.
type RunFailed struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType { return RunFailedEvent }
