// Package trigger provides the trigger node factories. Trigger nodes
// seed the definition graph and are completed by the orchestrator
// when a run is created; a worker never executes one.
package trigger

import (
	"context"
	"errors"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
	"github.com/luisscruza/optiflow-sub005/pkg/protocol"
)

// StageEnteredNode is the root node of every automation definition.
type StageEnteredNode struct {
	id string
}

// NewStageEnteredNode creates a new stage-entered trigger node.
func NewStageEnteredNode(id string) *StageEnteredNode {
	return &StageEnteredNode{id: id}
}

func (n *StageEnteredNode) ID() string {
	return n.id
}

func (n *StageEnteredNode) Type() string {
	return models.NodeTypeStageEntered
}

func (n *StageEnteredNode) Retryable() bool {
	return false
}

// Execute is never reached in normal operation. The orchestrator
// marks trigger nodes succeeded at run creation.
func (n *StageEnteredNode) Execute(_ context.Context, _ models.ExecutionContext) (*protocol.NodeResult, error) {
	return nil, errors.New("trigger nodes are not executable")
}

// StageEnteredNodeFactory creates StageEnteredNode instances.
type StageEnteredNodeFactory struct{}

// NewStageEnteredNodeFactory creates a new stage-entered trigger node factory.
func NewStageEnteredNodeFactory() protocol.NodeFactory {
	return &StageEnteredNodeFactory{}
}

func (f *StageEnteredNodeFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.Node, error) {
	return NewStageEnteredNode(id), nil
}

func (f *StageEnteredNodeFactory) ID() string {
	return models.NodeTypeStageEntered
}

func (f *StageEnteredNodeFactory) Name() string {
	return "Stage Entered"
}

func (f *StageEnteredNodeFactory) Description() string {
	return "Starts the automation when a subject enters a workflow stage"
}

// Schema returns the JSON schema for trigger node configuration. The
// scoping lives on the automation trigger, not the node, so the config
// is free-form.
func (f *StageEnteredNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": true,
	}
}
