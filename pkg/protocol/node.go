// Package protocol defines the interfaces and contracts for pluggable node handlers.
package protocol

import (
	"context"

	"github.com/luisscruza/optiflow-sub005/pkg/models"
)

// NodeResult is the outcome of a successful node execution. Branch
// names the output handle that downstream edges match on; an empty
// branch activates only unlabeled edges.
type NodeResult struct {
	Output map[string]any `json:"output,omitempty"`
	Branch string         `json:"branch,omitempty"`
}

// Node is one executable unit within a run. Implementations must be
// safe to discard after a single run; the executor constructs a fresh
// instance per dispatch.
type Node interface {
	// ID returns the node instance id from the definition.
	ID() string

	// Type returns the node type string (e.g. "http.webhook").
	Type() string

	// Retryable reports whether a failed execution may be retried.
	// Condition and trigger nodes are never retried.
	Retryable() bool

	// Execute performs the node's work. The context carries the
	// per-attempt timeout; implementations must honor it.
	Execute(ctx context.Context, executionCtx models.ExecutionContext) (*NodeResult, error)
}

// NodeFactory creates node instances and describes the node type to
// the authoring surface.
type NodeFactory interface {
	// Create builds a node instance with the given configuration.
	// A malformed configuration is a construction-time error.
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// ID returns the node type string this factory produces.
	ID() string

	// Name returns the human-readable name for this node type.
	Name() string

	// Description returns what this node does.
	Description() string

	// Schema returns the JSON schema for this node type's config.
	Schema() map[string]any
}
