// Package registry maps node type strings to their factories and
// validates node configurations against the factory schemas.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/luisscruza/optiflow-sub005/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger        *slog.Logger
	nodeFactories map[string]protocol.NodeFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:        log,
		nodeFactories: make(map[string]protocol.NodeFactory),
	}
}

func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.nodeFactories[factory.ID()] = factory
}

// CreateNode validates the configuration against the factory schema
// and builds a node instance.
func (r *Registry) CreateNode(ctx context.Context, nodeType, nodeID string, config map[string]any) (protocol.Node, error) {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	if err := r.ValidateConfig(nodeType, config); err != nil {
		return nil, err
	}

	return factory.Create(ctx, nodeID, config)
}

// ValidateConfig checks a node configuration against the registered
// factory's JSON schema without constructing the node. The authoring
// API uses this to reject bad definitions before they are versioned.
func (r *Registry) ValidateConfig(nodeType string, config map[string]any) error {
	factory, ok := r.nodeFactories[nodeType]
	if !ok {
		return fmt.Errorf("node type '%s' not registered", nodeType)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate config for node type '%s': %w", nodeType, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("invalid config for node type '%s': %s", nodeType, strings.Join(details, "; "))
	}

	return nil
}

// IsRegistered reports whether a node type is known.
func (r *Registry) IsRegistered(nodeType string) bool {
	_, ok := r.nodeFactories[nodeType]

	return ok
}

// AvailableNodes returns the registered factories for the authoring
// surface to enumerate.
func (r *Registry) AvailableNodes() []protocol.NodeFactory {
	factories := make([]protocol.NodeFactory, 0, len(r.nodeFactories))
	for _, factory := range r.nodeFactories {
		factories = append(factories, factory)
	}

	return factories
}
