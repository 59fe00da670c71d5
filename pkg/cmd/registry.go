package cmd

import (
	"log/slog"

	"github.com/luisscruza/optiflow-sub005/pkg/registry"
)

// NewRegistry returns a registry with all built-in node types
// registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes()

	return reg
}
