package models

import (
	"fmt"
	"strings"
)

// Definition-time validation errors. These are surfaced synchronously
// to the author at draft/publish time and never reach execution.

// UnknownNodeError indicates an edge references a node id that does
// not exist in the definition.
type UnknownNodeError struct {
	NodeID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("edge references unknown node %q", e.NodeID)
}

// InvalidTriggerError indicates the definition does not have exactly
// one root node of a recognized trigger type.
type InvalidTriggerError struct {
	Reason string
}

func (e *InvalidTriggerError) Error() string {
	return "invalid trigger node: " + e.Reason
}

// CyclicGraphError indicates the definition contains a cycle. The
// nodes that could not be topologically ordered are listed.
type CyclicGraphError struct {
	Nodes []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("definition contains a cycle involving nodes [%s]", strings.Join(e.Nodes, ", "))
}
