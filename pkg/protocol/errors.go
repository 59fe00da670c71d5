package protocol

import "fmt"

// ExecutionError is a node execution failure that may be retried:
// transport errors, timeouts and non-2xx channel responses.
type ExecutionError struct {
	NodeID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %s execution failed: %v", e.NodeID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
