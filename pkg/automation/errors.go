// Package automation implements the engine core: publishing, trigger
// matching, run orchestration and node execution.
package automation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotPublished is returned when an operation needs a published
// version and the automation has none.
var ErrNotPublished = errors.New("automation has no published version")

// DeadlockError reports a run whose pending set can never drain: no
// node is runnable and none is in flight. It indicates a definition
// that passed validation but has an unsatisfiable join.
type DeadlockError struct {
	RunID        string
	PendingNodes []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("run %s deadlocked with pending nodes [%s]", e.RunID, strings.Join(e.PendingNodes, ", "))
}
