// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrAutomationNotFound indicates no automation exists for the id.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrVersionNotFound indicates no version row exists.
	ErrVersionNotFound = errors.New("automation version not found")

	// ErrPublishedVersionNotFound indicates the automation has never
	// been published.
	ErrPublishedVersionNotFound = errors.New("published version not found")

	// ErrTriggerNotFound indicates no trigger exists for the id.
	ErrTriggerNotFound = errors.New("trigger not found")

	// ErrRunNotFound indicates no run exists for the id.
	ErrRunNotFound = errors.New("run not found")

	// ErrNodeRunNotFound indicates no node run exists for the pair.
	ErrNodeRunNotFound = errors.New("node run not found")

	// ErrDuplicateRun indicates a run already exists for the same
	// (trigger, subject, occurrence) triple.
	ErrDuplicateRun = errors.New("duplicate run for event occurrence")
)

// AutomationError wraps automation-related storage errors with the
// operation and target.
type AutomationError struct {
	Op           string
	AutomationID string
	Err          error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s operation failed for automation %s: %v", e.Op, e.AutomationID, e.Err)
}

func (e *AutomationError) Unwrap() error { return e.Err }

func (e *AutomationError) Is(target error) bool { return errors.Is(e.Err, target) }

// RunError wraps run-related storage errors.
type RunError struct {
	Op    string
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

func (e *RunError) Is(target error) bool { return errors.Is(e.Err, target) }

// IsNotFound reports whether the error is any of the not-found
// sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrPublishedVersionNotFound) ||
		errors.Is(err, ErrTriggerNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrNodeRunNotFound)
}

// IsDuplicateRun reports whether the error is the run idempotency
// conflict.
func IsDuplicateRun(err error) bool {
	return errors.Is(err, ErrDuplicateRun)
}
