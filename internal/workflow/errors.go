// Package workflow contains the stage graph and the transition engine.
package workflow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// InvalidTransition is returned when the stage graph rejects a move. It
// carries the allowed set so callers can present the valid options. Never
// retried; nothing was written.
type InvalidTransition struct {
	From    string
	To      string
	Allowed []string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q (allowed: %s)",
		e.From, e.To, strings.Join(e.Allowed, ", "))
}

// NotFound is returned when a job, stage, or principal does not exist.
type NotFound struct {
	Kind string
	ID   uuid.UUID
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ConflictStale is returned when a concurrent transition changed the job
// between the caller's read and the commit. Safe to retry after re-fetching.
type ConflictStale struct {
	JobID uuid.UUID
}

func (e *ConflictStale) Error() string {
	return fmt.Sprintf("job %s was modified concurrently, re-fetch and retry", e.JobID)
}
