package jobs

import "errors"

var (
	// ErrNotFound reports a job id absent from the store.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition reports a lifecycle move the state machine forbids.
	ErrInvalidTransition = errors.New("invalid job transition")
	// ErrClosed reports an orchestrator that no longer accepts dispatches.
	ErrClosed = errors.New("orchestrator closed")
)
