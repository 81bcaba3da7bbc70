package queue

import "errors"

var (
	// ErrNotFound reports a lookup for an id that is not in the store.
	ErrNotFound = errors.New("queue item not found")

	// ErrInvalidTransition reports a status change the lifecycle does not
	// allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrBlockBusy reports a claim on an album block that already has a
	// member processing.
	ErrBlockBusy = errors.New("album block already processing")

	// ErrRetryLimitReached reports a retry requested past the configured
	// limit.
	ErrRetryLimitReached = errors.New("retry limit reached")
)
