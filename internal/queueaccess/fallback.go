package queueaccess

import (
	"errors"
	"fmt"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/ipc"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// Session bundles an Access with its cleanup. Direct reports that the
// daemon was unreachable and the session reads the queue file itself,
// which callers surface so users know the view may be stale.
type Session struct {
	Access Access
	Direct bool

	close func() error
}

// Close releases the session's socket or store handle.
func (s *Session) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// JobSession is the job-side counterpart of Session.
type JobSession struct {
	Access JobAccess
	Direct bool

	close func() error
}

// Close releases the session's socket or store handle.
func (s *JobSession) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback connects to the daemon via dial and falls back to
// opening the queue file directly when the daemon is unreachable.
func OpenWithFallback(cfg *config.Config, dial func() (*ipc.Client, error)) (*Session, error) {
	client, dialErr := dial()
	if dialErr == nil {
		return &Session{Access: NewIPCAccess(client), close: client.Close}, nil
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open queue store: %w", err), dialErr)
	}
	return &Session{Access: NewStoreAccess(cfg, store), Direct: true, close: store.Close}, nil
}

// OpenJobsWithFallback is OpenWithFallback for job records.
func OpenJobsWithFallback(cfg *config.Config, dial func() (*ipc.Client, error)) (*JobSession, error) {
	client, dialErr := dial()
	if dialErr == nil {
		return &JobSession{Access: NewIPCJobAccess(client), close: client.Close}, nil
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open job store: %w", err), dialErr)
	}
	return &JobSession{Access: NewStoreJobAccess(cfg, store), Direct: true, close: store.Close}, nil
}
