package jobs

import (
	"fmt"
	"time"
)

// BeginProcessing atomically moves a pending job into processing and stamps
// its start time.
func (s *Store) BeginProcessing(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadLocked()
	job := findJob(list, id)
	if job == nil {
		return nil, fmt.Errorf("begin processing %s: %w", id, ErrNotFound)
	}
	if job.Status != StatusPending {
		return nil, fmt.Errorf("begin processing %s: status %s: %w", id, job.Status, ErrInvalidTransition)
	}
	now := time.Now().UTC()
	job.Status = StatusProcessing
	job.StartedAt = &now
	if err := s.persistLocked(list); err != nil {
		return nil, err
	}
	return job, nil
}

// Complete moves a processing job to completed, records where the output
// landed, and forces progress to 100.
func (s *Store) Complete(id, outputPath string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadLocked()
	job := findJob(list, id)
	if job == nil {
		return nil, fmt.Errorf("complete %s: %w", id, ErrNotFound)
	}
	if job.Status != StatusProcessing {
		return nil, fmt.Errorf("complete %s: status %s: %w", id, job.Status, ErrInvalidTransition)
	}
	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.Progress = 100
	job.OutputPath = outputPath
	job.ErrorMessage = ""
	job.CompletedAt = &now
	if err := s.persistLocked(list); err != nil {
		return nil, err
	}
	return job, nil
}

// Fail moves a processing job to failed with the given message stored
// verbatim. Progress keeps its last reported value.
func (s *Store) Fail(id, message string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadLocked()
	job := findJob(list, id)
	if job == nil {
		return nil, fmt.Errorf("fail %s: %w", id, ErrNotFound)
	}
	if job.Status != StatusProcessing {
		return nil, fmt.Errorf("fail %s: status %s: %w", id, job.Status, ErrInvalidTransition)
	}
	now := time.Now().UTC()
	job.Status = StatusFailed
	job.ErrorMessage = message
	job.CompletedAt = &now
	if err := s.persistLocked(list); err != nil {
		return nil, err
	}
	return job, nil
}

// FailAbandoned marks every processing job as failed with the given
// message. A fresh daemon calls this once at boot: a job can only be
// mid-flight in the process that dispatched it, so processing records that
// survive a restart will never complete on their own.
func (s *Store) FailAbandoned(message string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadLocked()
	now := time.Now().UTC()
	count := 0
	for _, job := range list {
		if job.Status != StatusProcessing {
			continue
		}
		completed := now
		job.Status = StatusFailed
		job.ErrorMessage = message
		job.CompletedAt = &completed
		count++
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.persistLocked(list); err != nil {
		return 0, err
	}
	return count, nil
}

// ResetFailed moves a failed job back to pending for another attempt,
// clearing the error, progress, and attempt timestamps.
func (s *Store) ResetFailed(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadLocked()
	job := findJob(list, id)
	if job == nil {
		return nil, fmt.Errorf("reset %s: %w", id, ErrNotFound)
	}
	if job.Status != StatusFailed {
		return nil, fmt.Errorf("reset %s: status %s: %w", id, job.Status, ErrInvalidTransition)
	}
	job.Status = StatusPending
	job.Progress = 0
	job.ErrorMessage = ""
	job.StartedAt = nil
	job.CompletedAt = nil
	if err := s.persistLocked(list); err != nil {
		return nil, err
	}
	return job, nil
}

// SetProgress raises the progress of a processing job. Values clamp to the
// 0-100 range and never move backward; reports for jobs no longer processing
// are ignored so a late report cannot disturb a settled outcome.
func (s *Store) SetProgress(id string, percent int) (*Job, error) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadLocked()
	job := findJob(list, id)
	if job == nil {
		return nil, fmt.Errorf("set progress %s: %w", id, ErrNotFound)
	}
	if job.Status != StatusProcessing || percent <= job.Progress {
		return job, nil
	}
	job.Progress = percent
	if err := s.persistLocked(list); err != nil {
		return nil, err
	}
	return job, nil
}
