package queue

import (
	"fmt"
	"time"
)

// ClaimProcessing atomically moves a queued item into processing. The claim
// fails when the item is not queued or when another member of its block is
// already processing, keeping album members mutually exclusive even when the
// scheduling order changed between selection and claim.
func (s *Store) ClaimProcessing(id string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.loadLocked()
	item := findItem(items, id)
	if item == nil {
		return nil, fmt.Errorf("claim processing %s: %w", id, ErrNotFound)
	}
	if item.Status != StatusQueued {
		return nil, fmt.Errorf("claim processing %s: status %s: %w", id, item.Status, ErrInvalidTransition)
	}
	if blockBusy(items, item.BlockID, item.ID) {
		return nil, fmt.Errorf("claim processing %s: %w", id, ErrBlockBusy)
	}
	now := time.Now().UTC()
	item.Status = StatusProcessing
	item.LastHeartbeat = &now
	if err := s.persistLocked(items); err != nil {
		return nil, err
	}
	return item, nil
}

// FinishProcessing moves a processing item to done or error and stamps the
// processed timestamp. The message is stored verbatim for error outcomes and
// cleared for done.
func (s *Store) FinishProcessing(id string, outcome Status, message string) (*Item, error) {
	if outcome != StatusDone && outcome != StatusError {
		return nil, fmt.Errorf("finish processing %s: outcome %s: %w", id, outcome, ErrInvalidTransition)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.loadLocked()
	item := findItem(items, id)
	if item == nil {
		return nil, fmt.Errorf("finish processing %s: %w", id, ErrNotFound)
	}
	if item.Status != StatusProcessing {
		return nil, fmt.Errorf("finish processing %s: status %s: %w", id, item.Status, ErrInvalidTransition)
	}
	now := time.Now().UTC()
	item.Status = outcome
	item.ProcessedAt = &now
	item.LastHeartbeat = nil
	if outcome == StatusError {
		item.ErrorMessage = message
	} else {
		item.ErrorMessage = ""
	}
	if err := s.persistLocked(items); err != nil {
		return nil, err
	}
	return item, nil
}

// RequeueError moves an errored item back to queued, bumping its retry count
// and clearing the error message and processed timestamp. A non-negative
// limit rejects items whose retries are exhausted.
func (s *Store) RequeueError(id string, limit int) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.loadLocked()
	item := findItem(items, id)
	if item == nil {
		return nil, fmt.Errorf("requeue %s: %w", id, ErrNotFound)
	}
	if item.Status != StatusError {
		return nil, fmt.Errorf("requeue %s: status %s: %w", id, item.Status, ErrInvalidTransition)
	}
	if limit >= 0 && item.RetryCount >= limit {
		return nil, fmt.Errorf("requeue %s after %d retries: %w", id, item.RetryCount, ErrRetryLimitReached)
	}
	item.Status = StatusQueued
	item.RetryCount++
	item.ErrorMessage = ""
	item.ProcessedAt = nil
	item.LastHeartbeat = nil
	if err := s.persistLocked(items); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateHeartbeat refreshes the processing heartbeat for an item. Items that
// already left processing are ignored so a late tick after the outcome was
// recorded stays harmless.
func (s *Store) UpdateHeartbeat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.loadLocked()
	item := findItem(items, id)
	if item == nil {
		return fmt.Errorf("heartbeat %s: %w", id, ErrNotFound)
	}
	if item.Status != StatusProcessing {
		return nil
	}
	now := time.Now().UTC()
	item.LastHeartbeat = &now
	return s.persistLocked(items)
}

// ReclaimStale requeues every processing item whose heartbeat is missing or
// older than cutoff, clearing the heartbeat without touching the retry count.
// It returns how many items were reclaimed.
func (s *Store) ReclaimStale(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.loadLocked()
	reclaimed := 0
	for _, item := range items {
		if item.Status != StatusProcessing {
			continue
		}
		if item.LastHeartbeat != nil && item.LastHeartbeat.After(cutoff) {
			continue
		}
		item.Status = StatusQueued
		item.LastHeartbeat = nil
		reclaimed++
	}
	if reclaimed == 0 {
		return 0, nil
	}
	if err := s.persistLocked(items); err != nil {
		return 0, err
	}
	return reclaimed, nil
}
