package queue

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
)

// Manager layers queue semantics over the Store: admission, block-aware
// scheduling, pause state, and lifecycle transitions. It is the only writer
// of queue state; API and CLI surfaces read through it.
type Manager struct {
	store      *Store
	retryLimit int

	mu     sync.Mutex
	paused bool
}

// NewManager builds a Manager bound to the store and the configured retry
// policy.
func NewManager(cfg *config.Config, store *Store) *Manager {
	return &Manager{store: store, retryLimit: cfg.Workflow.RetryLimit}
}

// Admit inserts the item unless its id is already present; the bool reports
// whether it was inserted. Zero-value kind, status, and detection time are
// defaulted for callers that build items by hand.
func (m *Manager) Admit(item *Item) (bool, error) {
	if item == nil {
		return false, errors.New("admit: item is nil")
	}
	if strings.TrimSpace(item.ID) == "" {
		return false, errors.New("admit: item id is empty")
	}
	if strings.TrimSpace(item.Path) == "" {
		return false, errors.New("admit: item path is empty")
	}
	if item.Kind == "" {
		item.Kind = KindSingle
	}
	if item.Status == "" {
		item.Status = StatusQueued
	}
	if item.DetectedAt.IsZero() {
		item.DetectedAt = time.Now().UTC()
	}
	return m.store.Insert(item)
}

// NextReady returns the queued item that should dispatch next: lowest
// priority rank first, ties broken by detection time, skipping every block
// that already has a member processing. A paused manager returns nil. The
// result is a candidate, not a claim; MarkProcessing re-checks the block
// under the store lock.
func (m *Manager) NextReady() (*Item, error) {
	if m.IsPaused() {
		return nil, nil
	}
	items, err := m.store.List()
	if err != nil {
		return nil, err
	}
	busy := make(map[string]struct{})
	for _, item := range items {
		if item.Status == StatusProcessing && item.BlockID != "" {
			busy[item.BlockID] = struct{}{}
		}
	}
	var best *Item
	for _, item := range items {
		if item.Status != StatusQueued {
			continue
		}
		if _, blocked := busy[item.BlockID]; blocked {
			continue
		}
		if best == nil || scheduledBefore(item, best) {
			best = item
		}
	}
	return best, nil
}

func scheduledBefore(a, b *Item) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.DetectedAt.Before(b.DetectedAt)
}

// MarkProcessing claims a queued item for dispatch.
func (m *Manager) MarkProcessing(id string) (*Item, error) {
	return m.store.ClaimProcessing(id)
}

// MarkDone records a successful processing outcome.
func (m *Manager) MarkDone(id string) (*Item, error) {
	return m.store.FinishProcessing(id, StatusDone, "")
}

// MarkError records a failed processing outcome with the processor's message.
func (m *Manager) MarkError(id, message string) (*Item, error) {
	return m.store.FinishProcessing(id, StatusError, message)
}

// Retry moves an errored item back to queued, bounded by the configured
// retry limit.
func (m *Manager) Retry(id string) (*Item, error) {
	return m.store.RequeueError(id, m.retryLimit)
}

// Heartbeat refreshes the processing heartbeat for an item.
func (m *Manager) Heartbeat(id string) error {
	return m.store.UpdateHeartbeat(id)
}

// ReclaimStale requeues processing items whose heartbeat predates cutoff.
func (m *Manager) ReclaimStale(cutoff time.Time) (int, error) {
	return m.store.ReclaimStale(cutoff)
}

// Get fetches one item by id.
func (m *Manager) Get(id string) (*Item, error) {
	return m.store.GetByID(id)
}

// Items lists queue items, optionally filtered by status.
func (m *Manager) Items(statuses ...Status) ([]*Item, error) {
	return m.store.List(statuses...)
}

// Remove deletes one item by id.
func (m *Manager) Remove(id string) error {
	return m.store.Remove(id)
}

// SetPriority changes an item's scheduling rank.
func (m *Manager) SetPriority(id string, rank int) (*Item, error) {
	return m.store.SetPriority(id, rank)
}

// Clear drops every item that is neither processing nor done and reports how
// many were removed.
func (m *Manager) Clear() (int, error) {
	return m.store.Retain(StatusProcessing, StatusDone)
}

// Pause stops NextReady from yielding items until Resume.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume reverses Pause.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

// IsPaused reports whether dispatching is paused.
func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Snapshot captures queue counters, pause state, and the item currently
// processing for status surfaces.
type Snapshot struct {
	Summary  HealthSummary
	IsPaused bool
	Current  *Item
}

// Snapshot returns a consistent view of queue state built from one load.
func (m *Manager) Snapshot() (Snapshot, error) {
	items, err := m.store.List()
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Summary: Summarize(items), IsPaused: m.IsPaused()}
	for _, item := range items {
		if item.Status == StatusProcessing {
			snap.Current = item
			break
		}
	}
	return snap, nil
}
