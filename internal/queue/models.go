package queue

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies how an item entered the queue.
type Kind string

const (
	// KindSingle marks a standalone audio file.
	KindSingle Kind = "single"
	// KindAlbumMember marks one file out of an album directory. Members of
	// one album share a block id and are dispatched one at a time.
	KindAlbumMember Kind = "album_member"
)

// Status represents the lifecycle of a queue item.
type Status string

// Statuses in lifecycle order. The ingestion sweeper admits items as queued
// directly; detected, stabilized, metadata_fixed, and splitter_input are
// accepted by the store as stage hooks but nothing transitions into them yet.
const (
	StatusDetected      Status = "detected"
	StatusStabilized    Status = "stabilized"
	StatusQueued        Status = "queued"
	StatusMetadataFixed Status = "metadata_fixed"
	StatusSplitterInput Status = "splitter_input"
	StatusProcessing    Status = "processing"
	StatusDone          Status = "done"
	StatusError         Status = "error"
)

var allStatuses = []Status{
	StatusDetected,
	StatusStabilized,
	StatusQueued,
	StatusMetadataFixed,
	StatusSplitterInput,
	StatusProcessing,
	StatusDone,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var pendingStatuses = map[Status]struct{}{
	StatusDetected:      {},
	StatusStabilized:    {},
	StatusQueued:        {},
	StatusMetadataFixed: {},
	StatusSplitterInput: {},
}

// Item represents one unit of ingested work persisted in the queue file.
// LastHeartbeat is maintained only while the item is processing; a stale
// value marks work orphaned by a crashed or wedged dispatch.
type Item struct {
	ID            string     `json:"id"`
	Path          string     `json:"path"`
	Kind          Kind       `json:"kind"`
	BlockID       string     `json:"block_id,omitempty"`
	Status        Status     `json:"status"`
	Priority      int        `json:"priority"`
	RetryCount    int        `json:"retry_count"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	DetectedAt    time.Time  `json:"detected_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

// NewSingle builds a queued item for a standalone audio file.
func NewSingle(path string) *Item {
	return &Item{
		ID:         uuid.NewString(),
		Path:       path,
		Kind:       KindSingle,
		Status:     StatusQueued,
		DetectedAt: time.Now().UTC(),
	}
}

// NewAlbumMember builds a queued item for one file of an album block.
func NewAlbumMember(path, blockID string) *Item {
	item := NewSingle(path)
	item.Kind = KindAlbumMember
	item.BlockID = blockID
	return item
}

// NewBlockID allocates a fresh identifier shared by the members of one album
// directory.
func NewBlockID() string {
	return uuid.NewString()
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Pending reports whether the status precedes processing.
func (s Status) Pending() bool {
	_, ok := pendingStatuses[s]
	return ok
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Summarize aggregates per-status counts for status surfaces.
func Summarize(items []*Item) HealthSummary {
	summary := HealthSummary{Total: len(items)}
	for _, item := range items {
		switch {
		case item.Status == StatusProcessing:
			summary.Processing++
		case item.Status == StatusDone:
			summary.Completed++
		case item.Status == StatusError:
			summary.Failed++
		case item.Status.Pending():
			summary.Pending++
		}
	}
	return summary
}
