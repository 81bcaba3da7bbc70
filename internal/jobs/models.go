package jobs

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies what a job transforms.
type Kind string

const (
	// KindSingle processes one standalone audio file.
	KindSingle Kind = "single"
	// KindAlbum processes one file belonging to an album block.
	KindAlbum Kind = "album"
)

// Status represents the lifecycle of a processing job.
type Status string

// Statuses in lifecycle order. Failed jobs return to pending through an
// explicit retry; cancelled is declared for the wire format but no current
// code path transitions into it.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Job represents one processing request persisted in the jobs file.
type Job struct {
	ID           string            `json:"id"`
	SourcePath   string            `json:"source_path"`
	OutputPath   string            `json:"output_path,omitempty"`
	Kind         Kind              `json:"kind"`
	Status       Status            `json:"status"`
	Splitter     string            `json:"splitter"`
	Stems        []string          `json:"stems"`
	Progress     int               `json:"progress"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// NewJob builds a pending job for one processing request. The stems slice is
// copied so later edits by the caller do not leak into the job.
func NewJob(sourcePath string, kind Kind, splitter string, stems []string) *Job {
	return &Job{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		Kind:       kind,
		Status:     StatusPending,
		Splitter:   splitter,
		Stems:      append([]string(nil), stems...),
		CreatedAt:  time.Now().UTC(),
	}
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
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Summary describes aggregated job counts per status.
type Summary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// Summarize aggregates per-status counts for status surfaces.
func Summarize(list []*Job) Summary {
	summary := Summary{Total: len(list)}
	for _, job := range list {
		switch job.Status {
		case StatusPending:
			summary.Pending++
		case StatusProcessing:
			summary.Processing++
		case StatusCompleted:
			summary.Completed++
		case StatusFailed:
			summary.Failed++
		case StatusCancelled:
			summary.Cancelled++
		}
	}
	return summary
}
