package ipc

import (
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/daemon"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// Queue items and jobs cross the wire as their storage models; both are
// plain structs the JSON codec handles directly.
type (
	// QueueItem is one tracked inbox entry.
	QueueItem = queue.Item
	// Job is one processing job record.
	Job = jobs.Job
	// StatusResponse mirrors the daemon's own status report.
	StatusResponse = daemon.Status
)

// PingRequest probes daemon liveness.
type PingRequest struct{}

// PingResponse carries the daemon's process id.
type PingResponse struct {
	PID int
}

// StartRequest asks a stopped daemon to bring its components up.
type StartRequest struct{}

// StartResponse reports whether the call changed anything.
type StartResponse struct {
	Started bool
	Message string
}

// StopRequest asks the daemon to halt its components. The process itself
// stays alive; the CLI terminates it separately.
type StopRequest struct{}

// StopResponse reports whether the components were running.
type StopResponse struct {
	Stopped bool
}

// StatusRequest fetches the daemon status snapshot.
type StatusRequest struct{}

// QueueListRequest selects queue items, optionally by status name.
type QueueListRequest struct {
	Statuses []string
}

// QueueListResponse carries the matching items.
type QueueListResponse struct {
	Items []QueueItem
}

// QueueItemRequest identifies one queue item.
type QueueItemRequest struct {
	ID string
}

// QueueItemResponse carries the item.
type QueueItemResponse struct {
	Item QueueItem
}

// QueueClearRequest drops waiting items. Without statuses the default
// clear applies, which keeps processing and done items.
type QueueClearRequest struct {
	Statuses []string
}

// QueueClearResponse reports how many items were dropped.
type QueueClearResponse struct {
	Removed int
}

// QueueRemoveRequest drops a single item by id.
type QueueRemoveRequest struct {
	ID string
}

// QueueRemoveResponse confirms the removal.
type QueueRemoveResponse struct {
	Removed bool
}

// QueueRetryRequest requeues failed items. Empty IDs retries every failed
// item.
type QueueRetryRequest struct {
	IDs []string
}

// QueueRetryResponse reports how many items were requeued.
type QueueRetryResponse struct {
	Retried int
}

// QueuePriorityRequest reorders one item among the waiting work.
type QueuePriorityRequest struct {
	ID       string
	Priority int
}

// QueuePriorityResponse carries the updated item.
type QueuePriorityResponse struct {
	Item QueueItem
}

// QueuePauseRequest suspends dispatching.
type QueuePauseRequest struct{}

// QueuePauseResponse reports the resulting pause state.
type QueuePauseResponse struct {
	Paused bool
}

// QueueResumeRequest resumes dispatching.
type QueueResumeRequest struct{}

// QueueResumeResponse reports the resulting pause state.
type QueueResumeResponse struct {
	Paused bool
}

// JobListRequest selects jobs newest first, optionally by status name.
type JobListRequest struct {
	Statuses []string
	Limit    int
	Offset   int
}

// JobListResponse carries the matching jobs.
type JobListResponse struct {
	Jobs []Job
}

// JobRequest identifies one job.
type JobRequest struct {
	ID string
}

// JobResponse carries the job.
type JobResponse struct {
	Job Job
}

// JobStartRequest dispatches a pending job.
type JobStartRequest struct {
	ID string
}

// JobStartResponse carries the dispatched job.
type JobStartResponse struct {
	Job Job
}

// JobRetryRequest redispatches a failed job.
type JobRetryRequest struct {
	ID string
}

// JobRetryResponse carries the redispatched job.
type JobRetryResponse struct {
	Job Job
}

// JobDeleteRequest removes a job record and its output.
type JobDeleteRequest struct {
	ID string
}

// JobDeleteResponse confirms the removal.
type JobDeleteResponse struct {
	Deleted bool
}

// LogTailRequest reads lines from the daemon's log file. A negative Offset
// requests the last Limit lines; Follow with a positive WaitMillis polls
// for fresh lines up to that many milliseconds.
type LogTailRequest struct {
	Offset     int64
	Limit      int
	Follow     bool
	WaitMillis int64
}

// LogTailResponse carries the lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string
	Offset int64
}

// TestNotificationRequest publishes a test event to the configured topic.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the delivery attempt.
type TestNotificationResponse struct {
	Sent    bool
	Message string
}
