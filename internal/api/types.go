package api

import (
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/library"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// JobCreateRequest describes a job submission posted to /jobs. Start defaults
// to true; a false value submits the job without dispatching it.
type JobCreateRequest struct {
	Path     string   `json:"path"`
	Kind     string   `json:"kind,omitempty"`
	Splitter string   `json:"splitter,omitempty"`
	Stems    []string `json:"stems,omitempty"`
	Start    *bool    `json:"start,omitempty"`
}

// JobListResponse wraps one page of jobs ordered newest first.
type JobListResponse struct {
	Items  []*jobs.Job `json:"items"`
	Count  int         `json:"count"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// JobFilesResponse lists the files a job produced in its output directory.
type JobFilesResponse struct {
	Files []FileInfo `json:"files"`
	Count int        `json:"count"`
}

// FileInfo describes one produced file relative to the job output directory.
type FileInfo struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// QueueListResponse wraps a collection of queue items.
type QueueListResponse struct {
	Items []*queue.Item `json:"items"`
	Count int           `json:"count"`
}

// QueueStatusResponse summarizes queue counters and pause state.
type QueueStatusResponse struct {
	TotalItems      int         `json:"total_items"`
	PendingItems    int         `json:"pending_items"`
	ProcessingItems int         `json:"processing_items"`
	CompletedItems  int         `json:"completed_items"`
	FailedItems     int         `json:"failed_items"`
	IsPaused        bool        `json:"is_paused"`
	CurrentItem     *queue.Item `json:"current_item,omitempty"`
}

// FromSnapshot converts a queue snapshot into its response form.
func FromSnapshot(snap queue.Snapshot) QueueStatusResponse {
	return QueueStatusResponse{
		TotalItems:      snap.Summary.Total,
		PendingItems:    snap.Summary.Pending,
		ProcessingItems: snap.Summary.Processing,
		CompletedItems:  snap.Summary.Completed,
		FailedItems:     snap.Summary.Failed,
		IsPaused:        snap.IsPaused,
		CurrentItem:     snap.Current,
	}
}

// UploadResponse reports the outcome of a single-file upload.
type UploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FilePath string `json:"file_path"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	JobID    string `json:"job_id,omitempty"`
}

// FileUploadStatus reports the outcome of one file inside an album upload.
type FileUploadStatus struct {
	Filename string `json:"filename"`
	Success  bool   `json:"success"`
	FilePath string `json:"file_path,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AlbumUploadResponse reports the outcome of an album upload.
type AlbumUploadResponse struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	AlbumPath string             `json:"album_path"`
	Files     []FileUploadStatus `json:"files"`
}

// JobCounts mirrors jobs.Summary for API payloads.
type JobCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// FromJobSummary converts a jobs summary into its response form.
func FromJobSummary(summary jobs.Summary) JobCounts {
	return JobCounts{
		Total:      summary.Total,
		Pending:    summary.Pending,
		Processing: summary.Processing,
		Completed:  summary.Completed,
		Failed:     summary.Failed,
		Cancelled:  summary.Cancelled,
	}
}

// QueueCounts mirrors queue.HealthSummary for API payloads.
type QueueCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// FromQueueSummary converts a queue summary into its response form.
func FromQueueSummary(summary queue.HealthSummary) QueueCounts {
	return QueueCounts{
		Total:      summary.Total,
		Pending:    summary.Pending,
		Processing: summary.Processing,
		Completed:  summary.Completed,
		Failed:     summary.Failed,
	}
}

// DiskInfo reports filesystem capacity for one mounted path.
type DiskInfo struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// LibraryCounts reports aggregate library index state.
type LibraryCounts struct {
	Artists    int   `json:"artists"`
	Albums     int   `json:"albums"`
	Tracks     int   `json:"tracks"`
	TotalBytes int64 `json:"total_bytes"`
}

// StatsResponse aggregates runtime statistics for the dashboard.
type StatsResponse struct {
	StartedAt     time.Time      `json:"started_at"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Jobs          JobCounts      `json:"jobs"`
	Queue         QueueCounts    `json:"queue"`
	Disk          *DiskInfo      `json:"disk,omitempty"`
	Library       *LibraryCounts `json:"library,omitempty"`
}

// DirectoryInfo describes one pipeline directory for the storage endpoint.
type DirectoryInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	FileCount int    `json:"file_count"`
	SizeBytes int64  `json:"size_bytes"`
}

// StorageResponse lists per-directory usage for the pipeline layout.
type StorageResponse struct {
	Directories []DirectoryInfo `json:"directories"`
}

// SettingsResponse is a read-only snapshot of the processing configuration.
type SettingsResponse struct {
	ActiveSplitter    string   `json:"active_splitter"`
	DemucsModel       string   `json:"demucs_model"`
	SpleeterModel     string   `json:"spleeter_model"`
	Stems             []string `json:"stems"`
	OutputSuffix      string   `json:"output_suffix"`
	CleanupMode       string   `json:"cleanup_mode"`
	PreserveCoverArt  bool     `json:"preserve_cover_art"`
	Extensions        []string `json:"extensions"`
	MaxUploadMiB      int      `json:"max_upload_mib"`
	MaxConcurrentJobs int      `json:"max_concurrent_jobs"`
	RetryLimit        int      `json:"retry_limit"`
}

// TrackView is the transport representation of a library index row.
type TrackView struct {
	ID          int64     `json:"id"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	Title       string    `json:"title"`
	TrackNum    int       `json:"track_num,omitempty"`
	DiscNum     int       `json:"disc_num,omitempty"`
	Genre       string    `json:"genre,omitempty"`
	Year        int       `json:"year,omitempty"`
	Path        string    `json:"path"`
	SizeBytes   int64     `json:"size_bytes"`
	OrganizedAt time.Time `json:"organized_at"`
}

// FromTrack converts an index row into its transport form.
func FromTrack(track *library.Track) TrackView {
	if track == nil {
		return TrackView{}
	}
	return TrackView{
		ID:          track.ID,
		Artist:      track.Artist,
		Album:       track.Album,
		Title:       track.Title,
		TrackNum:    track.TrackNum,
		DiscNum:     track.DiscNum,
		Genre:       track.Genre,
		Year:        track.Year,
		Path:        track.Path,
		SizeBytes:   track.SizeBytes,
		OrganizedAt: track.OrganizedAt,
	}
}

// FromTracks converts index rows into their transport form.
func FromTracks(tracks []*library.Track) []TrackView {
	out := make([]TrackView, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, FromTrack(track))
	}
	return out
}

// ArtistView is the transport representation of an artist aggregate.
type ArtistView struct {
	Name   string `json:"name"`
	Albums int    `json:"albums"`
	Tracks int    `json:"tracks"`
}

// AlbumView is the transport representation of an album aggregate.
type AlbumView struct {
	Artist string `json:"artist"`
	Name   string `json:"name"`
	Year   int    `json:"year,omitempty"`
	Tracks int    `json:"tracks"`
}
