package api

import (
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/preflight"
)

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}

	// Store failures degrade the report instead of failing it.
	var partial error
	if snap, err := s.queue.Snapshot(); err == nil {
		resp["queue"] = FromSnapshot(snap)
	} else {
		partial = err
	}
	if list, err := s.jobs.Jobs(); err == nil {
		resp["jobs"] = FromJobSummary(jobs.Summarize(list))
	} else if partial == nil {
		partial = err
	}
	if partial != nil {
		resp["status"] = "degraded"
		resp["partial_error"] = partial.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSystemStats(c *gin.Context) {
	resp := StatsResponse{
		StartedAt:     s.startedAt,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}

	if list, err := s.jobs.Jobs(); err == nil {
		resp.Jobs = FromJobSummary(jobs.Summarize(list))
	}
	if snap, err := s.queue.Snapshot(); err == nil {
		resp.Queue = FromQueueSummary(snap.Summary)
	}
	if usage, err := preflight.DiskUsage(s.cfg.Paths.LibraryDir); err == nil {
		info := DiskInfo{
			Path:       s.cfg.Paths.LibraryDir,
			TotalBytes: usage.TotalBytes,
			UsedBytes:  usage.UsedBytes,
			FreeBytes:  usage.FreeBytes,
		}
		if usage.TotalBytes > 0 {
			info.UsedPercent = float64(usage.UsedBytes) / float64(usage.TotalBytes) * 100
		}
		resp.Disk = &info
	}
	if s.index != nil {
		if stats, err := s.index.Stats(c.Request.Context()); err == nil {
			resp.Library = &LibraryCounts{
				Artists:    stats.Artists,
				Albums:     stats.Albums,
				Tracks:     stats.Tracks,
				TotalBytes: stats.TotalBytes,
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSystemStorage(c *gin.Context) {
	directories := []struct {
		name string
		path string
	}{
		{"inbox", s.cfg.Paths.InboxDir},
		{"output", s.cfg.Paths.OutputDir},
		{"stems", s.cfg.Paths.StemsDir},
		{"library", s.cfg.Paths.LibraryDir},
		{"archive", s.cfg.Paths.ArchiveDir},
		{"error", s.cfg.Paths.ErrorDir},
		{"log", s.cfg.Paths.LogDir},
	}

	resp := StorageResponse{Directories: make([]DirectoryInfo, 0, len(directories))}
	for _, dir := range directories {
		resp.Directories = append(resp.Directories, describeDirectory(dir.name, dir.path))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSystemSettings(c *gin.Context) {
	c.JSON(http.StatusOK, SettingsResponse{
		ActiveSplitter:    s.cfg.Processing.Splitter,
		DemucsModel:       s.cfg.Processing.DemucsModel,
		SpleeterModel:     s.cfg.Processing.SpleeterModel,
		Stems:             s.cfg.Processing.Stems,
		OutputSuffix:      s.cfg.Processing.OutputSuffix,
		CleanupMode:       s.cfg.Processing.CleanupMode,
		PreserveCoverArt:  s.cfg.Processing.PreserveCoverArt,
		Extensions:        s.cfg.Ingest.Extensions,
		MaxUploadMiB:      s.cfg.Ingest.MaxUploadMiB,
		MaxConcurrentJobs: s.cfg.Workflow.MaxConcurrentJobs,
		RetryLimit:        s.cfg.Workflow.RetryLimit,
	})
}

// describeDirectory walks one pipeline directory, counting files and bytes.
func describeDirectory(name, path string) DirectoryInfo {
	info := DirectoryInfo{Name: name, Path: path}
	err := filepath.WalkDir(path, func(_ string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		info.FileCount++
		if fileInfo, err := entry.Info(); err == nil {
			info.SizeBytes += fileInfo.Size()
		}
		return nil
	})
	info.Exists = err == nil
	return info
}
