package api

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

func (s *Server) handleJobList(c *gin.Context) {
	limit := parseBoundedInt(c.DefaultQuery("limit", ""), defaultPageLimit, maxPageLimit)
	offset := parseBoundedInt(c.DefaultQuery("offset", ""), 0, 0)

	var statuses []jobs.Status
	for _, value := range c.QueryArray("status") {
		status, ok := jobs.ParseStatus(value)
		if !ok {
			jsonError(c, http.StatusBadRequest, fmt.Sprintf("unknown job status %q", value))
			return
		}
		statuses = append(statuses, status)
	}

	list, err := s.jobs.Recent(limit, offset, statuses...)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, JobListResponse{Items: list, Count: len(list), Limit: limit, Offset: offset})
}

func (s *Server) handleJobGet(c *gin.Context) {
	job, ok := s.lookupJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleJobCreate(c *gin.Context) {
	var req JobCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		jsonError(c, http.StatusBadRequest, "path is required")
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		jsonError(c, http.StatusBadRequest, "source file not found")
		return
	}
	if !s.cfg.AllowedExtension(path) {
		jsonError(c, http.StatusBadRequest, fmt.Sprintf("unsupported file type, allowed: %s", strings.Join(s.cfg.Ingest.Extensions, " ")))
		return
	}

	kind := jobs.KindSingle
	switch strings.ToLower(strings.TrimSpace(req.Kind)) {
	case "", string(jobs.KindSingle):
	case string(jobs.KindAlbum):
		kind = jobs.KindAlbum
	default:
		jsonError(c, http.StatusBadRequest, fmt.Sprintf("unknown job kind %q", req.Kind))
		return
	}

	job, err := s.jobs.Submit(jobs.NewJob(path, kind, strings.TrimSpace(req.Splitter), req.Stems))
	if err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.Start == nil || *req.Start {
		started, err := s.jobs.Start(s.runContext(), job.ID)
		if err != nil {
			jsonError(c, http.StatusInternalServerError, err.Error())
			return
		}
		job = started
	}
	s.logger.Info("job created",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source_path", job.SourcePath),
	)
	c.JSON(http.StatusCreated, job)
}

func (s *Server) handleJobDelete(c *gin.Context) {
	job, ok := s.lookupJob(c)
	if !ok {
		return
	}
	if job.Status == jobs.StatusProcessing {
		jsonError(c, http.StatusConflict, "job is processing")
		return
	}
	if err := s.jobs.Delete(job.ID); err != nil {
		s.respondJobError(c, err)
		return
	}
	// Drop any produced output alongside the record.
	_ = os.RemoveAll(filepath.Join(s.cfg.Paths.OutputDir, job.ID))
	c.JSON(http.StatusOK, gin.H{"message": "job deleted"})
}

func (s *Server) handleJobStart(c *gin.Context) {
	job, err := s.jobs.Start(s.runContext(), c.Param("id"))
	if err != nil {
		s.respondJobError(c, err)
		return
	}
	s.logger.Info("job started", logging.String(logging.FieldJobID, job.ID))
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleJobRetry(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.jobs.Retry(id); err != nil {
		s.respondJobError(c, err)
		return
	}
	job, err := s.jobs.Start(s.runContext(), id)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("job retried", logging.String(logging.FieldJobID, job.ID))
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleJobDownload(c *gin.Context) {
	job, ok := s.lookupJob(c)
	if !ok {
		return
	}
	if job.Status != jobs.StatusCompleted {
		jsonError(c, http.StatusBadRequest, "job not completed")
		return
	}
	output := strings.TrimSpace(job.OutputPath)
	if output == "" {
		jsonError(c, http.StatusNotFound, "output file not found")
		return
	}
	if info, err := os.Stat(output); err != nil || info.IsDir() {
		jsonError(c, http.StatusNotFound, "output file not found")
		return
	}
	c.FileAttachment(output, filepath.Base(output))
}

func (s *Server) handleJobFiles(c *gin.Context) {
	job, ok := s.lookupJob(c)
	if !ok {
		return
	}

	root := filepath.Join(s.cfg.Paths.OutputDir, job.ID)
	files := make([]FileInfo, 0)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = entry.Name()
		}
		files = append(files, FileInfo{
			Name:       filepath.ToSlash(rel),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, JobFilesResponse{Files: files, Count: len(files)})
}

// lookupJob resolves the :id path parameter, writing the error response on
// failure.
func (s *Server) lookupJob(c *gin.Context) (*jobs.Job, bool) {
	job, err := s.jobs.Get(c.Param("id"))
	if err != nil {
		s.respondJobError(c, err)
		return nil, false
	}
	return job, true
}

func (s *Server) respondJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		jsonError(c, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrInvalidTransition):
		jsonError(c, http.StatusConflict, err.Error())
	default:
		jsonError(c, http.StatusInternalServerError, err.Error())
	}
}

// parseBoundedInt parses value with a fallback and an optional upper bound.
func parseBoundedInt(value string, fallback, bound int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed < 0 {
		return fallback
	}
	if bound > 0 && parsed > bound {
		return fallback
	}
	return parsed
}
