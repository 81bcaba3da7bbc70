package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/textutil"
)

// uploadSubdir holds direct-start uploads under the temp directory so the
// inbox watcher never sees them.
const uploadSubdir = "uploads"

func (s *Server) handleUploadSingle(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		jsonError(c, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name, ok := s.validateUpload(c, header)
	if !ok {
		return
	}

	start, _ := strconv.ParseBool(c.PostForm("start"))
	destDir := s.cfg.Paths.InboxDir
	if start {
		destDir = filepath.Join(s.cfg.Paths.TempDir, uploadSubdir)
	}

	destPath, written, err := saveUpload(file, destDir, name)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}

	resp := UploadResponse{
		Success:  true,
		FilePath: destPath,
		Filename: filepath.Base(destPath),
		Size:     written,
	}

	if !start {
		resp.Message = "file uploaded, queued for ingestion"
		s.logger.Info("upload accepted", logging.String("path", destPath))
		c.JSON(http.StatusOK, resp)
		return
	}

	job, err := s.startUploadJob(c, destPath)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.JobID = job.ID
	resp.Message = fmt.Sprintf("file uploaded and job %s started", job.ID)
	s.logger.Info("upload accepted",
		logging.String("path", destPath),
		logging.String(logging.FieldJobID, job.ID),
	)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUploadAlbum(c *gin.Context) {
	raw := strings.TrimSpace(c.PostForm("album"))
	if raw == "" {
		jsonError(c, http.StatusBadRequest, "album name is required")
		return
	}
	album := textutil.SanitizePathSegment(raw)

	form, err := c.MultipartForm()
	if err != nil {
		jsonError(c, http.StatusBadRequest, "multipart form required")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		jsonError(c, http.StatusBadRequest, "at least one file is required")
		return
	}

	albumDir := filepath.Join(s.cfg.Paths.InboxDir, album)
	results := make([]FileUploadStatus, 0, len(headers))
	saved := 0
	for _, header := range headers {
		result := s.saveAlbumFile(albumDir, header)
		if result.Success {
			saved++
		}
		results = append(results, result)
	}

	s.logger.Info("album upload accepted",
		logging.String("album", album),
		logging.Int("files", saved),
		logging.Int("rejected", len(results)-saved),
	)
	c.JSON(http.StatusOK, AlbumUploadResponse{
		Success:   saved > 0,
		Message:   fmt.Sprintf("album %q uploaded with %d of %d files", album, saved, len(results)),
		AlbumPath: albumDir,
		Files:     results,
	})
}

func (s *Server) saveAlbumFile(albumDir string, header *multipart.FileHeader) FileUploadStatus {
	name := textutil.SanitizeFileName(header.Filename)
	if name == "" {
		return FileUploadStatus{Filename: header.Filename, Error: "invalid filename"}
	}
	if !s.cfg.AllowedExtension(name) {
		return FileUploadStatus{Filename: header.Filename, Error: "unsupported file type"}
	}
	if header.Size > s.cfg.MaxUploadBytes() {
		return FileUploadStatus{Filename: header.Filename, Error: "file too large"}
	}

	file, err := header.Open()
	if err != nil {
		return FileUploadStatus{Filename: header.Filename, Error: err.Error()}
	}
	defer file.Close()

	destPath, written, err := saveUpload(file, albumDir, name)
	if err != nil {
		return FileUploadStatus{Filename: header.Filename, Error: err.Error()}
	}
	return FileUploadStatus{
		Filename: filepath.Base(destPath),
		Success:  true,
		FilePath: destPath,
		Size:     written,
	}
}

// validateUpload checks the filename and declared size, writing the error
// response on rejection.
func (s *Server) validateUpload(c *gin.Context, header *multipart.FileHeader) (string, bool) {
	name := textutil.SanitizeFileName(header.Filename)
	if name == "" {
		jsonError(c, http.StatusBadRequest, "invalid filename")
		return "", false
	}
	if !s.cfg.AllowedExtension(name) {
		jsonError(c, http.StatusBadRequest, fmt.Sprintf("unsupported file type, allowed: %s", strings.Join(s.cfg.Ingest.Extensions, " ")))
		return "", false
	}
	if header.Size > s.cfg.MaxUploadBytes() {
		jsonError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("file too large, limit is %d MiB", s.cfg.Ingest.MaxUploadMiB))
		return "", false
	}
	return name, true
}

// startUploadJob submits and dispatches a job for a direct-start upload.
func (s *Server) startUploadJob(c *gin.Context, path string) (*jobs.Job, error) {
	var stems []string
	if raw := strings.TrimSpace(c.PostForm("stems")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &stems); err != nil {
			stems = nil
		}
	}
	job, err := s.jobs.Submit(jobs.NewJob(path, jobs.KindSingle, strings.TrimSpace(c.PostForm("splitter")), stems))
	if err != nil {
		return nil, err
	}
	return s.jobs.Start(s.runContext(), job.ID)
}

// saveUpload streams one multipart file into dir under name, suffixing
// duplicates with _1, _2, ... before the extension.
func saveUpload(src multipart.File, dir, name string) (string, int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload directory: %w", err)
	}
	destPath := uniquePath(dir, name)
	dest, err := os.Create(destPath)
	if err != nil {
		return "", 0, fmt.Errorf("create upload target: %w", err)
	}
	defer dest.Close()

	written, err := io.Copy(dest, src)
	if err != nil {
		_ = os.Remove(destPath)
		return "", 0, fmt.Errorf("save upload: %w", err)
	}
	return destPath, written, nil
}

// uniquePath returns dir/name, or the first dir/name_n variant that does not
// exist yet.
func uniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}
}
