package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/library"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// Deps carries the collaborators the REST surface exposes.
type Deps struct {
	Queue *queue.Manager
	Jobs  *jobs.Orchestrator
	// Index is optional; library routes answer 503 while it is nil.
	Index *library.Index
}

// Server hosts the embedded REST API on the configured bind address.
type Server struct {
	cfg       *config.Config
	queue     *queue.Manager
	jobs      *jobs.Orchestrator
	index     *library.Index
	logger    *slog.Logger
	engine    *gin.Engine
	startedAt time.Time

	mu       sync.Mutex
	runCtx   context.Context
	listener net.Listener
	server   *http.Server
}

// New builds the API server and its routes. The queue manager and job
// orchestrator are required; the library index may be nil when the index
// could not be opened.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: configuration required")
	}
	if deps.Queue == nil || deps.Jobs == nil {
		return nil, errors.New("api: queue manager and job orchestrator required")
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:       cfg,
		queue:     deps.Queue,
		jobs:      deps.Jobs,
		index:     deps.Index,
		logger:    logging.NewComponentLogger(logger, "api"),
		startedAt: time.Now().UTC(),
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		s.requestLogger(),
		corsMiddleware(cfg.API.AllowedOrigins),
		maxBodySize(cfg.MaxUploadBytes()*uploadBodyFactor),
	)
	s.engine = engine
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/jobs", s.handleJobList)
		v1.POST("/jobs", s.handleJobCreate)
		v1.GET("/jobs/:id", s.handleJobGet)
		v1.DELETE("/jobs/:id", s.handleJobDelete)
		v1.POST("/jobs/:id/start", s.handleJobStart)
		v1.POST("/jobs/:id/retry", s.handleJobRetry)
		v1.GET("/jobs/:id/download", s.handleJobDownload)
		v1.GET("/jobs/:id/files", s.handleJobFiles)

		v1.GET("/queue", s.handleQueueList)
		v1.GET("/queue/status", s.handleQueueStatus)
		v1.POST("/queue/pause", s.handleQueuePause)
		v1.POST("/queue/resume", s.handleQueueResume)
		v1.POST("/queue/clear", s.handleQueueClear)
		v1.DELETE("/queue/:id", s.handleQueueRemove)
		v1.POST("/queue/:id/priority", s.handleQueuePriority)

		v1.POST("/upload/single", s.handleUploadSingle)
		v1.POST("/upload/album", s.handleUploadAlbum)

		v1.GET("/system/health", s.handleHealth)
		v1.GET("/system/stats", s.handleSystemStats)
		v1.GET("/system/storage", s.handleSystemStorage)
		v1.GET("/system/settings", s.handleSystemSettings)

		v1.GET("/library/artists", s.handleLibraryArtists)
		v1.GET("/library/albums", s.handleLibraryAlbums)
		v1.GET("/library/tracks", s.handleLibraryTracks)
		v1.GET("/library/recent", s.handleLibraryRecent)
		v1.GET("/library/search", s.handleLibrarySearch)
		v1.GET("/library/stats", s.handleLibraryStats)
	}
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.API.Bind)
	if bind == "" {
		return errors.New("api: bind address not configured")
	}

	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}

	server := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.runCtx = ctx
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop drains in-flight requests and closes the listener. Safe to call
// without a prior Start and safe to call twice.
func (s *Server) Stop() {
	s.mu.Lock()
	server := s.server
	listener := s.listener
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

// Addr reports the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// runContext returns the context job dispatches inherit. Handlers must not
// use the request context for dispatch: the run would die with the request.
func (s *Server) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}

func jsonError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
