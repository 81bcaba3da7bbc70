package watchfolder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/stability"
)

// Sweeper periodically drains stable paths from the tracker, classifies
// them, and admits the resulting items into the queue.
type Sweeper struct {
	cfg     *config.Config
	tracker *stability.Tracker
	queue   *queue.Manager
	logger  *slog.Logger

	interval time.Duration
	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSweeper builds a sweeper ticking at the configured ingest interval.
func NewSweeper(cfg *config.Config, tracker *stability.Tracker, manager *queue.Manager, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		cfg:      cfg,
		tracker:  tracker,
		queue:    manager,
		logger:   logging.NewComponentLogger(logger, "sweeper"),
		interval: time.Duration(cfg.Ingest.SweepIntervalSeconds) * time.Second,
	}
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("ingestion sweeper already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(runCtx)
	s.logger.Info("ingestion sweeper started", logging.Duration("interval", s.interval))
	return nil
}

// Stop cancels the in-flight sweep and waits for the loop to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("ingestion sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
		s.SweepOnce(ctx)
	}
}

// SweepOnce runs a single pass: every path the tracker judges stable is
// forgotten, classified, and admitted. A failure on one path is logged
// and skipped so the remaining candidates still sweep. Returns how many
// queue items were admitted.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	admitted := 0
	for _, candidate := range s.tracker.StablePaths(time.Now()) {
		if ctx.Err() != nil {
			return admitted
		}
		s.tracker.Forget(candidate.Path)

		items, err := s.classify(candidate.Path)
		if err != nil {
			s.logger.Warn("classify stable path",
				logging.String("path", candidate.Path),
				logging.Error(err))
			continue
		}
		if len(items) > 0 && items[0].BlockID != "" {
			s.logger.Info("album block detected",
				logging.String("path", candidate.Path),
				logging.String("block_id", items[0].BlockID),
				logging.Int("members", len(items)))
		}
		for _, item := range items {
			inserted, err := s.queue.Admit(item)
			if err != nil {
				s.logger.Error("admit queue item",
					logging.String("path", item.Path),
					logging.Error(err))
				continue
			}
			if !inserted {
				continue
			}
			admitted++
			s.logger.Info("queued for processing",
				logging.String(logging.FieldItemID, item.ID),
				logging.String("path", item.Path),
				logging.String("kind", string(item.Kind)))
		}
	}
	return admitted
}

// classify turns one stable path into queue items. The path is stat'd
// fresh because it may have changed or vanished since stabilizing.
func (s *Sweeper) classify(path string) ([]*queue.Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		if !s.cfg.AllowedExtension(path) {
			return nil, nil
		}
		return []*queue.Item{queue.NewSingle(path)}, nil
	}

	files, err := s.audioFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	blockID := queue.NewBlockID()
	items := make([]*queue.Item, 0, len(files))
	for _, file := range files {
		items = append(items, queue.NewAlbumMember(file, blockID))
	}
	return items, nil
}

// audioFiles enumerates recognized audio files under dir in lexical
// path order so re-scans emit members deterministically.
func (s *Sweeper) audioFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if s.cfg.AllowedExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
