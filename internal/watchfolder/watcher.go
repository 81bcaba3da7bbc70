package watchfolder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
)

// Watcher streams inbox changes into a Sink using fsnotify. New
// directories join the watch as they appear so every file of an album
// copy refreshes the album's quiet period.
type Watcher struct {
	root   string
	sink   Sink
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher builds a watcher over the configured inbox directory.
func NewWatcher(cfg *config.Config, sink Sink, logger *slog.Logger) *Watcher {
	return &Watcher{
		root:   filepath.Clean(cfg.Paths.InboxDir),
		sink:   sink,
		logger: logging.NewComponentLogger(logger, "watcher"),
	}
}

// Start registers the inbox tree with fsnotify, seeds the sink with the
// entries already present, and launches the event loop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("inbox watcher already running")
	}

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create inbox directory: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.addRecursive(fsw, w.root); err != nil {
		fsw.Close()
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.root, err)
	}

	// Seed after the watch is registered so nothing lands in the gap:
	// entries present before ReadDir are listed, entries after produce
	// events.
	w.seedExisting()

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go w.loop(runCtx, fsw)
	w.logger.Info("inbox watcher started", logging.String("path", w.root))
	return nil
}

// Stop ends the event loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.logger.Info("inbox watcher stopped")
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watch error", logging.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories join the watch before their contents arrive.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, event.Name); err != nil {
				w.logger.Warn("watch new directory",
					logging.String("path", event.Name),
					logging.Error(err))
			}
		}
	}

	candidate, ok := candidateFor(w.root, event.Name)
	if !ok {
		return
	}
	info, err := os.Stat(candidate)
	if err != nil {
		// The top-level entry itself is gone (deleted or moved away).
		if errors.Is(err, fs.ErrNotExist) {
			w.sink.Forget(candidate)
		}
		return
	}
	w.sink.RecordChange(candidate, info.IsDir())
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip entries that vanished mid-walk
		}
		if !d.IsDir() {
			return nil
		}
		if watchErr := fsw.Add(path); watchErr != nil {
			w.logger.Warn("cannot watch directory",
				logging.String("path", path),
				logging.Error(watchErr))
		}
		return nil
	})
}

// seedExisting reports entries already in the inbox so content dropped
// before startup still ingests once its quiet period passes.
func (w *Watcher) seedExisting() {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		w.logger.Warn("scan existing inbox entries", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		w.sink.RecordChange(filepath.Join(w.root, entry.Name()), entry.IsDir())
	}
}
