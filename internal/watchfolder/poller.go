package watchfolder

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
)

// Poller emulates the fsnotify source by fingerprinting top-level inbox
// entries on an interval. It exists for filesystems where inotify does
// not deliver, NFS and SMB mounts in particular, and for tests that
// drive scans directly.
type Poller struct {
	root     string
	interval time.Duration
	sink     Sink
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	seen    map[string]fingerprint
}

// fingerprint summarizes one top-level entry. For directories it folds
// in every nested file so growth anywhere inside an album registers as
// a change.
type fingerprint struct {
	isDir   bool
	size    int64
	modTime time.Time
	entries int
}

func (f fingerprint) equal(other fingerprint) bool {
	return f.isDir == other.isDir &&
		f.size == other.size &&
		f.entries == other.entries &&
		f.modTime.Equal(other.modTime)
}

// NewPoller builds a poller over the configured inbox directory,
// scanning at the ingest sweep interval.
func NewPoller(cfg *config.Config, sink Sink, logger *slog.Logger) *Poller {
	return &Poller{
		root:     filepath.Clean(cfg.Paths.InboxDir),
		interval: time.Duration(cfg.Ingest.SweepIntervalSeconds) * time.Second,
		sink:     sink,
		logger:   logging.NewComponentLogger(logger, "poller"),
		seen:     make(map[string]fingerprint),
	}
}

// Start launches the scan loop. The first scan runs immediately so
// content already present registers without waiting an interval.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("inbox poller already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.wg.Add(1)
	p.mu.Unlock()

	go p.loop(runCtx)
	p.logger.Info("inbox poller started",
		logging.String("path", p.root),
		logging.Duration("interval", p.interval))
	return nil
}

// Stop ends the scan loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info("inbox poller stopped")
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		p.ScanOnce()
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

// ScanOnce fingerprints the top-level inbox entries, reporting changed
// entries and forgetting vanished ones.
func (p *Poller) ScanOnce() {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		p.logger.Warn("scan inbox", logging.Error(err))
		return
	}

	current := make(map[string]fingerprint, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(p.root, entry.Name())
		fp, err := fingerprintPath(path, entry.IsDir())
		if err != nil {
			continue
		}
		current[path] = fp
	}

	p.mu.Lock()
	previous := p.seen
	p.seen = current
	p.mu.Unlock()

	for path, fp := range current {
		if prev, ok := previous[path]; !ok || !prev.equal(fp) {
			p.sink.RecordChange(path, fp.isDir)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			p.sink.Forget(path)
		}
	}
}

func fingerprintPath(path string, isDir bool) (fingerprint, error) {
	if !isDir {
		info, err := os.Stat(path)
		if err != nil {
			return fingerprint{}, err
		}
		return fingerprint{size: info.Size(), modTime: info.ModTime()}, nil
	}

	fp := fingerprint{isDir: true}
	walkErr := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fp.entries++
		fp.size += info.Size()
		if info.ModTime().After(fp.modTime) {
			fp.modTime = info.ModTime()
		}
		return nil
	})
	if walkErr != nil {
		return fingerprint{}, walkErr
	}
	return fp, nil
}
