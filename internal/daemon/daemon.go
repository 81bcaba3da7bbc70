package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/api"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/library"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/notifications"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/preflight"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/watchfolder"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/workflow"
)

// Components bundles the collaborators a daemon hosts. Queue, Jobs, and
// Dispatcher are required; everything else is optional and skipped when nil.
type Components struct {
	QueueStore *queue.Store
	Queue      *queue.Manager
	JobStore   *jobs.Store
	Jobs       *jobs.Orchestrator
	Index      *library.Index
	Watcher    *watchfolder.Watcher
	Poller     *watchfolder.Poller
	Sweeper    *watchfolder.Sweeper
	Dispatcher *workflow.Dispatcher
	API        *api.Server
	Notifier   notifications.Service
}

// Daemon owns the long-running pipeline: inbox ingestion, the dispatch loop,
// the job orchestrator, and the optional HTTP API. A file lock in the log
// directory keeps concurrent daemons off the same state directory.
type Daemon struct {
	cfg    *config.Config
	comp   Components
	logger *slog.Logger

	logPath  string
	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	polling   bool

	running atomic.Bool
}

// New validates the component set and prepares a stopped daemon.
func New(cfg *config.Config, comp Components, logPath string, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if comp.Queue == nil {
		return nil, errors.New("daemon requires a queue manager")
	}
	if comp.Jobs == nil {
		return nil, errors.New("daemon requires a job orchestrator")
	}
	if comp.Dispatcher == nil {
		return nil, errors.New("daemon requires a dispatcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := LockPath(cfg)
	return &Daemon{
		cfg:      cfg,
		comp:     comp,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		logPath:  logPath,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and brings the components up. Ingestion
// prefers the fsnotify watcher and falls back to the polling scanner when
// the inbox filesystem does not deliver events.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return errors.New("another instrumental daemon is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	fail := func(err error) error {
		cancel()
		if unlockErr := d.lock.Unlock(); unlockErr != nil {
			d.logger.Warn("release daemon lock", logging.Error(unlockErr))
		}
		return err
	}

	if err := d.comp.Dispatcher.Start(runCtx); err != nil {
		return fail(fmt.Errorf("start dispatcher: %w", err))
	}

	watching := false
	if d.comp.Watcher != nil {
		if err := d.comp.Watcher.Start(runCtx); err != nil {
			d.logger.Warn("inbox watcher unavailable, falling back to polling", logging.Error(err))
		} else {
			watching = true
		}
	}
	d.polling = false
	if !watching && d.comp.Poller != nil {
		if err := d.comp.Poller.Start(runCtx); err != nil {
			d.logger.Warn("inbox poller failed to start", logging.Error(err))
		} else {
			d.polling = true
		}
	}
	if !watching && !d.polling && (d.comp.Watcher != nil || d.comp.Poller != nil) {
		d.logger.Warn("inbox ingestion disabled, no watcher or poller running")
	}

	if d.comp.Sweeper != nil {
		if err := d.comp.Sweeper.Start(runCtx); err != nil {
			if d.comp.Watcher != nil {
				d.comp.Watcher.Stop()
			}
			if d.comp.Poller != nil {
				d.comp.Poller.Stop()
			}
			d.comp.Dispatcher.Stop()
			return fail(fmt.Errorf("start sweeper: %w", err))
		}
	}

	if d.comp.API != nil {
		if err := d.comp.API.Start(runCtx); err != nil {
			d.logger.Warn("api server failed to start", logging.Error(err))
		}
	}

	d.ctx = runCtx
	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("polling", d.polling),
	)
	return nil
}

// Stop halts the components and releases the daemon lock. The daemon can be
// started again afterwards; in-flight jobs keep running until the
// orchestrator observes cancellation.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.comp.API != nil {
		d.comp.API.Stop()
	}
	if d.comp.Watcher != nil {
		d.comp.Watcher.Stop()
	}
	if d.comp.Poller != nil {
		d.comp.Poller.Stop()
	}
	if d.comp.Sweeper != nil {
		d.comp.Sweeper.Stop()
	}
	d.comp.Dispatcher.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases everything it owns. The orchestrator
// waits for in-flight jobs, so cancellation through Stop comes first.
func (d *Daemon) Close() error {
	d.Stop()
	if d.comp.Jobs != nil {
		d.comp.Jobs.Close()
	}
	var errs []error
	if d.comp.Index != nil {
		if err := d.comp.Index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close library index: %w", err))
		}
	}
	if d.comp.JobStore != nil {
		if err := d.comp.JobStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close job store: %w", err))
		}
	}
	if d.comp.QueueStore != nil {
		if err := d.comp.QueueStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Running reports whether the components are up.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the log file this daemon writes.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// runContext returns the context job dispatches should inherit. Outside a
// running daemon the background context applies; the processing timeout
// still bounds each job.
func (d *Daemon) runContext() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil && d.running.Load() {
		return d.ctx
	}
	return context.Background()
}

// Status describes the daemon for the CLI and IPC surfaces.
type Status struct {
	Running     bool
	PID         int
	StartedAt   time.Time
	LogFile     string
	QueueFile   string
	JobsFile    string
	LockFile    string
	PIDFile     string
	SocketFile  string
	APIAddr     string
	Polling     bool
	Workflow    workflow.StatusSummary
	QueueCounts map[string]int
	Binaries    []preflight.Binary
}

// Status reports the current daemon state. It works on a stopped daemon
// too, so the CLI can inspect state before the components come up.
func (d *Daemon) Status() (Status, error) {
	st := Status{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		LogFile:    d.logPath,
		LockFile:   d.lockPath,
		PIDFile:    PIDPath(d.cfg),
		SocketFile: SocketPath(d.cfg),
		Binaries:   preflight.CheckBinaries(d.cfg),
	}
	d.mu.Lock()
	st.StartedAt = d.startedAt
	st.Polling = d.polling
	d.mu.Unlock()

	if d.comp.QueueStore != nil {
		st.QueueFile = d.comp.QueueStore.Path()
	}
	if d.comp.JobStore != nil {
		st.JobsFile = d.comp.JobStore.Path()
	}
	if d.comp.API != nil {
		st.APIAddr = d.comp.API.Addr()
	}
	st.Workflow = d.comp.Dispatcher.Status()

	items, err := d.comp.Queue.Items()
	if err != nil {
		return st, fmt.Errorf("load queue items: %w", err)
	}
	counts := make(map[string]int, len(items))
	for _, item := range items {
		counts[string(item.Status)]++
	}
	st.QueueCounts = counts
	return st, nil
}

// QueueItems returns queue items, optionally filtered by status.
func (d *Daemon) QueueItems(statuses ...queue.Status) ([]*queue.Item, error) {
	return d.comp.Queue.Items(statuses...)
}

// QueueItem returns a single queue item by id.
func (d *Daemon) QueueItem(id string) (*queue.Item, error) {
	return d.comp.Queue.Get(id)
}

// QueueRemove drops one item from the queue.
func (d *Daemon) QueueRemove(id string) error {
	return d.comp.Queue.Remove(id)
}

// QueueSetPriority reorders one item among the waiting work.
func (d *Daemon) QueueSetPriority(id string, rank int) (*queue.Item, error) {
	return d.comp.Queue.SetPriority(id, rank)
}

// QueueClear drops every item that is neither processing nor done.
func (d *Daemon) QueueClear() (int, error) {
	return d.comp.Queue.Clear()
}

// QueueClearStatuses drops only items in the given statuses.
func (d *Daemon) QueueClearStatuses(drop ...queue.Status) (int, error) {
	if len(drop) == 0 {
		return 0, nil
	}
	return d.comp.QueueStore.RemoveByStatus(drop...)
}

// QueueRetry requeues failed items. With no ids every failed item is
// retried; explicit ids fail fast so the caller learns about unknown or
// non-failed items.
func (d *Daemon) QueueRetry(ids ...string) (int, error) {
	strict := len(ids) > 0
	if !strict {
		failed, err := d.comp.Queue.Items(queue.StatusError)
		if err != nil {
			return 0, err
		}
		for _, item := range failed {
			ids = append(ids, item.ID)
		}
	}
	count := 0
	for _, id := range ids {
		if _, err := d.comp.Queue.Retry(id); err != nil {
			if strict {
				return count, err
			}
			continue
		}
		count++
	}
	return count, nil
}

// QueuePause suspends dispatching of ready items.
func (d *Daemon) QueuePause() {
	d.comp.Queue.Pause()
}

// QueueResume reverses QueuePause.
func (d *Daemon) QueueResume() {
	d.comp.Queue.Resume()
}

// QueuePaused reports whether dispatching is paused.
func (d *Daemon) QueuePaused() bool {
	return d.comp.Queue.IsPaused()
}

// JobList returns jobs newest first, optionally filtered by status.
func (d *Daemon) JobList(limit, offset int, statuses ...jobs.Status) ([]*jobs.Job, error) {
	return d.comp.Jobs.Recent(limit, offset, statuses...)
}

// Job returns a single job by id.
func (d *Daemon) Job(id string) (*jobs.Job, error) {
	return d.comp.Jobs.Get(id)
}

// JobStart dispatches a pending job, such as one staged over the API.
func (d *Daemon) JobStart(id string) (*jobs.Job, error) {
	return d.comp.Jobs.Start(d.runContext(), id)
}

// JobRetry resets a failed job and dispatches it again.
func (d *Daemon) JobRetry(id string) (*jobs.Job, error) {
	if _, err := d.comp.Jobs.Retry(id); err != nil {
		return nil, err
	}
	return d.comp.Jobs.Start(d.runContext(), id)
}

// JobDelete removes a job record and any produced output. Processing jobs
// are refused; cancel or wait first.
func (d *Daemon) JobDelete(id string) error {
	job, err := d.comp.Jobs.Get(id)
	if err != nil {
		return err
	}
	if job.Status == jobs.StatusProcessing {
		return fmt.Errorf("job %s is processing", id)
	}
	if err := d.comp.Jobs.Delete(id); err != nil {
		return err
	}
	_ = os.RemoveAll(filepath.Join(d.cfg.Paths.OutputDir, job.ID))
	return nil
}

// TestNotification publishes a test event so operators can verify their
// ntfy topic before relying on it.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := d.comp.Notifier
	if notifier == nil {
		notifier = notifications.NewService(d.cfg)
	}
	if err := notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "", fmt.Errorf("publish test notification: %w", err)
	}
	return true, "test notification sent", nil
}
