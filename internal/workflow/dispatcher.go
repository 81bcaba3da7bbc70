package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/notifications"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/organizer"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// outcomePollInterval paces the wait for a dispatched job to reach a
// terminal status. Job starts never block, so outcomes are observed by
// polling the job store.
const outcomePollInterval = 250 * time.Millisecond

// ExternalOrganizer runs the configured out-of-process organizer command
// against a completed job's output.
type ExternalOrganizer interface {
	Organize(ctx context.Context, job *jobs.Job, inputPath string, progress func(percent int)) (string, error)
}

// Deps bundles the collaborators the dispatcher coordinates.
type Deps struct {
	Queue     *queue.Manager
	Jobs      *jobs.Orchestrator
	Organizer *organizer.Organizer
	External  ExternalOrganizer
	Notifier  notifications.Service
}

// Dispatcher bridges the queue and the job orchestrator. It claims ready
// items, runs each as a split job, organizes the output, applies source
// cleanup, and records the outcome back on the queue.
type Dispatcher struct {
	cfg       *config.Config
	queue     *queue.Manager
	jobs      *jobs.Orchestrator
	organizer *organizer.Organizer
	external  ExternalOrganizer
	notifier  notifications.Service
	logger    *slog.Logger

	heartbeat    *HeartbeatMonitor
	pollInterval time.Duration
	errorBackoff time.Duration
	outcomePoll  time.Duration
	slots        chan struct{}

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	lastErr     error
	lastItem    *queue.Item
	queueActive bool
	queueStart  time.Time

	wg sync.WaitGroup
}

// NewDispatcher builds a dispatcher from configuration and collaborators.
// A nil Notifier falls back to the configured notification service.
func NewDispatcher(cfg *config.Config, deps Deps, logger *slog.Logger) *Dispatcher {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	slots := cfg.Workflow.MaxConcurrentJobs
	if slots < 1 {
		slots = 1
	}
	componentLogger := logging.NewComponentLogger(logger, "dispatcher")
	return &Dispatcher{
		cfg:       cfg,
		queue:     deps.Queue,
		jobs:      deps.Jobs,
		organizer: deps.Organizer,
		external:  deps.External,
		notifier:  notifier,
		logger:    componentLogger,
		heartbeat: NewHeartbeatMonitor(
			deps.Queue,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorBackoff: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		outcomePoll:  outcomePollInterval,
		slots:        make(chan struct{}, slots),
	}
}

// Start launches the dispatch loop. It returns an error when the loop is
// already running or the dispatcher is missing collaborators.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("dispatcher already running")
	}
	if d.queue == nil || d.jobs == nil {
		return errors.New("dispatcher missing queue or job orchestrator")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.wg.Add(1)
	go d.run(runCtx)

	d.logger.Info("dispatcher started",
		logging.Int("max_concurrent_jobs", cap(d.slots)),
		logging.Duration("poll_interval", d.pollInterval))
	return nil
}

// Stop cancels the dispatch loop and waits for in-flight work to unwind.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.cancel = nil
	d.running = false
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := d.heartbeat.ReclaimStale(d.logger); err != nil {
			d.logger.Warn("stale item reclaim failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue state file access"),
				logging.String(logging.FieldImpact, "orphaned items stay in processing"))
		}

		item, err := d.queue.NextReady()
		if err != nil {
			d.setLastError(err)
			d.logger.Error("failed to fetch next queue item",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check queue state file access"))
			d.waitOrShutdown(ctx, d.errorBackoff)
			continue
		}
		if item == nil {
			d.waitOrShutdown(ctx, d.pollInterval)
			continue
		}

		if !d.acquireSlot(ctx) {
			return
		}
		claimed, err := d.queue.MarkProcessing(item.ID)
		if err != nil {
			d.releaseSlot()
			if errors.Is(err, queue.ErrBlockBusy) || errors.Is(err, queue.ErrInvalidTransition) || errors.Is(err, queue.ErrNotFound) {
				d.logger.Debug("item no longer claimable",
					logging.String(logging.FieldItemID, item.ID),
					logging.Error(err))
				continue
			}
			d.setLastError(err)
			d.logger.Error("failed to claim queue item",
				logging.String(logging.FieldItemID, item.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue state file access"))
			d.waitOrShutdown(ctx, d.errorBackoff)
			continue
		}

		d.onWorkStarted()
		d.wg.Add(1)
		go d.processItem(ctx, claimed)
	}
}

// acquireSlot blocks until a concurrency slot frees up or shutdown begins.
func (d *Dispatcher) acquireSlot(ctx context.Context) bool {
	select {
	case d.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) releaseSlot() {
	<-d.slots
}

func (d *Dispatcher) waitOrShutdown(ctx context.Context, wait time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
