package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/services"
)

// Processor runs one job's transformation. Implementations report checkpoints
// through the progress callback and return the path of the produced output.
type Processor interface {
	Process(ctx context.Context, job *Job, progress func(percent int)) (string, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, job *Job, progress func(percent int)) (string, error)

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, job *Job, progress func(percent int)) (string, error) {
	return f(ctx, job, progress)
}

// Orchestrator owns the job lifecycle: it persists submissions, dispatches
// started jobs to the processor on background goroutines, and records each
// outcome exactly once.
type Orchestrator struct {
	cfg       *config.Config
	store     *Store
	processor Processor
	logger    *slog.Logger
	timeout   time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewOrchestrator constructs an orchestrator around the given store and
// processor. A nil logger disables logging.
func NewOrchestrator(cfg *config.Config, store *Store, processor Processor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		processor: processor,
		logger:    logger,
		timeout:   time.Duration(cfg.Processing.TimeoutSeconds) * time.Second,
	}
}

// Submit validates and persists a new pending job, filling defaults from the
// configuration.
func (o *Orchestrator) Submit(job *Job) (*Job, error) {
	if job == nil {
		return nil, errors.New("submit: nil job")
	}
	if strings.TrimSpace(job.SourcePath) == "" {
		return nil, errors.New("submit: source path required")
	}
	if job.Status != "" && job.Status != StatusPending {
		return nil, fmt.Errorf("submit: status %s: %w", job.Status, ErrInvalidTransition)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Kind == "" {
		job.Kind = KindSingle
	}
	if job.Splitter == "" {
		job.Splitter = o.cfg.Processing.Splitter
	}
	switch job.Splitter {
	case config.SplitterDemucs, config.SplitterSpleeter:
	default:
		return nil, fmt.Errorf("submit: unknown splitter %q", job.Splitter)
	}
	if job.Stems == nil {
		job.Stems = append([]string(nil), o.cfg.Processing.Stems...)
	}
	job.Status = StatusPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if err := o.store.Insert(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Start claims a pending job and dispatches it to the processor on a tracked
// goroutine. It returns as soon as the claim is persisted; ctx bounds the
// dispatched run together with the configured processing timeout.
func (o *Orchestrator) Start(ctx context.Context, id string) (*Job, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, fmt.Errorf("start %s: %w", id, ErrClosed)
	}
	o.wg.Add(1)
	o.mu.Unlock()

	job, err := o.store.BeginProcessing(id)
	if err != nil {
		o.wg.Done()
		return nil, err
	}
	go o.run(ctx, job)
	return job, nil
}

func (o *Orchestrator) run(ctx context.Context, job *Job) {
	defer o.wg.Done()

	runCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	logger := o.logger.With(
		logging.String("job_id", job.ID),
		logging.String("source_path", job.SourcePath),
	)
	logger.Info("job dispatched",
		logging.String("splitter", job.Splitter),
		logging.String("kind", string(job.Kind)),
	)

	progress := func(percent int) {
		if _, err := o.store.SetProgress(job.ID, percent); err != nil {
			logger.Warn("progress update dropped", logging.Error(err))
		}
	}

	outputPath, err := o.processor.Process(runCtx, job, progress)
	if err != nil {
		logger.Error("job failed", logging.Error(err))
		if _, err := o.store.Fail(job.ID, failureMessage(err)); err != nil {
			logger.Error("could not record job failure", logging.Error(err))
		}
		return
	}

	if _, err := o.store.Complete(job.ID, outputPath); err != nil {
		logger.Error("could not record job completion", logging.Error(err))
		return
	}
	logger.Info("job completed", logging.String("output_path", outputPath))
}

// Retry returns a failed job to pending for another Start.
func (o *Orchestrator) Retry(id string) (*Job, error) {
	return o.store.ResetFailed(id)
}

// Get returns the job with the given id.
func (o *Orchestrator) Get(id string) (*Job, error) {
	return o.store.GetByID(id)
}

// Jobs returns jobs in submission order, optionally filtered by status.
func (o *Orchestrator) Jobs(statuses ...Status) ([]*Job, error) {
	return o.store.List(statuses...)
}

// Recent returns jobs ordered newest first. Offset skips past newer entries
// and a positive limit caps the page size; limit <= 0 returns everything from
// offset on.
func (o *Orchestrator) Recent(limit, offset int, statuses ...Status) ([]*Job, error) {
	list, err := o.store.List(statuses...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []*Job{}, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes a job record in any status.
func (o *Orchestrator) Delete(id string) error {
	return o.store.Remove(id)
}

// Close stops accepting dispatches and waits for in-flight jobs. Callers
// wanting a fast shutdown cancel the context they passed to Start first.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wg.Wait()
}

// failureMessage derives the operator-facing message stored on a failed job.
func failureMessage(err error) string {
	if err == nil {
		return "processor failed without error detail"
	}
	message := strings.TrimSpace(services.Details(err).Message)
	if message == "" {
		message = strings.TrimSpace(err.Error())
	}
	if message == "" {
		message = "processor failed"
	}
	return message
}
