package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/organizer"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/services"
)

// processItem runs one claimed queue item end to end. It owns the item's
// concurrency slot and heartbeat for the duration.
func (d *Dispatcher) processItem(ctx context.Context, item *queue.Item) {
	defer d.wg.Done()
	defer d.releaseSlot()

	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, d.logger)

	start := time.Now()
	logger.Info("dispatching queue item",
		logging.String(logging.FieldEventType, logging.EventDispatched),
		logging.String("path", item.Path),
		logging.String("kind", string(item.Kind)),
		logging.Int("retry_count", item.RetryCount))

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go d.heartbeat.StartLoop(hbCtx, &hbWG, item.ID)

	finalPath, runErr := d.runItem(ctx, logger, item)

	// Stop the heartbeat before recording the outcome so a late tick
	// cannot resurrect a finished item.
	hbCancel()
	hbWG.Wait()

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Debug("dispatch interrupted by shutdown; item will be reclaimed")
			return
		}
		d.failItem(ctx, logger, item, runErr)
		return
	}
	d.completeItem(ctx, logger, item, finalPath, time.Since(start))
}

// runItem submits the item as a job, waits for the terminal status, then
// organizes the output and cleans up the source.
func (d *Dispatcher) runItem(ctx context.Context, logger *slog.Logger, item *queue.Item) (string, error) {
	job := jobs.NewJob(item.Path, jobKindFor(item.Kind), "", nil)
	job.Metadata = map[string]string{"queue_item_id": item.ID}
	if item.BlockID != "" {
		job.Metadata["block_id"] = item.BlockID
	}

	submitted, err := d.jobs.Submit(job)
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	ctx = services.WithJobID(ctx, submitted.ID)
	logger = logger.With(logging.String(logging.FieldJobID, submitted.ID))

	if _, err := d.jobs.Start(ctx, submitted.ID); err != nil {
		return "", fmt.Errorf("start job: %w", err)
	}

	final, err := d.awaitJob(ctx, submitted.ID)
	if err != nil {
		return "", err
	}
	if final.Status != jobs.StatusCompleted {
		message := strings.TrimSpace(final.ErrorMessage)
		if message == "" {
			message = fmt.Sprintf("job finished in status %s", final.Status)
		}
		return "", errors.New(message)
	}
	logger.Info("split job completed", logging.String("output", final.OutputPath))

	finalPath, err := d.organizeOutput(ctx, final, item)
	if err != nil {
		return "", err
	}
	d.cleanupAfterSuccess(ctx, logger, final, item)
	return finalPath, nil
}

// awaitJob polls the job store until the job reaches a terminal status.
func (d *Dispatcher) awaitJob(ctx context.Context, id string) (*jobs.Job, error) {
	ticker := time.NewTicker(d.outcomePoll)
	defer ticker.Stop()
	for {
		job, err := d.jobs.Get(id)
		if err != nil {
			return nil, fmt.Errorf("await job %s: %w", id, err)
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// organizeOutput routes the completed job's output into the library. The
// external organizer command takes over when one is configured; otherwise
// the built-in organizer places the file.
func (d *Dispatcher) organizeOutput(ctx context.Context, job *jobs.Job, item *queue.Item) (string, error) {
	if strings.TrimSpace(d.cfg.Processing.OrganizerCommand) != "" && d.external != nil {
		finalPath, err := d.external.Organize(ctx, job, job.OutputPath, nil)
		if err != nil {
			return "", fmt.Errorf("organize output: %w", err)
		}
		return finalPath, nil
	}
	if d.organizer == nil {
		return job.OutputPath, nil
	}
	placement, err := d.organizer.Organize(ctx, organizer.Request{
		ProducedPath: job.OutputPath,
		SourcePath:   item.Path,
		JobID:        job.ID,
	})
	if err != nil {
		return "", fmt.Errorf("organize output: %w", err)
	}
	return placement.FinalPath, nil
}

// cleanupAfterSuccess applies the source cleanup policy and prunes the
// job's split directory. Failures here never fail the item; the
// instrumental already reached the library.
func (d *Dispatcher) cleanupAfterSuccess(ctx context.Context, logger *slog.Logger, job *jobs.Job, item *queue.Item) {
	if d.organizer != nil {
		if err := d.organizer.CleanupSource(ctx, item.Path); err != nil {
			logger.Warn("source cleanup failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "source_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "archive or remove the file manually"),
				logging.String(logging.FieldImpact, "processed source stays in the inbox"))
		}
	}
	splitDir := filepath.Join(d.cfg.Paths.OutputDir, job.ID)
	if err := os.RemoveAll(splitDir); err != nil {
		logger.Debug("split directory cleanup failed",
			logging.String("path", splitDir),
			logging.Error(err))
	}
}

// completeItem records the queue outcome and publishes the completion.
func (d *Dispatcher) completeItem(ctx context.Context, logger *slog.Logger, item *queue.Item, finalPath string, elapsed time.Duration) {
	updated, err := d.queue.MarkDone(item.ID)
	if err != nil {
		d.setLastError(err)
		logger.Error("failed to record item completion",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue state file access"))
		return
	}
	d.setLastItem(updated)
	logger.Info("queue item completed",
		logging.String(logging.FieldEventType, logging.EventCompleted),
		logging.String("final_file", finalPath),
		logging.Duration("elapsed", elapsed))

	d.notifyItemCompleted(ctx, logger, item, finalPath)
	d.checkQueueDrained(ctx, logger)
}

func jobKindFor(kind queue.Kind) jobs.Kind {
	if kind == queue.KindAlbumMember {
		return jobs.KindAlbum
	}
	return jobs.KindSingle
}
