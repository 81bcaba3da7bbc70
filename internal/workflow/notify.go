package workflow

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/notifications"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// onWorkStarted opens a drain-tracking window the first time work begins
// after the queue was last empty.
func (d *Dispatcher) onWorkStarted() {
	d.mu.Lock()
	if !d.queueActive {
		d.queueActive = true
		d.queueStart = time.Now()
	}
	d.mu.Unlock()
}

func (d *Dispatcher) notifyItemCompleted(ctx context.Context, logger *slog.Logger, item *queue.Item, finalPath string) {
	err := d.notifier.Publish(ctx, notifications.EventJobCompleted, notifications.Payload{
		"item":      filepath.Base(item.Path),
		"finalFile": finalPath,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, completion notification skipped")
			return
		}
		logger.Debug("completion notification failed", logging.Error(err))
	}
}

func (d *Dispatcher) notifyItemFailed(ctx context.Context, logger *slog.Logger, item *queue.Item, message string) {
	err := d.notifier.Publish(ctx, notifications.EventJobFailed, notifications.Payload{
		"item":  filepath.Base(item.Path),
		"error": message,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, failure notification skipped")
			return
		}
		logger.Debug("failure notification failed", logging.Error(err))
	}
}

// checkQueueDrained publishes a drain notification once per busy window,
// when the last pending or processing item reaches an outcome.
func (d *Dispatcher) checkQueueDrained(ctx context.Context, logger *slog.Logger) {
	snap, err := d.queue.Snapshot()
	if err != nil {
		logger.Warn("queue stats unavailable, drain notification skipped",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_stats_failed"),
			logging.String(logging.FieldErrorHint, "check queue state file access"))
		return
	}
	if snap.Summary.Pending > 0 || snap.Summary.Processing > 0 {
		return
	}

	d.mu.Lock()
	if !d.queueActive {
		d.mu.Unlock()
		return
	}
	start := d.queueStart
	d.queueActive = false
	d.queueStart = time.Time{}
	d.mu.Unlock()

	var duration time.Duration
	if !start.IsZero() {
		duration = time.Since(start)
	}
	err = d.notifier.Publish(ctx, notifications.EventQueueDrained, notifications.Payload{
		"processed": snap.Summary.Completed,
		"failed":    snap.Summary.Failed,
		"duration":  duration,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, drain notification skipped")
			return
		}
		logger.Debug("drain notification failed", logging.Error(err))
	}
}
