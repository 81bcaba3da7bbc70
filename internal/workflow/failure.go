package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/services"
)

// failItem records the failure on the queue and decides between a retry
// and a terminal failure. Exhausted items have their source routed to the
// error directory and publish a failure notification.
func (d *Dispatcher) failItem(ctx context.Context, logger *slog.Logger, item *queue.Item, cause error) {
	message := failureMessage(cause)
	logger.Error("queue item failed",
		logging.String(logging.FieldEventType, logging.EventFailed),
		logging.String("error_message", message),
		logging.Error(cause))

	failed, err := d.queue.MarkError(item.ID, message)
	if err != nil {
		d.setLastError(err)
		logger.Error("failed to record item failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue state file access"))
		return
	}
	d.setLastItem(failed)

	retried, err := d.queue.Retry(item.ID)
	switch {
	case err == nil:
		logger.Info("queue item requeued",
			logging.String(logging.FieldEventType, logging.EventRetried),
			logging.Int("retry_count", retried.RetryCount),
			logging.Int("retry_limit", d.cfg.Workflow.RetryLimit))
		d.setLastItem(retried)
	case errors.Is(err, queue.ErrRetryLimitReached):
		logger.Warn("retry limit reached; item failed permanently",
			logging.Int("retry_count", failed.RetryCount),
			logging.String(logging.FieldErrorHint, "inspect the error directory and retry manually"),
			logging.String(logging.FieldImpact, "source will not be processed again"))
		d.routeFailedSource(ctx, logger, item, message)
		d.notifyItemFailed(ctx, logger, item, message)
	case errors.Is(err, queue.ErrInvalidTransition):
		logger.Debug("item left the failed state before retry", logging.Error(err))
	default:
		d.setLastError(err)
		logger.Error("failed to requeue item",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue state file access"))
	}

	d.checkQueueDrained(ctx, logger)
}

// routeFailedSource moves the exhausted item's source into the error
// directory so the inbox does not accumulate poison files.
func (d *Dispatcher) routeFailedSource(ctx context.Context, logger *slog.Logger, item *queue.Item, reason string) {
	if d.organizer == nil {
		return
	}
	target, err := d.organizer.MoveToError(ctx, item.Path, reason)
	if err != nil {
		logger.Warn("failed source could not be moved to the error directory",
			logging.Error(err),
			logging.String(logging.FieldEventType, "error_routing_failed"),
			logging.String(logging.FieldErrorHint, "check error directory permissions"),
			logging.String(logging.FieldImpact, "failed source stays in the inbox"))
		return
	}
	if target != "" {
		logger.Info("failed source moved to error directory", logging.String("target", target))
	}
}

// failureMessage distills an operator-facing message from a pipeline error.
func failureMessage(err error) string {
	if err == nil {
		return "processing failed without error detail"
	}
	message := strings.TrimSpace(services.Details(err).Message)
	if message == "" {
		message = strings.TrimSpace(err.Error())
	}
	if message == "" {
		message = "processing failed"
	}
	return message
}
