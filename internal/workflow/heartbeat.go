package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// HeartbeatMonitor refreshes item heartbeats while work runs and requeues
// processing items orphaned by a crashed or wedged dispatch.
type HeartbeatMonitor struct {
	queue    *queue.Manager
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(manager *queue.Manager, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		queue:    manager,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// ReclaimStale requeues processing items whose heartbeat went quiet. The
// retry count is left alone so recovered work keeps its full retry budget.
func (h *HeartbeatMonitor) ReclaimStale(logger *slog.Logger) error {
	if h.timeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.timeout)
	reclaimed, err := h.queue.ReclaimStale(cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale processing items", logging.Int("count", reclaimed))
	}
	return nil
}

// StartLoop runs a heartbeat updater for a specific item until context
// cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, itemID string) {
	defer wg.Done()
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.queue.Heartbeat(itemID); err != nil {
				logger.Warn("heartbeat update failed",
					logging.String(logging.FieldItemID, itemID),
					logging.Error(err))
			}
		}
	}
}
