package workflow

import (
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// StatusSummary reports dispatcher liveness plus queue and job counters
// for the status surfaces.
type StatusSummary struct {
	Running   bool
	Paused    bool
	LastError string
	LastItem  *queue.Item
	Queue     queue.HealthSummary
	Jobs      jobs.Summary
}

// Status assembles a point-in-time summary of the dispatcher and stores.
func (d *Dispatcher) Status() StatusSummary {
	d.mu.Lock()
	running := d.running
	lastErr := d.lastErr
	lastItem := d.lastItem
	d.mu.Unlock()

	summary := StatusSummary{Running: running}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastItem != nil {
		copied := *lastItem
		summary.LastItem = &copied
	}

	if d.queue != nil {
		summary.Paused = d.queue.IsPaused()
		if items, err := d.queue.Items(); err == nil {
			summary.Queue = queue.Summarize(items)
		} else {
			d.logger.Warn("failed to read queue stats", logging.Error(err))
		}
	}
	if d.jobs != nil {
		if list, err := d.jobs.Jobs(); err == nil {
			summary.Jobs = jobs.Summarize(list)
		} else {
			d.logger.Warn("failed to read job stats", logging.Error(err))
		}
	}
	return summary
}

func (d *Dispatcher) setLastError(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
}

// setLastItem stores a copy so later queue mutations cannot race status
// reads.
func (d *Dispatcher) setLastItem(item *queue.Item) {
	if item == nil {
		return
	}
	copied := *item
	d.mu.Lock()
	d.lastItem = &copied
	d.mu.Unlock()
}
