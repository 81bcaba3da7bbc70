// Package workflow drives queue items through the processing pipeline.
//
// The Dispatcher polls the queue for ready work, claims items up to the
// configured concurrency, and hands each one to the job orchestrator as a
// split job. While a job runs the item's heartbeat is refreshed so a
// crashed or wedged daemon leaves a visible trail; stale processing items
// are requeued on the next loop pass without burning a retry.
//
// Completed jobs flow into the organizer (or the external organizer
// command when one is configured), then the source file is archived or
// deleted per the cleanup policy. Failures are retried up to the retry
// limit; items that exhaust it have their source routed to the error
// directory. Item completion, terminal failure, and queue drain each
// publish a notification.
package workflow
