// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Enumerated event types cover the pipeline milestones worth a push
// (job completed, job failed, queue drained) so workflow code can emit
// consistent, user-friendly messages without duplicating HTTP glue. Per-event
// config toggles decide which events actually reach the topic.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
