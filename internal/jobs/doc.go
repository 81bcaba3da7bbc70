// Package jobs persists processing jobs and drives their execution through an
// external audio processor.
//
// The store follows the same discipline as the queue store: one JSON file,
// every operation a reload-mutate-rewrite under a store-wide lock, corrupt or
// missing state loading as an empty collection. The Orchestrator is the only
// writer after submission; it dispatches each started job on a tracked
// goroutine and funnels processor progress reports through a monotonic clamp
// so progress never moves backward while a job is processing.
package jobs
