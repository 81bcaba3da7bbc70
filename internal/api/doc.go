// Package api exposes the pipeline over an embedded REST server.
//
// The Server mounts a gin router under /api/v1 with handler groups for
// jobs (list, create, retry, download results), the ingestion queue
// (list, pause, resume, priorities), uploads (single files and album
// directories written into the inbox), the library index (browse and
// search), and system introspection (health, stats, storage, settings).
//
// The daemon owns the server lifecycle: Start binds the configured
// address and serves until the daemon context is cancelled, then the
// listener drains with a bounded shutdown. Uploads that request
// immediate processing bypass the inbox and go straight to the job
// orchestrator; everything else lands in the inbox for the watcher.
package api
