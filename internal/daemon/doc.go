// Package daemon hosts the long-running pipeline process. It wires inbox
// ingestion, the queue dispatcher, the job orchestrator, and the optional
// HTTP API behind one lifecycle, guarded by a file lock so a single daemon
// serves each state directory. The exported methods double as the IPC
// surface consumed by the CLI.
package daemon
