// Package logs reads daemon log files for the CLI and the IPC surface.
//
// Tail returns whole lines with bounded memory: a negative offset asks for
// the last N lines, a non-negative offset resumes an earlier read, and
// follow mode polls for fresh lines until the wait budget runs out. The
// returned offset always points at the next unread byte, so repeated calls
// stream a growing file without duplicating lines. This powers
// `instrumental logs --follow`.
package logs
