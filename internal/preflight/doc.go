// Package preflight provides readiness checks for the filesystem paths,
// external binaries, and disk capacity the pipeline depends on.
//
// The daemon runs the checks once at startup and logs failures rather than
// refusing to start; the CLI status command and the API system endpoints
// reuse the individual check functions to display health.
package preflight
