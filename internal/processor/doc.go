// Package processor mediates access to the external splitter and organizer
// commands that perform the actual audio work.
//
// Each dispatch writes a JSON descriptor naming the input, the output
// location, and the engine settings, then invokes the configured command with
// the descriptor path as its only argument. Commands report through a line
// protocol on stdout: PROGRESS:<percent> checkpoints while running, and a
// single OUTPUT_FILE:<path> or ORGANIZED_TO:<path> line naming the result.
// On a non-zero exit the captured stderr becomes the failure message
// verbatim.
//
// The package exposes a testable interface rather than shelling out directly
// from callers. Tests can swap in fakes via WithExecutor, and higher layers
// receive structured errors carrying the services sentinel markers. Prefer
// this package over ad-hoc exec.Command usage anywhere splitter or organizer
// behavior is needed.
package processor
