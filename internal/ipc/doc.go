// Package ipc connects the CLI to the daemon over a Unix domain socket
// using JSON-RPC. The server wraps the daemon's control surface; the client
// offers typed methods per operation. The socket lives in the log directory
// next to the daemon's other runtime files.
package ipc
