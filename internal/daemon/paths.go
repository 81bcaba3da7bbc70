package daemon

import (
	"path/filepath"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
)

// Runtime artifacts of one daemon all live in the log directory so a single
// path setting locates the socket, the PID file, and the lock.
const (
	socketFileName = "instrumental.sock"
	pidFileName    = "instrumental.pid"
	lockFileName   = "instrumental.lock"
)

// SocketPath returns the Unix socket the daemon listens on for IPC.
func SocketPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, socketFileName)
}

// PIDPath returns the file holding the daemon's process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, pidFileName)
}

// LockPath returns the advisory lock file guarding single-daemon operation.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, lockFileName)
}
