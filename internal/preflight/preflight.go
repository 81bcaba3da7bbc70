package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks access to every pipeline directory. Binary availability is
// reported separately by CheckBinaries so callers can distinguish a broken
// filesystem from a missing tool.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	dirs := []struct {
		name string
		path string
	}{
		{"Inbox directory", cfg.Paths.InboxDir},
		{"Output directory", cfg.Paths.OutputDir},
		{"Library directory", cfg.Paths.LibraryDir},
		{"Archive directory", cfg.Paths.ArchiveDir},
		{"Error directory", cfg.Paths.ErrorDir},
		{"State directory", cfg.Paths.StateDir},
		{"Log directory", cfg.Paths.LogDir},
	}

	results := make([]Result, 0, len(dirs))
	for _, dir := range dirs {
		if dir.path == "" {
			continue
		}
		results = append(results, CheckDirectoryAccess(dir.name, dir.path))
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable,
// writable, and traversable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}
