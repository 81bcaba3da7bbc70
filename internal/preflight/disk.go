package preflight

import (
	"golang.org/x/sys/unix"
)

// DiskStats describes the capacity of the filesystem holding a path.
// FreeBytes is the space available to unprivileged writers, so
// UsedBytes+FreeBytes can fall short of TotalBytes on filesystems with
// reserved blocks.
type DiskStats struct {
	TotalBytes uint64
	UsedBytes  uint64
	FreeBytes  uint64
}

// DiskUsage reports capacity for the filesystem containing path.
func DiskUsage(path string) (DiskStats, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return DiskStats{}, err
	}
	bsize := uint64(stat.Bsize)
	total := stat.Blocks * bsize
	return DiskStats{
		TotalBytes: total,
		UsedBytes:  (stat.Blocks - stat.Bfree) * bsize,
		FreeBytes:  stat.Bavail * bsize,
	}, nil
}
