package logging

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionTarget describes one directory whose files are pruned by age
// and count.
type RetentionTarget struct {
	Dir     string
	Pattern string
	MaxAge  time.Duration
	MaxKeep int
}

// CleanupOldLogs removes files matching each target's pattern that are
// older than MaxAge, then trims the survivors down to MaxKeep newest.
// Missing directories are skipped. The first error encountered is
// returned after all targets have been attempted.
func CleanupOldLogs(targets []RetentionTarget, now time.Time) error {
	var firstErr error
	for _, target := range targets {
		if err := cleanupTarget(target, now); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func cleanupTarget(target RetentionTarget, now time.Time) error {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return nil
	}
	pattern := target.Pattern
	if pattern == "" {
		pattern = "*.log"
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, matchErr := filepath.Match(pattern, entry.Name())
		if matchErr != nil {
			return matchErr
		}
		if !matched {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	var firstErr error
	kept := 0
	for _, cand := range candidates {
		expired := target.MaxAge > 0 && now.Sub(cand.modTime) > target.MaxAge
		overCount := target.MaxKeep > 0 && kept >= target.MaxKeep
		if !expired && !overCount {
			kept++
			continue
		}
		if err := os.Remove(cand.path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
