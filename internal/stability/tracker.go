// Package stability tracks paths seen in the inbox until they stop
// changing. Directories wait out a longer quiet period than files
// because an album copy lands as a burst of per-file events.
package stability

import (
	"sort"
	"sync"
	"time"
)

// Candidate is a tracked path that has satisfied its quiet period.
type Candidate struct {
	Path  string
	IsDir bool
}

// Tracker is pure bookkeeping: it records last-change timestamps and
// answers which paths have been quiet long enough. It performs no I/O.
type Tracker struct {
	mu            sync.Mutex
	fileThreshold time.Duration
	dirThreshold  time.Duration
	pending       map[string]entry
}

type entry struct {
	lastChange time.Time
	isDir      bool
}

// New constructs a Tracker with the given quiet periods.
func New(fileThreshold, dirThreshold time.Duration) *Tracker {
	return &Tracker{
		fileThreshold: fileThreshold,
		dirThreshold:  dirThreshold,
		pending:       make(map[string]entry),
	}
}

// RecordChange registers path or refreshes its timestamp. Repeated
// events for the same path restart its quiet period.
func (t *Tracker) RecordChange(path string, isDir bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[path] = entry{lastChange: time.Now(), isDir: isDir}
}

// Forget drops path from tracking. Unknown paths are a no-op.
func (t *Tracker) Forget(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, path)
}

// StablePaths returns every tracked path whose quiet period has elapsed
// as of now, in lexical order. Entries stay tracked until Forget.
func (t *Tracker) StablePaths(now time.Time) []Candidate {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stable []Candidate
	for path, e := range t.pending {
		threshold := t.fileThreshold
		if e.isDir {
			threshold = t.dirThreshold
		}
		if now.Sub(e.lastChange) >= threshold {
			stable = append(stable, Candidate{Path: path, IsDir: e.isDir})
		}
	}
	sort.Slice(stable, func(i, j int) bool { return stable[i].Path < stable[j].Path })
	return stable
}

// Pending reports how many paths are currently tracked.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
