package watchfolder_test

import (
	"sync"
	"testing"
	"time"
)

// recordingSink captures change and forget reports for assertions.
type recordingSink struct {
	mu      sync.Mutex
	changes map[string]int
	dirs    map[string]bool
	forgets map[string]int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		changes: make(map[string]int),
		dirs:    make(map[string]bool),
		forgets: make(map[string]int),
	}
}

func (s *recordingSink) RecordChange(path string, isDir bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes[path]++
	s.dirs[path] = isDir
}

func (s *recordingSink) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forgets[path]++
}

func (s *recordingSink) changeCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changes[path]
}

func (s *recordingSink) recordedDir(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[path]
}

func (s *recordingSink) forgetCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forgets[path]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.After(10 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			time.Sleep(20 * time.Millisecond)
		}
	}
}
