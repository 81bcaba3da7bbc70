package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/fileutil"
)

// Store manages job persistence backed by a single JSON file, with the same
// reload-mutate-rewrite contract as the queue store.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open initializes the job store, seeding an empty jobs file when absent.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store := &Store{path: cfg.JobsFile()}
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, err := os.Stat(store.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat jobs file: %w", err)
		}
		if err := store.persistLocked(nil); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Close releases the store. The JSON store keeps no open handles; Close
// exists so callers can treat all stores uniformly.
func (s *Store) Close() error {
	return nil
}

// Path returns the location of the jobs file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// loadLocked reads the job collection. A missing or unreadable file yields an
// empty collection. Callers must hold mu.
func (s *Store) loadLocked() []*Job {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var list []*Job
	if err := json.Unmarshal(data, &list); err != nil {
		return nil
	}
	return list
}

// persistLocked rewrites the jobs file from the given collection. Callers
// must hold mu.
func (s *Store) persistLocked(list []*Job) error {
	if list == nil {
		list = []*Job{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal jobs: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write jobs file: %w", err)
	}
	return nil
}

func findJob(list []*Job, id string) *Job {
	for _, job := range list {
		if job.ID == id {
			return job
		}
	}
	return nil
}
