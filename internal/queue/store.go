package queue

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

// Store manages queue persistence backed by a single JSON file. Every public
// operation reloads the collection, mutates it, and rewrites the file through
// an atomic rename, all while holding one store-wide lock.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open initializes the queue store, seeding an empty queue file when absent.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store := &Store{path: cfg.QueueFile()}
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, err := os.Stat(store.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat queue file: %w", err)
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

// Path returns the location of the queue file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// loadLocked reads the queue collection. A missing or unreadable file yields
// an empty collection. Callers must hold mu.
func (s *Store) loadLocked() []*Item {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var items []*Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	return items
}

// persistLocked rewrites the queue file from the given collection. Callers
// must hold mu.
func (s *Store) persistLocked(items []*Item) error {
	if items == nil {
		items = []*Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal queue: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write queue file: %w", err)
	}
	return nil
}

func findItem(items []*Item, id string) *Item {
	for _, item := range items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func blockBusy(items []*Item, blockID, excludeID string) bool {
	if blockID == "" {
		return false
	}
	for _, item := range items {
		if item.ID == excludeID {
			continue
		}
		if item.BlockID == blockID && item.Status == StatusProcessing {
			return true
		}
	}
	return false
}
