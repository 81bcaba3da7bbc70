package queue

import (
	"errors"
	"fmt"
)

// Insert adds a new item unless its id is already present. The returned bool
// reports whether the item was inserted.
func (s *Store) Insert(item *Item) (bool, error) {
	if item == nil {
		return false, errors.New("insert: item is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.loadLocked()
	if findItem(items, item.ID) != nil {
		return false, nil
	}
	items = append(items, item)
	if err := s.persistLocked(items); err != nil {
		return false, err
	}
	return true, nil
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(id string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := findItem(s.loadLocked(), id)
	if item == nil {
		return nil, fmt.Errorf("get item %s: %w", id, ErrNotFound)
	}
	return item, nil
}

// List returns queue items filtered by status set (or all items when no
// status is provided), in admission order.
func (s *Store) List(statuses ...Status) ([]*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.loadLocked()
	if len(statuses) == 0 {
		return items, nil
	}
	wanted := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}
	filtered := make([]*Item, 0, len(items))
	for _, item := range items {
		if _, ok := wanted[item.Status]; ok {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// Remove deletes an item by identifier.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.loadLocked()
	for i, item := range items {
		if item.ID == id {
			items = append(items[:i], items[i+1:]...)
			return s.persistLocked(items)
		}
	}
	return fmt.Errorf("remove item %s: %w", id, ErrNotFound)
}

// SetPriority updates an item's scheduling rank; lower ranks dispatch first.
func (s *Store) SetPriority(id string, rank int) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.loadLocked()
	item := findItem(items, id)
	if item == nil {
		return nil, fmt.Errorf("set priority %s: %w", id, ErrNotFound)
	}
	item.Priority = rank
	if err := s.persistLocked(items); err != nil {
		return nil, err
	}
	return item, nil
}

// Retain drops every item whose status is outside keep and reports how many
// were removed.
func (s *Store) Retain(keep ...Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make(map[Status]struct{}, len(keep))
	for _, status := range keep {
		kept[status] = struct{}{}
	}
	items := s.loadLocked()
	retained := items[:0]
	for _, item := range items {
		if _, ok := kept[item.Status]; ok {
			retained = append(retained, item)
		}
	}
	removed := len(items) - len(retained)
	if removed == 0 {
		return 0, nil
	}
	if err := s.persistLocked(retained); err != nil {
		return 0, err
	}
	return removed, nil
}

// RemoveByStatus drops every item in the given statuses and reports how
// many were removed.
func (s *Store) RemoveByStatus(drop ...Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := make(map[Status]struct{}, len(drop))
	for _, status := range drop {
		dropped[status] = struct{}{}
	}
	items := s.loadLocked()
	retained := items[:0]
	for _, item := range items {
		if _, ok := dropped[item.Status]; !ok {
			retained = append(retained, item)
		}
	}
	removed := len(items) - len(retained)
	if removed == 0 {
		return 0, nil
	}
	if err := s.persistLocked(retained); err != nil {
		return 0, err
	}
	return removed, nil
}
