package jobs

import "fmt"

// Insert appends a new job. Job ids are generated, so a colliding id means a
// caller bug rather than a retryable condition.
func (s *Store) Insert(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadLocked()
	if findJob(list, job.ID) != nil {
		return fmt.Errorf("insert job %s: id already present", job.ID)
	}
	list = append(list, job)
	return s.persistLocked(list)
}

// GetByID returns the job with the given id.
func (s *Store) GetByID(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := findJob(s.loadLocked(), id)
	if job == nil {
		return nil, fmt.Errorf("get job %s: %w", id, ErrNotFound)
	}
	return job, nil
}

// List returns jobs in submission order. With statuses given, only jobs in
// one of those statuses are returned.
func (s *Store) List(statuses ...Status) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadLocked()
	if len(statuses) == 0 {
		return list, nil
	}
	wanted := make(map[Status]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}
	filtered := make([]*Job, 0, len(list))
	for _, job := range list {
		if _, ok := wanted[job.Status]; ok {
			filtered = append(filtered, job)
		}
	}
	return filtered, nil
}

// Remove deletes the job with the given id regardless of its status.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadLocked()
	for i, job := range list {
		if job.ID == id {
			list = append(list[:i], list[i+1:]...)
			return s.persistLocked(list)
		}
	}
	return fmt.Errorf("remove job %s: %w", id, ErrNotFound)
}
