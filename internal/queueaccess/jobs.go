package queueaccess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/ipc"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
)

// JobAccess mirrors Access for job records. Starting a job needs a live
// processor, so the offline form refuses Start and leaves retried jobs
// pending for the next daemon.
type JobAccess interface {
	Jobs(limit, offset int, statuses ...string) ([]jobs.Job, error)
	Describe(id string) (jobs.Job, error)
	Start(id string) (jobs.Job, error)
	Retry(id string) (jobs.Job, error)
	Delete(id string) error
}

// NewIPCJobAccess wraps a connected daemon client.
func NewIPCJobAccess(client *ipc.Client) JobAccess {
	return &ipcJobAccess{client: client}
}

type ipcJobAccess struct {
	client *ipc.Client
}

func (a *ipcJobAccess) Jobs(limit, offset int, statuses ...string) ([]jobs.Job, error) {
	resp, err := a.client.JobList(limit, offset, statuses...)
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (a *ipcJobAccess) Describe(id string) (jobs.Job, error) {
	resp, err := a.client.JobDescribe(id)
	return resp.Job, err
}

func (a *ipcJobAccess) Start(id string) (jobs.Job, error) {
	resp, err := a.client.JobStart(id)
	return resp.Job, err
}

func (a *ipcJobAccess) Retry(id string) (jobs.Job, error) {
	resp, err := a.client.JobRetry(id)
	return resp.Job, err
}

func (a *ipcJobAccess) Delete(id string) error {
	_, err := a.client.JobDelete(id)
	return err
}

// NewStoreJobAccess edits the jobs file directly for offline use.
func NewStoreJobAccess(cfg *config.Config, store *jobs.Store) JobAccess {
	noop := jobs.ProcessorFunc(func(context.Context, *jobs.Job, func(int)) (string, error) {
		return "", nil
	})
	return &storeJobAccess{
		cfg:   cfg,
		store: store,
		orch:  jobs.NewOrchestrator(cfg, store, noop, nil),
	}
}

type storeJobAccess struct {
	cfg   *config.Config
	store *jobs.Store
	orch  *jobs.Orchestrator
}

func (a *storeJobAccess) Jobs(limit, offset int, statuses ...string) ([]jobs.Job, error) {
	parsed, err := parseJobStatuses(statuses)
	if err != nil {
		return nil, err
	}
	list, err := a.orch.Recent(limit, offset, parsed...)
	if err != nil {
		return nil, err
	}
	out := make([]jobs.Job, 0, len(list))
	for _, job := range list {
		out = append(out, *job)
	}
	return out, nil
}

func (a *storeJobAccess) Describe(id string) (jobs.Job, error) {
	job, err := a.store.GetByID(id)
	if err != nil {
		return jobs.Job{}, err
	}
	return *job, nil
}

func (a *storeJobAccess) Start(id string) (jobs.Job, error) {
	return jobs.Job{}, fmt.Errorf("start job: %w", ErrRequiresDaemon)
}

func (a *storeJobAccess) Retry(id string) (jobs.Job, error) {
	job, err := a.store.ResetFailed(id)
	if err != nil {
		return jobs.Job{}, err
	}
	return *job, nil
}

func (a *storeJobAccess) Delete(id string) error {
	job, err := a.store.GetByID(id)
	if err != nil {
		return err
	}
	if job.Status == jobs.StatusProcessing {
		return fmt.Errorf("job %s is processing", id)
	}
	if err := a.store.Remove(id); err != nil {
		return err
	}
	_ = os.RemoveAll(filepath.Join(a.cfg.Paths.OutputDir, job.ID))
	return nil
}

func parseJobStatuses(values []string) ([]jobs.Status, error) {
	statuses := make([]jobs.Status, 0, len(values))
	for _, value := range values {
		status, ok := jobs.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown job status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
