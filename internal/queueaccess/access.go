package queueaccess

import (
	"errors"
	"fmt"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/ipc"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// ErrRequiresDaemon marks operations that only exist inside a running
// daemon.
var ErrRequiresDaemon = errors.New("operation requires a running daemon")

// Access provides queue operations for the CLI regardless of whether a
// daemon is serving the socket.
type Access interface {
	Items(statuses ...string) ([]queue.Item, error)
	Describe(id string) (queue.Item, error)
	Counts() (map[string]int, error)
	Clear(statuses ...string) (int, error)
	Remove(id string) error
	Retry(ids ...string) (int, error)
	SetPriority(id string, priority int) (queue.Item, error)
	Pause() error
	Resume() error
}

// NewIPCAccess wraps a connected daemon client.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Items(statuses ...string) ([]queue.Item, error) {
	resp, err := a.client.QueueList(statuses...)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(id string) (queue.Item, error) {
	resp, err := a.client.QueueDescribe(id)
	return resp.Item, err
}

func (a *ipcAccess) Counts() (map[string]int, error) {
	st, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return st.QueueCounts, nil
}

func (a *ipcAccess) Clear(statuses ...string) (int, error) {
	resp, err := a.client.QueueClear(statuses...)
	return resp.Removed, err
}

func (a *ipcAccess) Remove(id string) error {
	_, err := a.client.QueueRemove(id)
	return err
}

func (a *ipcAccess) Retry(ids ...string) (int, error) {
	resp, err := a.client.QueueRetry(ids...)
	return resp.Retried, err
}

func (a *ipcAccess) SetPriority(id string, priority int) (queue.Item, error) {
	resp, err := a.client.QueueSetPriority(id, priority)
	return resp.Item, err
}

func (a *ipcAccess) Pause() error {
	_, err := a.client.QueuePause()
	return err
}

func (a *ipcAccess) Resume() error {
	_, err := a.client.QueueResume()
	return err
}

// NewStoreAccess edits the queue file directly for offline use.
func NewStoreAccess(cfg *config.Config, store *queue.Store) Access {
	return &storeAccess{manager: queue.NewManager(cfg, store), store: store}
}

type storeAccess struct {
	manager *queue.Manager
	store   *queue.Store
}

func (a *storeAccess) Items(statuses ...string) ([]queue.Item, error) {
	parsed, err := parseStatuses(statuses)
	if err != nil {
		return nil, err
	}
	list, err := a.manager.Items(parsed...)
	if err != nil {
		return nil, err
	}
	items := make([]queue.Item, 0, len(list))
	for _, item := range list {
		items = append(items, *item)
	}
	return items, nil
}

func (a *storeAccess) Describe(id string) (queue.Item, error) {
	item, err := a.manager.Get(id)
	if err != nil {
		return queue.Item{}, err
	}
	return *item, nil
}

func (a *storeAccess) Counts() (map[string]int, error) {
	list, err := a.manager.Items()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(list))
	for _, item := range list {
		counts[string(item.Status)]++
	}
	return counts, nil
}

func (a *storeAccess) Clear(statuses ...string) (int, error) {
	if len(statuses) == 0 {
		return a.manager.Clear()
	}
	parsed, err := parseStatuses(statuses)
	if err != nil {
		return 0, err
	}
	return a.store.RemoveByStatus(parsed...)
}

func (a *storeAccess) Remove(id string) error {
	return a.manager.Remove(id)
}

func (a *storeAccess) Retry(ids ...string) (int, error) {
	strict := len(ids) > 0
	if !strict {
		failed, err := a.manager.Items(queue.StatusError)
		if err != nil {
			return 0, err
		}
		for _, item := range failed {
			ids = append(ids, item.ID)
		}
	}
	count := 0
	for _, id := range ids {
		if _, err := a.manager.Retry(id); err != nil {
			if strict {
				return count, err
			}
			continue
		}
		count++
	}
	return count, nil
}

func (a *storeAccess) SetPriority(id string, priority int) (queue.Item, error) {
	item, err := a.manager.SetPriority(id, priority)
	if err != nil {
		return queue.Item{}, err
	}
	return *item, nil
}

func (a *storeAccess) Pause() error {
	return fmt.Errorf("pause dispatching: %w", ErrRequiresDaemon)
}

func (a *storeAccess) Resume() error {
	return fmt.Errorf("resume dispatching: %w", ErrRequiresDaemon)
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown queue status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
