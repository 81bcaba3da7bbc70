package daemon_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/daemon"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/testsupport"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/workflow"
)

type env struct {
	cfg   *config.Config
	store *queue.Store
	queue *queue.Manager
	jobs  *jobs.Orchestrator
	d     *daemon.Daemon
}

func newDaemon(t *testing.T, proc jobs.Processor) *env {
	t.Helper()
	return newDaemonWithConfig(t, testsupport.NewConfig(t), proc)
}

func newDaemonWithConfig(t *testing.T, cfg *config.Config, proc jobs.Processor) *env {
	t.Helper()

	store := testsupport.MustOpenQueueStore(t, cfg)
	mgr := queue.NewManager(cfg, store)
	jstore := testsupport.MustOpenJobStore(t, cfg)
	if proc == nil {
		proc = jobs.ProcessorFunc(func(context.Context, *jobs.Job, func(int)) (string, error) {
			return "", nil
		})
	}
	orch := jobs.NewOrchestrator(cfg, jstore, proc, logging.NewNop())
	disp := workflow.NewDispatcher(cfg, workflow.Deps{Queue: mgr, Jobs: orch}, logging.NewNop())

	d, err := daemon.New(cfg, daemon.Components{
		QueueStore: store,
		Queue:      mgr,
		JobStore:   jstore,
		Jobs:       orch,
		Dispatcher: disp,
	}, filepath.Join(cfg.Paths.LogDir, "daemon-test.log"), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("daemon close: %v", err)
		}
	})
	return &env{cfg: cfg, store: store, queue: mgr, jobs: orch, d: d}
}

func admitSingle(t *testing.T, mgr *queue.Manager, path string) *queue.Item {
	t.Helper()
	item := queue.NewSingle(path)
	inserted, err := mgr.Admit(item)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if !inserted {
		t.Fatalf("Admit reported duplicate for %s", path)
	}
	return item
}

func failItem(t *testing.T, mgr *queue.Manager, id, message string) {
	t.Helper()
	if _, err := mgr.MarkProcessing(id); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if _, err := mgr.MarkError(id, message); err != nil {
		t.Fatalf("MarkError failed: %v", err)
	}
}

func waitForJob(t *testing.T, orch *jobs.Orchestrator, id string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := orch.Get(id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return nil
}

func TestDaemonStartStopRestart(t *testing.T) {
	env := newDaemon(t, nil)
	ctx := context.Background()

	if env.d.Running() {
		t.Fatal("daemon reported running before start")
	}
	if err := env.d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !env.d.Running() {
		t.Fatal("daemon not running after start")
	}
	if err := env.d.Start(ctx); err == nil {
		t.Fatal("expected error for second start")
	}

	env.d.Stop()
	if env.d.Running() {
		t.Fatal("daemon still running after stop")
	}

	if err := env.d.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	env.d.Stop()
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	first := newDaemon(t, nil)
	second := newDaemonWithConfig(t, first.cfg, nil)
	ctx := context.Background()

	if err := first.d.Start(ctx); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	err := second.d.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("second start error = %v, want already running", err)
	}

	first.d.Stop()
	if err := second.d.Start(ctx); err != nil {
		t.Fatalf("start after lock release failed: %v", err)
	}
	second.d.Stop()
}

func TestDaemonStatus(t *testing.T) {
	env := newDaemon(t, nil)

	admitSingle(t, env.queue, filepath.Join(env.cfg.Paths.InboxDir, "a.mp3"))
	failed := admitSingle(t, env.queue, filepath.Join(env.cfg.Paths.InboxDir, "b.mp3"))
	failItem(t, env.queue, failed.ID, "splitter crashed")

	st, err := env.d.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Running {
		t.Fatal("stopped daemon reported running")
	}
	if st.PID <= 0 {
		t.Fatalf("PID = %d", st.PID)
	}
	if st.QueueFile != env.store.Path() {
		t.Fatalf("QueueFile = %q, want %q", st.QueueFile, env.store.Path())
	}
	if st.LockFile == "" || st.SocketFile == "" {
		t.Fatalf("missing runtime paths: %+v", st)
	}
	if st.QueueCounts["queued"] != 1 || st.QueueCounts["error"] != 1 {
		t.Fatalf("QueueCounts = %v", st.QueueCounts)
	}

	if err := env.d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer env.d.Stop()

	st, err = env.d.Status()
	if err != nil {
		t.Fatalf("Status while running failed: %v", err)
	}
	if !st.Running {
		t.Fatal("running daemon reported stopped")
	}
	if st.StartedAt.IsZero() {
		t.Fatal("StartedAt not recorded")
	}
	if !st.Workflow.Running {
		t.Fatal("workflow summary not running")
	}
}

func TestDaemonQueueRetry(t *testing.T) {
	env := newDaemon(t, nil)

	failed := admitSingle(t, env.queue, filepath.Join(env.cfg.Paths.InboxDir, "bad.mp3"))
	failItem(t, env.queue, failed.ID, "boom")
	admitSingle(t, env.queue, filepath.Join(env.cfg.Paths.InboxDir, "good.mp3"))

	count, err := env.d.QueueRetry()
	if err != nil {
		t.Fatalf("QueueRetry failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("retried %d items, want 1", count)
	}
	item, err := env.d.QueueItem(failed.ID)
	if err != nil {
		t.Fatalf("QueueItem failed: %v", err)
	}
	if item.Status != queue.StatusQueued {
		t.Fatalf("retried item status = %s", item.Status)
	}

	if _, err := env.d.QueueRetry("no-such-id"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestDaemonQueueClearStatuses(t *testing.T) {
	env := newDaemon(t, nil)

	failed := admitSingle(t, env.queue, filepath.Join(env.cfg.Paths.InboxDir, "a.mp3"))
	failItem(t, env.queue, failed.ID, "boom")
	queued := admitSingle(t, env.queue, filepath.Join(env.cfg.Paths.InboxDir, "b.mp3"))
	done := admitSingle(t, env.queue, filepath.Join(env.cfg.Paths.InboxDir, "c.mp3"))
	if _, err := env.queue.MarkProcessing(done.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if _, err := env.queue.MarkDone(done.ID); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	removed, err := env.d.QueueClearStatuses(queue.StatusError)
	if err != nil {
		t.Fatalf("QueueClearStatuses failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d items, want 1", removed)
	}
	if _, err := env.d.QueueItem(failed.ID); err == nil {
		t.Fatal("failed item still present after clear")
	}

	removed, err = env.d.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("QueueClear removed %d items, want 1", removed)
	}
	if _, err := env.d.QueueItem(queued.ID); err == nil {
		t.Fatal("queued item survived QueueClear")
	}
	if _, err := env.d.QueueItem(done.ID); err != nil {
		t.Fatalf("done item dropped by QueueClear: %v", err)
	}
}

func TestDaemonJobDelete(t *testing.T) {
	block := make(chan struct{})
	env := newDaemon(t, jobs.ProcessorFunc(func(ctx context.Context, _ *jobs.Job, _ func(int)) (string, error) {
		select {
		case <-block:
			return "", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}))
	t.Cleanup(func() { close(block) })

	source := filepath.Join(env.cfg.Paths.InboxDir, "track.mp3")
	testsupport.WriteFile(t, source, 64)
	job, err := env.jobs.Submit(&jobs.Job{SourcePath: source})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := env.jobs.Start(context.Background(), job.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForJob(t, env.jobs, job.ID, jobs.StatusProcessing)

	err = env.d.JobDelete(job.ID)
	if err == nil || !strings.Contains(err.Error(), "processing") {
		t.Fatalf("delete of processing job: %v", err)
	}

	block <- struct{}{}
	waitForJob(t, env.jobs, job.ID, jobs.StatusCompleted)

	if err := env.d.JobDelete(job.ID); err != nil {
		t.Fatalf("JobDelete failed: %v", err)
	}
	if _, err := env.d.Job(job.ID); err == nil {
		t.Fatal("job still present after delete")
	}
}

func TestDaemonJobRetry(t *testing.T) {
	var calls atomic.Int32
	env := newDaemon(t, jobs.ProcessorFunc(func(context.Context, *jobs.Job, func(int)) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("transient splitter failure")
		}
		return "", nil
	}))

	source := filepath.Join(env.cfg.Paths.InboxDir, "track.mp3")
	testsupport.WriteFile(t, source, 64)
	job, err := env.jobs.Submit(&jobs.Job{SourcePath: source})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := env.jobs.Start(context.Background(), job.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForJob(t, env.jobs, job.ID, jobs.StatusFailed)

	if _, err := env.d.JobRetry(job.ID); err != nil {
		t.Fatalf("JobRetry failed: %v", err)
	}
	waitForJob(t, env.jobs, job.ID, jobs.StatusCompleted)
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	env := newDaemon(t, nil)

	sent, message, err := env.d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if sent {
		t.Fatal("notification sent without a topic")
	}
	if message != "ntfy topic not configured" {
		t.Fatalf("message = %q", message)
	}
}
