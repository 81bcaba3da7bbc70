package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/notifications"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/organizer"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/services"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/testsupport"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/workflow"
)

type stubNotifier struct {
	mu          sync.Mutex
	completions []notifications.Payload
	failures    []notifications.Payload
	drains      []notifications.Payload
}

func (s *stubNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch event {
	case notifications.EventJobCompleted:
		s.completions = append(s.completions, payload)
	case notifications.EventJobFailed:
		s.failures = append(s.failures, payload)
	case notifications.EventQueueDrained:
		s.drains = append(s.drains, payload)
	}
	return nil
}

func (s *stubNotifier) completed() []notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifications.Payload(nil), s.completions...)
}

func (s *stubNotifier) failed() []notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifications.Payload(nil), s.failures...)
}

func (s *stubNotifier) drained() []notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifications.Payload(nil), s.drains...)
}

type stubExternalOrganizer struct {
	mu     sync.Mutex
	inputs []string
	target string
}

func (s *stubExternalOrganizer) Organize(_ context.Context, _ *jobs.Job, inputPath string, _ func(percent int)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, inputPath)
	return s.target, nil
}

type harness struct {
	cfg      *config.Config
	queue    *queue.Manager
	jobs     *jobs.Orchestrator
	notifier *stubNotifier
	disp     *workflow.Dispatcher
}

func newHarness(t *testing.T, cfg *config.Config, proc jobs.Processor, external workflow.ExternalOrganizer) *harness {
	t.Helper()
	qstore := testsupport.MustOpenQueueStore(t, cfg)
	jstore := testsupport.MustOpenJobStore(t, cfg)
	manager := queue.NewManager(cfg, qstore)
	orch := jobs.NewOrchestrator(cfg, jstore, proc, nil)
	t.Cleanup(orch.Close)
	notifier := &stubNotifier{}
	disp := workflow.NewDispatcher(cfg, workflow.Deps{
		Queue:     manager,
		Jobs:      orch,
		Organizer: organizer.New(cfg, nil, nil),
		External:  external,
		Notifier:  notifier,
	}, nil)
	return &harness{cfg: cfg, queue: manager, jobs: orch, notifier: notifier, disp: disp}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.disp.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(h.disp.Stop)
}

// producingProcessor writes a fake split result named base into the job's
// output directory.
func producingProcessor(cfg *config.Config, base string) jobs.ProcessorFunc {
	return func(_ context.Context, job *jobs.Job, _ func(int)) (string, error) {
		dir := filepath.Join(cfg.Paths.OutputDir, job.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		produced := filepath.Join(dir, base)
		if err := os.WriteFile(produced, bytes.Repeat([]byte{0x42}, 512), 0o644); err != nil {
			return "", err
		}
		return produced, nil
	}
}

func waitForItemStatus(t *testing.T, manager *queue.Manager, id string, want queue.Status) *queue.Item {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for item %s to reach %s", id, want)
		default:
		}
		item, err := manager.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if item.Status == want {
			return item
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitFor(t *testing.T, what string, check func() bool) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for !check() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestDispatcherRunsItemThroughPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0

	source := filepath.Join(cfg.Paths.InboxDir, "Miles Davis - So What.mp3")
	testsupport.WriteFile(t, source, 2048)

	h := newHarness(t, cfg, producingProcessor(cfg, "Miles Davis - So What.mp3"), nil)

	item := queue.NewSingle(source)
	if _, err := h.queue.Admit(item); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	h.start(t)

	done := waitForItemStatus(t, h.queue, item.ID, queue.StatusDone)
	if done.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", done.ErrorMessage)
	}
	if done.ProcessedAt == nil {
		t.Error("expected ProcessedAt stamp")
	}

	finalPath := filepath.Join(cfg.Paths.LibraryDir, "Miles Davis", "Unknown Album", "So What.mp3")
	if _, err := os.Stat(finalPath); err != nil {
		t.Fatalf("expected organized file at %s: %v", finalPath, err)
	}
	if _, err := os.Stat(source); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected source to leave the inbox, stat err = %v", err)
	}
	archived := filepath.Join(cfg.Paths.ArchiveDir, "Miles Davis - So What.mp3")
	if _, err := os.Stat(archived); err != nil {
		t.Errorf("expected archived source at %s: %v", archived, err)
	}

	list, err := h.jobs.Jobs()
	if err != nil {
		t.Fatalf("Jobs failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one job, got %d", len(list))
	}
	job := list[0]
	if job.Status != jobs.StatusCompleted {
		t.Errorf("job status = %q, want %q", job.Status, jobs.StatusCompleted)
	}
	if job.Metadata["queue_item_id"] != item.ID {
		t.Errorf("job metadata queue_item_id = %q, want %q", job.Metadata["queue_item_id"], item.ID)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, job.ID)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected split directory to be pruned, stat err = %v", err)
	}

	waitFor(t, "completion notification", func() bool { return len(h.notifier.completed()) == 1 })
	payload := h.notifier.completed()[0]
	if payload["item"] != "Miles Davis - So What.mp3" {
		t.Errorf("notification item = %v", payload["item"])
	}
	if payload["finalFile"] != finalPath {
		t.Errorf("notification finalFile = %v, want %s", payload["finalFile"], finalPath)
	}

	waitFor(t, "drain notification", func() bool { return len(h.notifier.drained()) == 1 })
	drain := h.notifier.drained()[0]
	if drain["processed"] != 1 || drain["failed"] != 0 {
		t.Errorf("drain payload = %v, want 1 processed / 0 failed", drain)
	}

	status := h.disp.Status()
	if !status.Running {
		t.Error("expected running dispatcher")
	}
	if status.Queue.Completed != 1 || status.Jobs.Completed != 1 {
		t.Errorf("status counters = %+v / %+v", status.Queue, status.Jobs)
	}
	if status.LastItem == nil || status.LastItem.ID != item.ID {
		t.Errorf("status last item = %+v, want %s", status.LastItem, item.ID)
	}
}

func TestDispatcherRetriesUntilLimitThenRoutesToError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryLimit(1))
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0

	source := filepath.Join(cfg.Paths.InboxDir, "track.mp3")
	testsupport.WriteFile(t, source, 1024)

	var calls atomic.Int32
	proc := jobs.ProcessorFunc(func(context.Context, *jobs.Job, func(int)) (string, error) {
		calls.Add(1)
		return "", fmt.Errorf("%w: splitter exited with status 1", services.ErrExternalTool)
	})
	h := newHarness(t, cfg, proc, nil)

	item := queue.NewSingle(source)
	if _, err := h.queue.Admit(item); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	h.start(t)

	waitFor(t, "terminal failure notification", func() bool { return len(h.notifier.failed()) == 1 })

	failed, err := h.queue.Get(item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if failed.Status != queue.StatusError {
		t.Fatalf("Status = %q, want %q", failed.Status, queue.StatusError)
	}
	if failed.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", failed.RetryCount)
	}
	if failed.ErrorMessage != "splitter exited with status 1" {
		t.Errorf("ErrorMessage = %q", failed.ErrorMessage)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("processor ran %d times, want 2", got)
	}

	routed := filepath.Join(cfg.Paths.ErrorDir, "track.mp3")
	if _, err := os.Stat(routed); err != nil {
		t.Errorf("expected failed source at %s: %v", routed, err)
	}
	if _, err := os.Stat(source); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected source to leave the inbox, stat err = %v", err)
	}

	payload := h.notifier.failed()[0]
	if payload["item"] != "track.mp3" || payload["error"] != "splitter exited with status 1" {
		t.Errorf("failure payload = %v", payload)
	}

	waitFor(t, "drain notification", func() bool { return len(h.notifier.drained()) == 1 })
	drain := h.notifier.drained()[0]
	if drain["processed"] != 0 || drain["failed"] != 1 {
		t.Errorf("drain payload = %v, want 0 processed / 1 failed", drain)
	}
}

func TestDispatcherSerializesAlbumBlockMembers(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxConcurrentJobs(2))
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0

	albumDir := filepath.Join(cfg.Paths.InboxDir, "Album X")
	first := filepath.Join(albumDir, "01 - A.mp3")
	second := filepath.Join(albumDir, "02 - B.mp3")
	testsupport.WriteFile(t, first, 1024)
	testsupport.WriteFile(t, second, 1024)

	var mu sync.Mutex
	active, maxActive := 0, 0
	proc := jobs.ProcessorFunc(func(_ context.Context, job *jobs.Job, _ func(int)) (string, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()

		dir := filepath.Join(cfg.Paths.OutputDir, job.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		produced := filepath.Join(dir, filepath.Base(job.SourcePath))
		if err := os.WriteFile(produced, bytes.Repeat([]byte{0x42}, 256), 0o644); err != nil {
			return "", err
		}
		return produced, nil
	})
	h := newHarness(t, cfg, proc, nil)

	blockID := queue.NewBlockID()
	one := queue.NewAlbumMember(first, blockID)
	two := queue.NewAlbumMember(second, blockID)
	for _, item := range []*queue.Item{one, two} {
		if _, err := h.queue.Admit(item); err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
	}
	h.start(t)

	waitForItemStatus(t, h.queue, one.ID, queue.StatusDone)
	waitForItemStatus(t, h.queue, two.ID, queue.StatusDone)

	mu.Lock()
	peak := maxActive
	mu.Unlock()
	if peak != 1 {
		t.Fatalf("album block members overlapped: peak concurrency %d", peak)
	}

	list, err := h.jobs.Jobs(jobs.StatusCompleted)
	if err != nil {
		t.Fatalf("Jobs failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected two completed jobs, got %d", len(list))
	}
	for _, job := range list {
		if job.Kind != jobs.KindAlbum {
			t.Errorf("job %s kind = %q, want %q", job.ID, job.Kind, jobs.KindAlbum)
		}
		if job.Metadata["block_id"] != blockID {
			t.Errorf("job %s block_id = %q, want %q", job.ID, job.Metadata["block_id"], blockID)
		}
	}
}

func TestDispatcherUsesExternalOrganizerWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0
	cfg.Processing.OrganizerCommand = "instrumental-organizer"

	source := filepath.Join(cfg.Paths.InboxDir, "song.mp3")
	testsupport.WriteFile(t, source, 1024)

	external := &stubExternalOrganizer{target: filepath.Join(cfg.Paths.LibraryDir, "placed", "song.mp3")}
	h := newHarness(t, cfg, producingProcessor(cfg, "song.mp3"), external)

	item := queue.NewSingle(source)
	if _, err := h.queue.Admit(item); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	h.start(t)

	waitForItemStatus(t, h.queue, item.ID, queue.StatusDone)

	external.mu.Lock()
	inputs := append([]string(nil), external.inputs...)
	external.mu.Unlock()
	if len(inputs) != 1 {
		t.Fatalf("external organizer ran %d times, want 1", len(inputs))
	}
	if base := filepath.Base(inputs[0]); base != "song.mp3" {
		t.Errorf("external organizer input = %q", inputs[0])
	}

	entries, err := os.ReadDir(cfg.Paths.LibraryDir)
	if err == nil {
		for _, entry := range entries {
			if entry.Name() != "placed" {
				t.Errorf("unexpected library entry %q from built-in organizer", entry.Name())
			}
		}
	}

	waitFor(t, "completion notification", func() bool { return len(h.notifier.completed()) == 1 })
	if got := h.notifier.completed()[0]["finalFile"]; got != external.target {
		t.Errorf("finalFile = %v, want %s", got, external.target)
	}
}

func TestDispatcherReclaimsOrphanedProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 2

	source := filepath.Join(cfg.Paths.InboxDir, "stuck.mp3")
	testsupport.WriteFile(t, source, 1024)

	h := newHarness(t, cfg, producingProcessor(cfg, "stuck.mp3"), nil)

	item := queue.NewSingle(source)
	if _, err := h.queue.Admit(item); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	// Claim without dispatching to simulate a crash mid-processing.
	if _, err := h.queue.MarkProcessing(item.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	h.start(t)

	done := waitForItemStatus(t, h.queue, item.ID, queue.StatusDone)
	if done.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 after reclaim", done.RetryCount)
	}
}

func TestDispatcherStartStopLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0

	h := newHarness(t, cfg, producingProcessor(cfg, "unused.mp3"), nil)

	if err := h.disp.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.disp.Start(context.Background()); err == nil {
		t.Fatal("expected error from second Start")
	}
	if !h.disp.Status().Running {
		t.Error("expected Running after Start")
	}

	h.disp.Stop()
	if h.disp.Status().Running {
		t.Error("expected stopped dispatcher")
	}
	h.disp.Stop()

	bare := workflow.NewDispatcher(cfg, workflow.Deps{}, nil)
	if err := bare.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}
