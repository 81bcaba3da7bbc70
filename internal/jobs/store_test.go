package jobs_test

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/testsupport"
)

func TestOpenSeedsJobsFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	if store.Path() != cfg.JobsFile() {
		t.Fatalf("Path() = %q, want %q", store.Path(), cfg.JobsFile())
	}
	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("seeded jobs file = %q, want empty array", strings.TrimSpace(string(data)))
	}
	list, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty store, got %d jobs", len(list))
	}
}

func TestJobRoundTripPreservesFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	job := jobs.NewJob("/music/inbox/Geogaddi/04 - Gyroscope.flac", jobs.KindAlbum, "spleeter", []string{"vocals", "accompaniment"})
	job.Metadata = map[string]string{"artist": "Boards of Canada", "album": "Geogaddi"}
	if err := store.Insert(job); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	reopened, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(func() { reopened.Close() })

	got, err := reopened.GetByID(job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.SourcePath != job.SourcePath {
		t.Errorf("SourcePath = %q, want %q", got.SourcePath, job.SourcePath)
	}
	if got.Kind != jobs.KindAlbum {
		t.Errorf("Kind = %q, want %q", got.Kind, jobs.KindAlbum)
	}
	if got.Status != jobs.StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, jobs.StatusPending)
	}
	if got.Splitter != "spleeter" {
		t.Errorf("Splitter = %q, want spleeter", got.Splitter)
	}
	if len(got.Stems) != 2 || got.Stems[0] != "vocals" || got.Stems[1] != "accompaniment" {
		t.Errorf("Stems = %v, want [vocals accompaniment]", got.Stems)
	}
	if got.Metadata["artist"] != "Boards of Canada" || got.Metadata["album"] != "Geogaddi" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
	if !got.CreatedAt.Equal(job.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, job.CreatedAt)
	}
	if got.StartedAt != nil || got.CompletedAt != nil {
		t.Errorf("expected unset attempt timestamps, got %v / %v", got.StartedAt, got.CompletedAt)
	}
	if got.OutputPath != "" || got.ErrorMessage != "" || got.Progress != 0 {
		t.Errorf("expected zero outcome fields, got %q / %q / %d", got.OutputPath, got.ErrorMessage, got.Progress)
	}
}

func TestCorruptJobsFileLoadsEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	if err := store.Insert(jobs.NewJob("/music/inbox/one.mp3", jobs.KindSingle, "demucs", nil)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	list, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected corrupt file to load as empty, got %d jobs", len(list))
	}

	if err := store.Insert(jobs.NewJob("/music/inbox/two.mp3", jobs.KindSingle, "demucs", nil)); err != nil {
		t.Fatalf("Insert after corruption failed: %v", err)
	}
	list, err = store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected fresh collection with one job, got %d", len(list))
	}
}

func TestBeginProcessingRequiresPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	job := jobs.NewJob("/music/inbox/track.mp3", jobs.KindSingle, "demucs", nil)
	if err := store.Insert(job); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	before := time.Now().UTC()
	started, err := store.BeginProcessing(job.ID)
	if err != nil {
		t.Fatalf("BeginProcessing failed: %v", err)
	}
	if started.Status != jobs.StatusProcessing {
		t.Fatalf("Status = %q, want %q", started.Status, jobs.StatusProcessing)
	}
	if started.StartedAt == nil || started.StartedAt.Before(before) {
		t.Fatalf("StartedAt = %v, want stamp at or after %v", started.StartedAt, before)
	}

	if _, err := store.BeginProcessing(job.ID); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("second BeginProcessing error = %v, want ErrInvalidTransition", err)
	}
	if _, err := store.BeginProcessing("missing"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("BeginProcessing(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCompleteStampsOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	job := jobs.NewJob("/music/inbox/track.mp3", jobs.KindSingle, "demucs", nil)
	if err := store.Insert(job); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := store.BeginProcessing(job.ID); err != nil {
		t.Fatalf("BeginProcessing failed: %v", err)
	}

	done, err := store.Complete(job.ID, "/music/output/"+job.ID)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if done.Status != jobs.StatusCompleted {
		t.Errorf("Status = %q, want %q", done.Status, jobs.StatusCompleted)
	}
	if done.Progress != 100 {
		t.Errorf("Progress = %d, want 100", done.Progress)
	}
	if done.OutputPath != "/music/output/"+job.ID {
		t.Errorf("OutputPath = %q", done.OutputPath)
	}
	if done.CompletedAt == nil {
		t.Error("expected CompletedAt stamp")
	}

	if _, err := store.Complete(job.ID, "/elsewhere"); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("Complete on settled job error = %v, want ErrInvalidTransition", err)
	}
	if _, err := store.Complete("missing", "/elsewhere"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("Complete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFailKeepsLastProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	job := jobs.NewJob("/music/inbox/track.mp3", jobs.KindSingle, "demucs", nil)
	if err := store.Insert(job); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := store.BeginProcessing(job.ID); err != nil {
		t.Fatalf("BeginProcessing failed: %v", err)
	}
	if _, err := store.SetProgress(job.ID, 40); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}

	failed, err := store.Fail(job.ID, "demucs: CUDA out of memory")
	if err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if failed.Status != jobs.StatusFailed {
		t.Errorf("Status = %q, want %q", failed.Status, jobs.StatusFailed)
	}
	if failed.ErrorMessage != "demucs: CUDA out of memory" {
		t.Errorf("ErrorMessage = %q", failed.ErrorMessage)
	}
	if failed.Progress != 40 {
		t.Errorf("Progress = %d, want last reported 40", failed.Progress)
	}
	if failed.CompletedAt == nil {
		t.Error("expected CompletedAt stamp on failure")
	}

	if _, err := store.Fail(job.ID, "again"); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("Fail on settled job error = %v, want ErrInvalidTransition", err)
	}
}

func TestResetFailedClearsAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	job := jobs.NewJob("/music/inbox/track.mp3", jobs.KindSingle, "demucs", nil)
	if err := store.Insert(job); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := store.BeginProcessing(job.ID); err != nil {
		t.Fatalf("BeginProcessing failed: %v", err)
	}
	if _, err := store.SetProgress(job.ID, 55); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	if _, err := store.Fail(job.ID, "spleeter exited with status 1"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	reset, err := store.ResetFailed(job.ID)
	if err != nil {
		t.Fatalf("ResetFailed failed: %v", err)
	}
	if reset.Status != jobs.StatusPending {
		t.Errorf("Status = %q, want %q", reset.Status, jobs.StatusPending)
	}
	if reset.Progress != 0 || reset.ErrorMessage != "" {
		t.Errorf("expected cleared attempt, got progress %d message %q", reset.Progress, reset.ErrorMessage)
	}
	if reset.StartedAt != nil || reset.CompletedAt != nil {
		t.Errorf("expected cleared timestamps, got %v / %v", reset.StartedAt, reset.CompletedAt)
	}

	if _, err := store.ResetFailed(job.ID); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("ResetFailed on pending job error = %v, want ErrInvalidTransition", err)
	}
	if _, err := store.ResetFailed("missing"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("ResetFailed(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSetProgressClampsAndIgnoresSettled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	job := jobs.NewJob("/music/inbox/track.mp3", jobs.KindSingle, "demucs", nil)
	if err := store.Insert(job); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := store.BeginProcessing(job.ID); err != nil {
		t.Fatalf("BeginProcessing failed: %v", err)
	}

	steps := []struct {
		report int
		want   int
	}{
		{report: -5, want: 0},
		{report: 30, want: 30},
		{report: 20, want: 30},
		{report: 150, want: 100},
	}
	for _, step := range steps {
		got, err := store.SetProgress(job.ID, step.report)
		if err != nil {
			t.Fatalf("SetProgress(%d) failed: %v", step.report, err)
		}
		if got.Progress != step.want {
			t.Errorf("SetProgress(%d): progress = %d, want %d", step.report, got.Progress, step.want)
		}
	}

	if _, err := store.Complete(job.ID, "/out"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	settled, err := store.SetProgress(job.ID, 10)
	if err != nil {
		t.Fatalf("SetProgress after completion failed: %v", err)
	}
	if settled.Status != jobs.StatusCompleted || settled.Progress != 100 {
		t.Errorf("late report disturbed settled job: %q / %d", settled.Status, settled.Progress)
	}

	if _, err := store.SetProgress("missing", 10); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("SetProgress(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRemoveAndListFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)

	waiting := jobs.NewJob("/music/inbox/a.mp3", jobs.KindSingle, "demucs", nil)
	running := jobs.NewJob("/music/inbox/b.mp3", jobs.KindSingle, "demucs", nil)
	finished := jobs.NewJob("/music/inbox/c.mp3", jobs.KindSingle, "demucs", nil)
	for _, job := range []*jobs.Job{waiting, running, finished} {
		if err := store.Insert(job); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if _, err := store.BeginProcessing(running.ID); err != nil {
		t.Fatalf("BeginProcessing failed: %v", err)
	}
	if _, err := store.BeginProcessing(finished.ID); err != nil {
		t.Fatalf("BeginProcessing failed: %v", err)
	}
	if _, err := store.Complete(finished.ID, "/out/c"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	processing, err := store.List(jobs.StatusProcessing)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(processing) != 1 || processing[0].ID != running.ID {
		t.Fatalf("List(processing) = %d jobs, want just the running one", len(processing))
	}

	if err := store.Remove(running.ID); err != nil {
		t.Fatalf("Remove of processing job failed: %v", err)
	}
	if err := store.Remove(running.ID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("second Remove error = %v, want ErrNotFound", err)
	}

	remaining, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected two remaining jobs, got %d", len(remaining))
	}
}
