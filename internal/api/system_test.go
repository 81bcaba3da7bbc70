package api_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/api"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/library"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/testsupport"
)

func TestHealthReportsCounts(t *testing.T) {
	fx := newServer(t, nil, nil, nil)

	admitItem(t, fx.queue, queue.NewSingle("/music/inbox/a.mp3"))
	if _, err := fx.orch.Submit(jobs.NewJob("/music/inbox/a.mp3", jobs.KindSingle, "", nil)); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	w := fx.get(t, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	var resp struct {
		Status string                  `json:"status"`
		Queue  api.QueueStatusResponse `json:"queue"`
		Jobs   api.JobCounts           `json:"jobs"`
	}
	decodeBody(t, w, &resp)
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if resp.Queue.TotalItems != 1 || resp.Queue.PendingItems != 1 {
		t.Errorf("queue counts = %+v", resp.Queue)
	}
	if resp.Jobs.Total != 1 || resp.Jobs.Pending != 1 {
		t.Errorf("job counts = %+v", resp.Jobs)
	}

	if w := fx.get(t, "/api/v1/system/health"); w.Code != http.StatusOK {
		t.Errorf("versioned health status = %d", w.Code)
	}
}

func TestSystemStatsAggregates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	index := testsupport.MustOpenLibraryIndex(t, cfg)
	fx := newServer(t, cfg, nil, index)

	track := &library.Track{
		Path:      filepath.Join(cfg.Paths.LibraryDir, "Artist", "Album", "01 Song.mp3"),
		Artist:    "Artist",
		Album:     "Album",
		Title:     "Song",
		SizeBytes: 123,
	}
	if err := index.RecordTrack(context.Background(), track); err != nil {
		t.Fatalf("RecordTrack failed: %v", err)
	}

	w := fx.get(t, "/api/v1/system/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var resp api.StatsResponse
	decodeBody(t, w, &resp)
	if resp.StartedAt.IsZero() {
		t.Error("expected StartedAt stamp")
	}
	if resp.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %d", resp.UptimeSeconds)
	}
	if resp.Disk == nil {
		t.Fatal("expected disk usage")
	}
	if resp.Disk.Path != cfg.Paths.LibraryDir || resp.Disk.TotalBytes == 0 {
		t.Errorf("disk = %+v", resp.Disk)
	}
	if resp.Library == nil {
		t.Fatal("expected library counts")
	}
	if resp.Library.Tracks != 1 || resp.Library.Artists != 1 || resp.Library.TotalBytes != 123 {
		t.Errorf("library counts = %+v", resp.Library)
	}
}

func TestSystemStorageDescribesDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fx := newServer(t, cfg, nil, nil)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "a.mp3"), 100)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "album", "b.mp3"), 50)
	if err := os.RemoveAll(cfg.Paths.ErrorDir); err != nil {
		t.Fatalf("remove error dir: %v", err)
	}

	w := fx.get(t, "/api/v1/system/storage")
	if w.Code != http.StatusOK {
		t.Fatalf("storage status = %d", w.Code)
	}
	var resp api.StorageResponse
	decodeBody(t, w, &resp)
	if len(resp.Directories) != 7 {
		t.Fatalf("Directories = %d entries, want 7", len(resp.Directories))
	}
	byName := make(map[string]api.DirectoryInfo, len(resp.Directories))
	for _, dir := range resp.Directories {
		byName[dir.Name] = dir
	}
	inbox := byName["inbox"]
	if !inbox.Exists || inbox.FileCount != 2 || inbox.SizeBytes != 150 {
		t.Errorf("inbox = %+v", inbox)
	}
	if errDir := byName["error"]; errDir.Exists {
		t.Errorf("error dir = %+v, want Exists false", errDir)
	}
	if libDir := byName["library"]; !libDir.Exists || libDir.FileCount != 0 {
		t.Errorf("library dir = %+v", libDir)
	}
}

func TestSystemSettingsSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fx := newServer(t, cfg, nil, nil)

	w := fx.get(t, "/api/v1/system/settings")
	if w.Code != http.StatusOK {
		t.Fatalf("settings status = %d", w.Code)
	}
	var resp api.SettingsResponse
	decodeBody(t, w, &resp)
	if resp.ActiveSplitter != cfg.Processing.Splitter {
		t.Errorf("ActiveSplitter = %q, want %q", resp.ActiveSplitter, cfg.Processing.Splitter)
	}
	if resp.DemucsModel != cfg.Processing.DemucsModel || resp.SpleeterModel != cfg.Processing.SpleeterModel {
		t.Errorf("models = %q/%q", resp.DemucsModel, resp.SpleeterModel)
	}
	if len(resp.Stems) != len(cfg.Processing.Stems) {
		t.Errorf("Stems = %v", resp.Stems)
	}
	if len(resp.Extensions) != len(cfg.Ingest.Extensions) {
		t.Errorf("Extensions = %v", resp.Extensions)
	}
	if resp.MaxUploadMiB != cfg.Ingest.MaxUploadMiB {
		t.Errorf("MaxUploadMiB = %d, want %d", resp.MaxUploadMiB, cfg.Ingest.MaxUploadMiB)
	}
	if resp.MaxConcurrentJobs != cfg.Workflow.MaxConcurrentJobs || resp.RetryLimit != cfg.Workflow.RetryLimit {
		t.Errorf("workflow limits = %d/%d", resp.MaxConcurrentJobs, resp.RetryLimit)
	}
	if !resp.PreserveCoverArt {
		t.Error("expected PreserveCoverArt default true")
	}
}
