package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantInbox := filepath.Join(tempHome, "music", "inbox")
	if cfg.Paths.InboxDir != wantInbox {
		t.Fatalf("unexpected inbox dir: got %q want %q", cfg.Paths.InboxDir, wantInbox)
	}
	wantState := filepath.Join(tempHome, ".local", "share", "instrumental", "state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.QueueFile() != filepath.Join(wantState, "queue.json") {
		t.Fatalf("unexpected queue file: %q", cfg.QueueFile())
	}
	if cfg.JobsFile() != filepath.Join(wantState, "jobs.json") {
		t.Fatalf("unexpected jobs file: %q", cfg.JobsFile())
	}
	if cfg.Ingest.FileStabilitySeconds != 10 || cfg.Ingest.DirStabilitySeconds != 30 {
		t.Fatalf("unexpected stability thresholds: %d/%d", cfg.Ingest.FileStabilitySeconds, cfg.Ingest.DirStabilitySeconds)
	}
	if cfg.Ingest.SweepIntervalSeconds != 5 {
		t.Fatalf("unexpected sweep interval: %d", cfg.Ingest.SweepIntervalSeconds)
	}
	if got := cfg.MaxUploadBytes(); got != 100*1024*1024 {
		t.Fatalf("unexpected upload limit: %d", got)
	}
	if cfg.Processing.Splitter != config.SplitterDemucs {
		t.Fatalf("unexpected splitter: %q", cfg.Processing.Splitter)
	}
	if cfg.ActiveModel() != "htdemucs" {
		t.Fatalf("unexpected active model: %q", cfg.ActiveModel())
	}
	if got := strings.Join(cfg.Processing.Stems, ","); got != "drums,bass,other" {
		t.Fatalf("unexpected stems: %q", got)
	}
	if cfg.Processing.OutputSuffix != " - Instrumental ({service})" {
		t.Fatalf("unexpected output suffix: %q", cfg.Processing.OutputSuffix)
	}
	if cfg.Processing.CleanupMode != config.CleanupArchive {
		t.Fatalf("unexpected cleanup mode: %q", cfg.Processing.CleanupMode)
	}
	if cfg.SplitterBinary() != "instrumental-splitter" {
		t.Fatalf("unexpected splitter binary: %q", cfg.SplitterBinary())
	}
	if !cfg.API.Enabled || cfg.API.Bind != "127.0.0.1:8000" {
		t.Fatalf("unexpected api defaults: enabled=%v bind=%q", cfg.API.Enabled, cfg.API.Bind)
	}
	if cfg.Workflow.RetryLimit != 3 {
		t.Fatalf("unexpected retry limit: %d", cfg.Workflow.RetryLimit)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.InboxDir, cfg.Paths.StateDir, cfg.Paths.JobsDir, cfg.Paths.LogDir, cfg.Paths.LibraryDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "instrumental.toml")

	type payload struct {
		Paths struct {
			InboxDir string `toml:"inbox_dir"`
		} `toml:"paths"`
		Ingest struct {
			Extensions []string `toml:"extensions"`
		} `toml:"ingest"`
		Processing struct {
			Splitter string   `toml:"splitter"`
			Stems    []string `toml:"stems"`
		} `toml:"processing"`
		Workflow struct {
			RetryLimit        int `toml:"retry_limit"`
			MaxConcurrentJobs int `toml:"max_concurrent_jobs"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Paths.InboxDir = filepath.Join(tempDir, "drop")
	custom.Ingest.Extensions = []string{"MP3", ".flac", "flac", " "}
	custom.Processing.Splitter = "SPLEETER"
	custom.Processing.Stems = []string{"Drums", "drums", "vocals"}
	custom.Workflow.RetryLimit = 5
	custom.Workflow.MaxConcurrentJobs = 4
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.InboxDir != filepath.Join(tempDir, "drop") {
		t.Fatalf("expected inbox override, got %q", cfg.Paths.InboxDir)
	}
	if got := strings.Join(cfg.Ingest.Extensions, ","); got != ".mp3,.flac" {
		t.Fatalf("expected normalized extensions, got %q", got)
	}
	if cfg.Processing.Splitter != config.SplitterSpleeter {
		t.Fatalf("expected lowercased splitter, got %q", cfg.Processing.Splitter)
	}
	if got := strings.Join(cfg.Processing.Stems, ","); got != "drums,vocals" {
		t.Fatalf("expected deduplicated stems, got %q", got)
	}
	if cfg.ActiveModel() != "4stems" {
		t.Fatalf("expected spleeter model, got %q", cfg.ActiveModel())
	}
	if cfg.Workflow.RetryLimit != 5 {
		t.Fatalf("expected retry limit 5, got %d", cfg.Workflow.RetryLimit)
	}
	if cfg.Workflow.MaxConcurrentJobs != 4 {
		t.Fatalf("expected 4 concurrent jobs, got %d", cfg.Workflow.MaxConcurrentJobs)
	}
}

func TestNtfyTopicEnvFallback(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("INSTRUMENTAL_NTFY_TOPIC", "https://ntfy.sh/env-topic")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/env-topic" {
		t.Fatalf("expected topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[ingest]") {
		t.Fatalf("sample config missing ingest section: %s", contents)
	}
	if !strings.Contains(string(contents), "inbox_dir") {
		t.Fatalf("sample config missing inbox_dir: %s", contents)
	}

	// Validate it decodes
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		return cfg
	}

	cfg := base()
	cfg.Processing.Splitter = "ffmpeg"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown splitter")
	}

	cfg = base()
	cfg.Processing.CleanupMode = "shred"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown cleanup mode")
	}

	cfg = base()
	cfg.Ingest.FileStabilitySeconds = 40
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when dir threshold below file threshold")
	}

	cfg = base()
	cfg.Workflow.RetryLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative retry limit")
	}

	cfg = base()
	cfg.Workflow.HeartbeatTimeout = cfg.Workflow.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when timeout <= interval")
	}

	cfg = base()
	cfg.API.Bind = "not-a-bind"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for malformed api bind")
	}

	cfg = base()
	cfg.API.Enabled = false
	cfg.API.Bind = "not-a-bind"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("bind ignored when api disabled, got %v", err)
	}

	cfg = base()
	cfg.Paths.LibraryDir = cfg.Paths.InboxDir
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when inbox and library collide")
	}
}
