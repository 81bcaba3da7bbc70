package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InboxDir = filepath.Join(base, "inbox")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.StemsDir = filepath.Join(base, "stems")
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.ErrorDir = filepath.Join(base, "error")
	cfgVal.Paths.TempDir = filepath.Join(base, "temp")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.JobsDir = filepath.Join(base, "jobs")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStabilityThresholds overrides the file and directory quiet periods.
func WithStabilityThresholds(fileSeconds, dirSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.FileStabilitySeconds = fileSeconds
		b.cfg.Ingest.DirStabilitySeconds = dirSeconds
	}
}

// WithSweepInterval overrides the ingestion sweep interval.
func WithSweepInterval(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.SweepIntervalSeconds = seconds
	}
}

// WithExtensions replaces the accepted audio extensions.
func WithExtensions(exts ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.Extensions = exts
	}
}

// WithRetryLimit overrides the queue retry limit.
func WithRetryLimit(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.RetryLimit = limit
	}
}

// WithMaxConcurrentJobs overrides the dispatcher concurrency bound.
func WithMaxConcurrentJobs(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxConcurrentJobs = n
	}
}

// WithCleanupMode overrides the source cleanup mode applied after processing.
func WithCleanupMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.CleanupMode = mode
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default pipeline external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"instrumental-splitter", "instrumental-organizer"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
