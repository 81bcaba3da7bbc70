package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_AllDirectoriesReady(t *testing.T) {
	cfg := testPathsConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	results := RunAll(cfg)
	if len(results) != 7 {
		t.Fatalf("expected 7 directory checks, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_ReportsMissingDirectory(t *testing.T) {
	cfg := testPathsConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	cfg.Paths.InboxDir = filepath.Join(t.TempDir(), "never-created")

	failed := 0
	for _, r := range RunAll(cfg) {
		if !r.Passed {
			failed++
			if r.Name != "Inbox directory" {
				t.Errorf("unexpected failing check %q: %s", r.Name, r.Detail)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly one failing check, got %d", failed)
	}
}

func TestCheckBinaries_SplitterAvailable(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, filepath.Join(binDir, "instrumental-splitter"))
	t.Setenv("PATH", binDir)

	cfg := testPathsConfig(t)
	results := CheckBinaries(cfg)
	if len(results) != 1 {
		t.Fatalf("expected only the splitter check, got %d results", len(results))
	}
	if results[0].Name != "Splitter" || !results[0].Available {
		t.Fatalf("splitter check = %+v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available binary: %s", results[0].Detail)
	}
}

func TestCheckBinaries_MissingSplitter(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	results := CheckBinaries(testPathsConfig(t))
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Available {
		t.Fatal("expected missing splitter to be unavailable")
	}
	if results[0].Detail == "" {
		t.Fatal("expected detail message for missing binary")
	}
}

func TestCheckBinaries_IncludesOrganizerWhenConfigured(t *testing.T) {
	binDir := t.TempDir()
	writeStub(t, filepath.Join(binDir, "instrumental-splitter"))
	t.Setenv("PATH", binDir)

	cfg := testPathsConfig(t)
	cfg.Processing.OrganizerCommand = "my-organizer"

	results := CheckBinaries(cfg)
	if len(results) != 2 {
		t.Fatalf("expected splitter and organizer checks, got %d results", len(results))
	}
	organizer := results[1]
	if organizer.Name != "Organizer" || organizer.Command != "my-organizer" {
		t.Fatalf("organizer check = %+v", organizer)
	}
	if organizer.Available {
		t.Fatal("expected unresolved organizer command to be unavailable")
	}
}

func TestDiskUsage_ReportsCapacity(t *testing.T) {
	stats, err := DiskUsage(t.TempDir())
	if err != nil {
		t.Fatalf("DiskUsage failed: %v", err)
	}
	if stats.TotalBytes == 0 {
		t.Fatal("expected non-zero total capacity")
	}
	if stats.FreeBytes > stats.TotalBytes {
		t.Fatalf("free %d exceeds total %d", stats.FreeBytes, stats.TotalBytes)
	}
	if stats.UsedBytes > stats.TotalBytes {
		t.Fatalf("used %d exceeds total %d", stats.UsedBytes, stats.TotalBytes)
	}
}

func TestDiskUsage_MissingPath(t *testing.T) {
	if _, err := DiskUsage(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func testPathsConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.StemsDir = filepath.Join(base, "stems")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfg.Paths.ErrorDir = filepath.Join(base, "error")
	cfg.Paths.TempDir = filepath.Join(base, "tmp")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.JobsDir = filepath.Join(base, "jobs")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	return &cfg
}

func writeStub(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}
