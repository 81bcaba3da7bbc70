package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/daemon"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/ipc"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/testsupport"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	qstore     *queue.Store
	manager    *queue.Manager
	jstore     *jobs.Store
	orch       *jobs.Orchestrator
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	logPath    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	qstore := testsupport.MustOpenQueueStore(t, cfg)
	manager := queue.NewManager(cfg, qstore)
	jstore := testsupport.MustOpenJobStore(t, cfg)
	orch := jobs.NewOrchestrator(cfg, jstore, jobs.ProcessorFunc(func(context.Context, *jobs.Job, func(int)) (string, error) {
		return "", nil
	}), logging.NewNop())
	disp := workflow.NewDispatcher(cfg, workflow.Deps{Queue: manager, Jobs: orch}, logging.NewNop())

	logPath := filepath.Join(cfg.Paths.LogDir, "instrumental-test.log")
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		t.Fatalf("create log file: %v", err)
	}

	d, err := daemon.New(cfg, daemon.Components{
		QueueStore: qstore,
		Queue:      manager,
		JobStore:   jstore,
		Jobs:       orch,
		Dispatcher: disp,
	}, logPath, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logging.NewNop())
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer failed: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		qstore:     qstore,
		manager:    manager,
		jstore:     jstore,
		orch:       orch,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		logPath:    logPath,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		if err := d.Close(); err != nil {
			t.Errorf("daemon close: %v", err)
		}
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
inbox_dir = %q
output_dir = %q
stems_dir = %q
library_dir = %q
archive_dir = %q
error_dir = %q
temp_dir = %q
state_dir = %q
jobs_dir = %q
log_dir = %q

[api]
bind = %q
`,
		cfg.Paths.InboxDir,
		cfg.Paths.OutputDir,
		cfg.Paths.StemsDir,
		cfg.Paths.LibraryDir,
		cfg.Paths.ArchiveDir,
		cfg.Paths.ErrorDir,
		cfg.Paths.TempDir,
		cfg.Paths.StateDir,
		cfg.Paths.JobsDir,
		cfg.Paths.LogDir,
		cfg.API.Bind,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
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

func waitForJob(t *testing.T, store *jobs.Store, id string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return nil
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
