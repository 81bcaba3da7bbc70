package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/api"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/daemon"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/ipc"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/library"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/notifications"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/organizer"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/preflight"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/processor"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/stability"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/watchfolder"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run hosts the daemon process: it wires the pipeline components, serves
// IPC on the daemon socket, and blocks until the context or a termination
// signal ends the process.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("instrumental-%s.log", runID))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update instrumental.log link: %v\n", err)
	}
	if cfg.Logging.RetentionDays > 0 {
		maxAge := time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour
		if err := logging.CleanupOldLogs([]logging.RetentionTarget{
			{Dir: cfg.Paths.LogDir, Pattern: "instrumental-*.log", MaxAge: maxAge},
		}, time.Now()); err != nil {
			logger.Warn("log retention sweep failed", logging.Error(err))
		}
	}

	pidPath := daemon.PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	jstore, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		_ = store.Close()
		return err
	}

	// A processing record can only belong to the process that dispatched
	// it, so anything still mid-flight was abandoned by a previous run.
	if failed, failErr := jstore.FailAbandoned("daemon restarted while the job was processing"); failErr != nil {
		logger.Warn("fail abandoned jobs", logging.Error(failErr))
	} else if failed > 0 {
		logger.Info("failed abandoned jobs from previous run", logging.Int("count", failed))
	}

	index, indexErr := library.Open(cfg)
	if indexErr != nil {
		logger.Warn("library index unavailable", logging.Error(indexErr))
		index = nil
	}

	manager := queue.NewManager(cfg, store)
	notifier := notifications.NewService(cfg)
	runner := processor.New(cfg, logger)
	orch := jobs.NewOrchestrator(cfg, jstore, runner, logger)

	deps := workflow.Deps{
		Queue:     manager,
		Jobs:      orch,
		Organizer: organizer.New(cfg, index, logger),
		Notifier:  notifier,
	}
	if strings.TrimSpace(cfg.Processing.OrganizerCommand) != "" {
		deps.External = runner
	}

	tracker := stability.New(
		time.Duration(cfg.Ingest.FileStabilitySeconds)*time.Second,
		time.Duration(cfg.Ingest.DirStabilitySeconds)*time.Second,
	)
	comp := daemon.Components{
		QueueStore: store,
		Queue:      manager,
		JobStore:   jstore,
		Jobs:       orch,
		Index:      index,
		Watcher:    watchfolder.NewWatcher(cfg, tracker, logger),
		Poller:     watchfolder.NewPoller(cfg, tracker, logger),
		Sweeper:    watchfolder.NewSweeper(cfg, tracker, manager, logger),
		Dispatcher: workflow.NewDispatcher(cfg, deps, logger),
		Notifier:   notifier,
	}
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(cfg, api.Deps{Queue: manager, Jobs: orch, Index: index}, logger)
		if apiErr != nil {
			logger.Warn("api server unavailable", logging.Error(apiErr))
		} else {
			comp.API = apiServer
		}
	}

	d, err := daemon.New(cfg, comp, logPath, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	logStartupSnapshot(logger, cfg)

	ipcServer, err := ipc.NewServer(signalCtx, daemon.SocketPath(cfg), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed", logging.Error(err))
	}

	<-signalCtx.Done()
	logger.Info("daemon shutting down")
	return nil
}

// ensureCurrentLogPointer keeps <logDir>/instrumental.log pointing at the
// current run's log file, falling back to a hard link on filesystems
// without symlink support.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "instrumental.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []any{
		logging.String("splitter", cfg.Processing.Splitter),
		logging.String("model", cfg.ActiveModel()),
		logging.Bool("api_enabled", cfg.API.Enabled),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	for _, bin := range preflight.CheckBinaries(cfg) {
		name := strings.ToLower(bin.Name)
		attrs = append(attrs,
			logging.Bool(name+"_available", bin.Available),
			logging.String(name+"_binary", bin.Command),
		)
	}
	logger.Info("startup snapshot", attrs...)
}
