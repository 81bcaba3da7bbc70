package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/daemon"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/ipc"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/preflight"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected
// client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches and/or starts the daemon and returns the resulting
// state.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	launched := false
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	st, statusErr := client.Status()
	if statusErr == nil && st.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	message := strings.TrimSpace(resp.Message)
	if resp.Started {
		return StartResult{State: StartStateStarted, Launched: launched, Message: message}, nil
	}
	if strings.EqualFold(message, "daemon already running") {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true, Message: message}, nil
		}
		return StartResult{State: StartStateAlreadyRunning, Message: message}, nil
	}
	if message != "" {
		return StartResult{State: StartStateRequested, Launched: launched, Message: message}, nil
	}
	return StartResult{State: StartStateRequested, Launched: launched, Message: "start request sent"}, nil
}

// WaitForShutdown waits for daemon IPC to disappear or report not-running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
			lastErr = err
			time.Sleep(200 * time.Millisecond)
			continue
		}
		st, statusErr := client.Status()
		_ = client.Close()
		if statusErr == nil && !st.Running {
			return nil
		}
		if statusErr != nil {
			lastErr = statusErr
		} else {
			lastErr = errors.New("daemon still running")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// ProcessInfo returns whether daemon IPC is reachable and the daemon PID
// when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	st, statusErr := client.Status()
	if statusErr != nil {
		return true, 0, statusErr
	}
	return true, st.PID, nil
}

// TerminateProcess asks the daemon process to exit with SIGTERM so its
// shutdown path runs, escalating to SIGKILL when the process outlives the
// grace period. It returns the pid that was signaled and whether SIGKILL
// was needed, and removes the pid and lock files afterwards.
func TerminateProcess(pidPath, lockPath string, fallbackPID int, grace time.Duration) (int, bool, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, false, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, false, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, false, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, false, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}

	killed := false
	err = proc.Signal(syscall.SIGTERM)
	switch {
	case err == nil:
		if !waitForExit(proc, grace) {
			if killErr := proc.Kill(); killErr != nil && !processGone(killErr) {
				return 0, false, fmt.Errorf("kill daemon process %d: %w", pid, killErr)
			}
			killed = true
		}
	case processGone(err):
	default:
		return 0, false, fmt.Errorf("terminate daemon process %d: %w", pid, err)
	}

	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, false, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, killed, nil
}

func waitForExit(proc *os.Process, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return proc.Signal(syscall.Signal(0)) != nil
}

func processGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH)
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate requests component shutdown over IPC and then signals the
// daemon process to exit. The Stop RPC is synchronous, so by the time the
// process is signaled only the socket listener remains.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	var pidPath, lockPath string
	pid := 0
	if st, statusErr := client.Status(); statusErr == nil {
		pidPath = st.PIDFile
		lockPath = st.LockFile
		pid = st.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, StopAcknowledged: resp.Stopped}

	if pidPath == "" && cfg != nil {
		pidPath = daemon.PIDPath(cfg)
	}
	if lockPath == "" && cfg != nil {
		lockPath = daemon.LockPath(cfg)
	}
	killedPID, killed, killErr := TerminateProcess(pidPath, lockPath, pid, gracePeriod)
	if killErr != nil {
		return result, fmt.Errorf("stop daemon process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.PID = killedPID
	result.ForcedKill = killed
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(socketPath string, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(socketPath, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(socketPath, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// BuildStatusSnapshot returns daemon status over IPC when the daemon answers
// and reconstructs an offline view from the state files otherwise.
func BuildStatusSnapshot(socketPath string, cfg *config.Config) (daemon.Status, error) {
	if cfg == nil {
		return daemon.Status{}, errors.New("configuration not available")
	}
	if client, err := ipc.Dial(socketPath); err == nil {
		defer client.Close()
		if st, statusErr := client.Status(); statusErr == nil {
			return st, nil
		}
	}
	return offlineStatus(cfg), nil
}

// offlineStatus assembles what the status report can show without a daemon.
// Store problems degrade to empty counts rather than failing the report.
func offlineStatus(cfg *config.Config) daemon.Status {
	st := daemon.Status{
		QueueFile:  cfg.QueueFile(),
		JobsFile:   cfg.JobsFile(),
		LockFile:   daemon.LockPath(cfg),
		PIDFile:    daemon.PIDPath(cfg),
		SocketFile: daemon.SocketPath(cfg),
		Binaries:   preflight.CheckBinaries(cfg),
	}

	if store, err := queue.Open(cfg); err == nil {
		if items, listErr := store.List(); listErr == nil {
			counts := make(map[string]int, len(items))
			for _, item := range items {
				counts[string(item.Status)]++
			}
			st.QueueCounts = counts
			st.Workflow.Queue = queue.Summarize(items)
		}
		_ = store.Close()
	}
	if store, err := jobs.Open(cfg); err == nil {
		if list, listErr := store.List(); listErr == nil {
			st.Workflow.Jobs = jobs.Summarize(list)
		}
		_ = store.Close()
	}
	return st
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
