package processor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Executor abstracts processor command invocation so tests can substitute a
// fake without spawning real processes.
type Executor interface {
	// Run executes binary with args, streaming each stdout line to onStdout
	// as it arrives. The captured stderr is returned alongside any execution
	// error so callers can surface the command's own failure message.
	Run(ctx context.Context, binary string, args []string, onStdout func(line string)) (stderr string, err error)
}

// commandExecutor is the production Executor backed by os/exec.
type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onStdout != nil {
			onStdout(scanner.Text())
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return stderr.String(), err
	}
	if scanErr != nil {
		return stderr.String(), fmt.Errorf("read stdout: %w", scanErr)
	}
	return stderr.String(), nil
}
