package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logging"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/services"
)

// Mode selects which external command a dispatch goes to.
type Mode string

const (
	// ModeSplit runs the splitter command; the result line is OUTPUT_FILE.
	ModeSplit Mode = "split"
	// ModeOrganize runs the organizer command; the result line is ORGANIZED_TO.
	ModeOrganize Mode = "organize"
)

// Line protocol prefixes recognized on processor stdout.
const (
	progressPrefix    = "PROGRESS:"
	outputFilePrefix  = "OUTPUT_FILE:"
	organizedToPrefix = "ORGANIZED_TO:"
)

// Descriptor is the JSON request handed to a processor command. The command
// receives the descriptor path as its only argument and reads everything it
// needs from the file.
type Descriptor struct {
	JobID        string            `json:"job_id"`
	InputPath    string            `json:"input_path"`
	OutputDir    string            `json:"output_dir"`
	Splitter     string            `json:"splitter"`
	Stems        []string          `json:"stems"`
	OutputSuffix string            `json:"output_suffix"`
	Model        string            `json:"model"`
	Options      map[string]string `json:"options,omitempty"`
}

// Option adjusts Runner construction.
type Option func(*Runner)

// WithExecutor substitutes the command executor. Tests use this to avoid
// spawning real processes.
func WithExecutor(executor Executor) Option {
	return func(r *Runner) {
		if executor != nil {
			r.executor = executor
		}
	}
}

// Runner dispatches jobs to the splitter and organizer commands and
// interprets their stdout line protocol. It satisfies jobs.Processor for the
// split path.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	executor Executor
}

// New builds a Runner bound to the configured commands.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	runner := &Runner{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "processor"),
		executor: commandExecutor{},
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Process runs the splitter against the job's source file and returns the
// produced instrumental path.
func (r *Runner) Process(ctx context.Context, job *jobs.Job, progress func(int)) (string, error) {
	return r.dispatch(ctx, ModeSplit, job, job.SourcePath, progress)
}

// Organize hands a produced file to the organizer command and returns where
// the library placed it. inputPath is usually the split result rather than
// the job's original source.
func (r *Runner) Organize(ctx context.Context, job *jobs.Job, inputPath string, progress func(int)) (string, error) {
	return r.dispatch(ctx, ModeOrganize, job, inputPath, progress)
}

func (r *Runner) dispatch(ctx context.Context, mode Mode, job *jobs.Job, inputPath string, progress func(int)) (string, error) {
	if job == nil {
		return "", errors.New("dispatch: nil job")
	}
	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: input file not found: %s", services.ErrValidation, inputPath)
		}
		return "", fmt.Errorf("stat input: %w", err)
	}

	outputDir := r.outputDir(mode, job)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	descriptorPath, err := r.writeDescriptor(mode, job, inputPath, outputDir)
	if err != nil {
		return "", err
	}
	defer os.Remove(descriptorPath)

	binary := binaryFor(r.cfg, mode)
	resultPrefix := resultPrefixFor(mode)

	logger := r.logger.With(
		logging.String("job_id", job.ID),
		logging.String("mode", string(mode)),
		logging.String("binary", binary),
	)
	logger.Info("dispatching processor", logging.String("input_path", inputPath))

	var resultPath string
	stderr, runErr := r.executor.Run(ctx, binary, []string{descriptorPath}, func(line string) {
		switch {
		case strings.HasPrefix(line, progressPrefix):
			if percent, ok := parsePercent(strings.TrimPrefix(line, progressPrefix)); ok && progress != nil {
				progress(percent)
			}
		case strings.HasPrefix(line, resultPrefix):
			if resultPath == "" {
				resultPath = strings.TrimSpace(strings.TrimPrefix(line, resultPrefix))
			}
		}
	})
	if runErr != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			logger.Warn("processor timed out", logging.Error(runErr))
			return "", fmt.Errorf("%w: %s timed out after %ds", services.ErrTimeout, commandNoun(mode), r.cfg.Processing.TimeoutSeconds)
		case ctx.Err() != nil:
			logger.Warn("processor interrupted", logging.Error(runErr))
			return "", fmt.Errorf("%s interrupted: %w", commandNoun(mode), ctx.Err())
		}
		message := strings.TrimSpace(stderr)
		if message == "" {
			message = runErr.Error()
		}
		logger.Error("processor failed",
			logging.Error(runErr),
			logging.String("stderr", message))
		return "", fmt.Errorf("%w: %s", services.ErrExternalTool, message)
	}
	if resultPath == "" {
		logger.Error("processor exited clean without a result line")
		return "", fmt.Errorf("%w: processor reported no output", services.ErrExternalTool)
	}
	if _, err := os.Stat(resultPath); err != nil {
		return "", fmt.Errorf("%w: processor output missing: %s", services.ErrExternalTool, resultPath)
	}

	logger.Info("processor finished", logging.String("result_path", resultPath))
	return resultPath, nil
}

// writeDescriptor materializes the job request under
// <jobsDir>/<mode>/<jobID>_config.json. The file is removed once the command
// returns.
func (r *Runner) writeDescriptor(mode Mode, job *jobs.Job, inputPath, outputDir string) (string, error) {
	dir := filepath.Join(r.cfg.Paths.JobsDir, string(mode))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create descriptor directory: %w", err)
	}

	descriptor := Descriptor{
		JobID:        job.ID,
		InputPath:    inputPath,
		OutputDir:    outputDir,
		Splitter:     job.Splitter,
		Stems:        job.Stems,
		OutputSuffix: r.cfg.Processing.OutputSuffix,
		Model:        modelFor(r.cfg, job.Splitter),
		Options:      job.Metadata,
	}
	data, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal descriptor: %w", err)
	}

	path := filepath.Join(dir, job.ID+"_config.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write descriptor: %w", err)
	}
	return path, nil
}

// outputDir returns where the command should place its result. Split results
// get a per-job directory so stem sets from concurrent jobs never collide;
// organize targets the library root.
func (r *Runner) outputDir(mode Mode, job *jobs.Job) string {
	if mode == ModeOrganize {
		return r.cfg.Paths.LibraryDir
	}
	return filepath.Join(r.cfg.Paths.OutputDir, job.ID)
}

func binaryFor(cfg *config.Config, mode Mode) string {
	if mode == ModeOrganize {
		return cfg.OrganizerBinary()
	}
	return cfg.SplitterBinary()
}

func resultPrefixFor(mode Mode) string {
	if mode == ModeOrganize {
		return organizedToPrefix
	}
	return outputFilePrefix
}

func commandNoun(mode Mode) string {
	if mode == ModeOrganize {
		return "organizer"
	}
	return "splitter"
}

func modelFor(cfg *config.Config, splitter string) string {
	if splitter == config.SplitterSpleeter {
		return cfg.Processing.SpleeterModel
	}
	return cfg.Processing.DemucsModel
}

// parsePercent reads the integer after a PROGRESS: prefix. Fractional values
// are truncated; anything unparseable is ignored rather than failing the run.
func parsePercent(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if percent, err := strconv.Atoi(value); err == nil {
		return percent, true
	}
	if fraction, err := strconv.ParseFloat(value, 64); err == nil {
		return int(fraction), true
	}
	return 0, false
}
