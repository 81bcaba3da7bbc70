package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory layout for the pipeline.
type Paths struct {
	InboxDir   string `toml:"inbox_dir"`
	OutputDir  string `toml:"output_dir"`
	StemsDir   string `toml:"stems_dir"`
	LibraryDir string `toml:"library_dir"`
	ArchiveDir string `toml:"archive_dir"`
	ErrorDir   string `toml:"error_dir"`
	TempDir    string `toml:"temp_dir"`
	StateDir   string `toml:"state_dir"`
	JobsDir    string `toml:"jobs_dir"`
	LogDir     string `toml:"log_dir"`
}

// Ingest contains configuration for inbox watching and admission.
type Ingest struct {
	FileStabilitySeconds int      `toml:"file_stability_seconds"`
	DirStabilitySeconds  int      `toml:"dir_stability_seconds"`
	SweepIntervalSeconds int      `toml:"sweep_interval_seconds"`
	Extensions           []string `toml:"extensions"`
	MaxUploadMiB         int      `toml:"max_upload_mib"`
}

// Processing contains configuration for the stem splitter and the
// post-split organizer.
type Processing struct {
	Splitter         string   `toml:"splitter"`
	Stems            []string `toml:"stems"`
	DemucsModel      string   `toml:"demucs_model"`
	SpleeterModel    string   `toml:"spleeter_model"`
	OutputSuffix     string   `toml:"output_suffix"`
	SplitterCommand  string   `toml:"splitter_command"`
	OrganizerCommand string   `toml:"organizer_command"`
	TimeoutSeconds   int      `toml:"timeout_seconds"`
	CleanupMode      string   `toml:"cleanup_mode"`
	CleanupEmptyDirs bool     `toml:"cleanup_empty_dirs"`
	PreserveCoverArt bool     `toml:"preserve_cover_art"`
}

// Workflow contains daemon timing, concurrency, and retry policy.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	RetryLimit         int `toml:"retry_limit"`
	MaxConcurrentJobs  int `toml:"max_concurrent_jobs"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// API contains configuration for the embedded REST server.
type API struct {
	Enabled        bool     `toml:"enabled"`
	Bind           string   `toml:"bind"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobComplete    bool   `toml:"job_complete"`
	JobFailed      bool   `toml:"job_failed"`
	QueueEmpty     bool   `toml:"queue_empty"`
}

// Splitter engine names accepted by [processing] splitter.
const (
	SplitterDemucs   = "demucs"
	SplitterSpleeter = "spleeter"
)

// Cleanup modes for processed inbox sources.
const (
	CleanupArchive = "archive"
	CleanupDelete  = "delete"
	CleanupNone    = "none"
)

// Config encapsulates all configuration values for the pipeline.
//
// Configuration sections by subsystem:
//   - Paths: inbox, working, state, and library directories
//   - Ingest: stability thresholds, sweep interval, accepted audio files
//   - Processing: splitter engine, stems, output naming, source cleanup
//   - Workflow: dispatcher intervals, concurrency, retry policy
//   - API: embedded REST server bind address and CORS origins
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Ingest        Ingest        `toml:"ingest"`
	Processing    Processing    `toml:"processing"`
	Workflow      Workflow      `toml:"workflow"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/instrumental/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/instrumental/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("instrumental.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	required := []string{
		c.Paths.InboxDir,
		c.Paths.OutputDir,
		c.Paths.StemsDir,
		c.Paths.ArchiveDir,
		c.Paths.ErrorDir,
		c.Paths.TempDir,
		c.Paths.StateDir,
		c.Paths.JobsDir,
		c.Paths.LogDir,
	}
	for _, dir := range required {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// QueueFile returns the canonical path of the persisted queue collection.
func (c *Config) QueueFile() string {
	return filepath.Join(c.Paths.StateDir, "queue.json")
}

// JobsFile returns the canonical path of the persisted job collection.
func (c *Config) JobsFile() string {
	return filepath.Join(c.Paths.StateDir, "jobs.json")
}

// LibraryIndexFile returns the path of the SQLite library index.
func (c *Config) LibraryIndexFile() string {
	return filepath.Join(c.Paths.StateDir, "library.db")
}

// SplitterBinary returns the executable invoked for split jobs.
func (c *Config) SplitterBinary() string {
	if cmd := strings.TrimSpace(c.Processing.SplitterCommand); cmd != "" {
		return cmd
	}
	return defaultSplitterCommand
}

// OrganizerBinary returns the executable invoked for organize jobs.
func (c *Config) OrganizerBinary() string {
	if cmd := strings.TrimSpace(c.Processing.OrganizerCommand); cmd != "" {
		return cmd
	}
	return defaultOrganizerCommand
}

// ActiveModel returns the model identifier for the configured splitter.
func (c *Config) ActiveModel() string {
	switch c.Processing.Splitter {
	case SplitterSpleeter:
		return c.Processing.SpleeterModel
	default:
		return c.Processing.DemucsModel
	}
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Ingest.MaxUploadMiB) * 1024 * 1024
}

// AllowedExtension reports whether path carries one of the configured audio
// extensions. Extensions are normalized to lowercase dotted form at load.
func (c *Config) AllowedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, allowed := range c.Ingest.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
