package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	required := map[string]string{
		"paths.inbox_dir":   c.Paths.InboxDir,
		"paths.output_dir":  c.Paths.OutputDir,
		"paths.stems_dir":   c.Paths.StemsDir,
		"paths.library_dir": c.Paths.LibraryDir,
		"paths.state_dir":   c.Paths.StateDir,
		"paths.jobs_dir":    c.Paths.JobsDir,
		"paths.log_dir":     c.Paths.LogDir,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if c.Paths.InboxDir == c.Paths.LibraryDir {
		return errors.New("paths.inbox_dir and paths.library_dir must differ")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if err := ensurePositiveMap(map[string]int{
		"ingest.file_stability_seconds": c.Ingest.FileStabilitySeconds,
		"ingest.dir_stability_seconds":  c.Ingest.DirStabilitySeconds,
		"ingest.sweep_interval_seconds": c.Ingest.SweepIntervalSeconds,
		"ingest.max_upload_mib":         c.Ingest.MaxUploadMiB,
	}); err != nil {
		return err
	}
	if c.Ingest.DirStabilitySeconds < c.Ingest.FileStabilitySeconds {
		return errors.New("ingest.dir_stability_seconds must be >= ingest.file_stability_seconds")
	}
	if len(c.Ingest.Extensions) == 0 {
		return errors.New("ingest.extensions must include at least one extension")
	}
	for _, ext := range c.Ingest.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("ingest.extensions entry %q must be a dotted extension", ext)
		}
	}
	return nil
}

func (c *Config) validateProcessing() error {
	switch c.Processing.Splitter {
	case SplitterDemucs, SplitterSpleeter:
	default:
		return fmt.Errorf("processing.splitter must be %q or %q, got %q", SplitterDemucs, SplitterSpleeter, c.Processing.Splitter)
	}
	if len(c.Processing.Stems) == 0 {
		return errors.New("processing.stems must include at least one stem")
	}
	if c.Processing.TimeoutSeconds <= 0 {
		return errors.New("processing.timeout_seconds must be positive")
	}
	switch c.Processing.CleanupMode {
	case CleanupArchive, CleanupDelete, CleanupNone:
	default:
		return fmt.Errorf("processing.cleanup_mode must be %q, %q, or %q, got %q", CleanupArchive, CleanupDelete, CleanupNone, c.Processing.CleanupMode)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.max_concurrent_jobs":  c.Workflow.MaxConcurrentJobs,
	}); err != nil {
		return err
	}
	if c.Workflow.RetryLimit < 0 {
		return errors.New("workflow.retry_limit must be >= 0")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
