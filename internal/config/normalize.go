package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIngest()
	c.normalizeProcessing()
	c.normalizeAPI()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.inbox_dir", &c.Paths.InboxDir},
		{"paths.output_dir", &c.Paths.OutputDir},
		{"paths.stems_dir", &c.Paths.StemsDir},
		{"paths.library_dir", &c.Paths.LibraryDir},
		{"paths.archive_dir", &c.Paths.ArchiveDir},
		{"paths.error_dir", &c.Paths.ErrorDir},
		{"paths.temp_dir", &c.Paths.TempDir},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.jobs_dir", &c.Paths.JobsDir},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeIngest() {
	if c.Ingest.FileStabilitySeconds <= 0 {
		c.Ingest.FileStabilitySeconds = defaultFileStabilitySeconds
	}
	if c.Ingest.DirStabilitySeconds <= 0 {
		c.Ingest.DirStabilitySeconds = defaultDirStabilitySeconds
	}
	if c.Ingest.SweepIntervalSeconds <= 0 {
		c.Ingest.SweepIntervalSeconds = defaultSweepIntervalSeconds
	}
	if c.Ingest.MaxUploadMiB <= 0 {
		c.Ingest.MaxUploadMiB = defaultMaxUploadMiB
	}

	if len(c.Ingest.Extensions) == 0 {
		c.Ingest.Extensions = defaultExtensions()
		return
	}
	exts := make([]string, 0, len(c.Ingest.Extensions))
	seen := make(map[string]struct{}, len(c.Ingest.Extensions))
	for _, ext := range c.Ingest.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = defaultExtensions()
	}
	c.Ingest.Extensions = exts
}

func (c *Config) normalizeProcessing() {
	c.Processing.Splitter = strings.ToLower(strings.TrimSpace(c.Processing.Splitter))
	if c.Processing.Splitter == "" {
		c.Processing.Splitter = defaultSplitter
	}

	if len(c.Processing.Stems) == 0 {
		c.Processing.Stems = defaultStems()
	} else {
		stems := make([]string, 0, len(c.Processing.Stems))
		seen := make(map[string]struct{}, len(c.Processing.Stems))
		for _, stem := range c.Processing.Stems {
			normalized := strings.ToLower(strings.TrimSpace(stem))
			if normalized == "" {
				continue
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			stems = append(stems, normalized)
		}
		if len(stems) == 0 {
			stems = defaultStems()
		}
		c.Processing.Stems = stems
	}

	c.Processing.DemucsModel = strings.TrimSpace(c.Processing.DemucsModel)
	if c.Processing.DemucsModel == "" {
		c.Processing.DemucsModel = defaultDemucsModel
	}
	c.Processing.SpleeterModel = strings.TrimSpace(c.Processing.SpleeterModel)
	if c.Processing.SpleeterModel == "" {
		c.Processing.SpleeterModel = defaultSpleeterModel
	}
	if c.Processing.OutputSuffix == "" {
		c.Processing.OutputSuffix = defaultOutputSuffix
	}
	c.Processing.SplitterCommand = strings.TrimSpace(c.Processing.SplitterCommand)
	c.Processing.OrganizerCommand = strings.TrimSpace(c.Processing.OrganizerCommand)
	if c.Processing.TimeoutSeconds <= 0 {
		c.Processing.TimeoutSeconds = defaultJobTimeout
	}
	c.Processing.CleanupMode = strings.ToLower(strings.TrimSpace(c.Processing.CleanupMode))
	if c.Processing.CleanupMode == "" {
		c.Processing.CleanupMode = defaultCleanupMode
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	if len(c.API.AllowedOrigins) == 0 {
		c.API.AllowedOrigins = defaultOrigins()
		return
	}
	origins := make([]string, 0, len(c.API.AllowedOrigins))
	for _, origin := range c.API.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		origins = append(origins, trimmed)
	}
	if len(origins) == 0 {
		origins = defaultOrigins()
	}
	c.API.AllowedOrigins = origins
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("INSTRUMENTAL_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
