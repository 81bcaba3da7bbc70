package config

const (
	defaultInboxDir   = "~/music/inbox"
	defaultLibraryDir = "~/music/library"
	defaultOutputDir  = "~/.local/share/instrumental/output"
	defaultStemsDir   = "~/.local/share/instrumental/stems"
	defaultArchiveDir = "~/.local/share/instrumental/archive"
	defaultErrorDir   = "~/.local/share/instrumental/error"
	defaultTempDir    = "~/.local/share/instrumental/temp"
	defaultStateDir   = "~/.local/share/instrumental/state"
	defaultJobsDir    = "~/.local/share/instrumental/jobs"
	defaultLogDir     = "~/.local/share/instrumental/logs"

	defaultFileStabilitySeconds = 10
	defaultDirStabilitySeconds  = 30
	defaultSweepIntervalSeconds = 5
	defaultMaxUploadMiB         = 100

	defaultSplitter         = SplitterDemucs
	defaultDemucsModel      = "htdemucs"
	defaultSpleeterModel    = "4stems"
	defaultOutputSuffix     = " - Instrumental ({service})"
	defaultSplitterCommand  = "instrumental-splitter"
	defaultOrganizerCommand = "instrumental-organizer"
	defaultJobTimeout       = 3600
	defaultCleanupMode      = CleanupArchive

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultRetryLimit         = 3
	defaultMaxConcurrentJobs  = 2
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120

	defaultAPIBind = "127.0.0.1:8000"

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	defaultNotifyRequestTimeout = 10
)

func defaultExtensions() []string {
	return []string{".mp3", ".wav", ".flac", ".m4a", ".ogg"}
}

func defaultStems() []string {
	return []string{"drums", "bass", "other"}
}

func defaultOrigins() []string {
	return []string{"*"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:   defaultInboxDir,
			OutputDir:  defaultOutputDir,
			StemsDir:   defaultStemsDir,
			LibraryDir: defaultLibraryDir,
			ArchiveDir: defaultArchiveDir,
			ErrorDir:   defaultErrorDir,
			TempDir:    defaultTempDir,
			StateDir:   defaultStateDir,
			JobsDir:    defaultJobsDir,
			LogDir:     defaultLogDir,
		},
		Ingest: Ingest{
			FileStabilitySeconds: defaultFileStabilitySeconds,
			DirStabilitySeconds:  defaultDirStabilitySeconds,
			SweepIntervalSeconds: defaultSweepIntervalSeconds,
			Extensions:           defaultExtensions(),
			MaxUploadMiB:         defaultMaxUploadMiB,
		},
		Processing: Processing{
			Splitter:         defaultSplitter,
			Stems:            defaultStems(),
			DemucsModel:      defaultDemucsModel,
			SpleeterModel:    defaultSpleeterModel,
			OutputSuffix:     defaultOutputSuffix,
			TimeoutSeconds:   defaultJobTimeout,
			CleanupMode:      defaultCleanupMode,
			CleanupEmptyDirs: true,
			PreserveCoverArt: true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			RetryLimit:         defaultRetryLimit,
			MaxConcurrentJobs:  defaultMaxConcurrentJobs,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		API: API{
			Enabled:        true,
			Bind:           defaultAPIBind,
			AllowedOrigins: defaultOrigins(),
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobComplete:    true,
			JobFailed:      true,
			QueueEmpty:     true,
		},
	}
}
