package daemonctl

import (
	"fmt"
	"strings"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/config"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/daemon"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/preflight"
)

// StatusLine is one row of the status report. Severity is one of ok, warn,
// error, or info and drives the CLI's coloring.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// BinarySummary aggregates external tool readiness.
type BinarySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// BuildSystemChecks resolves status lines that combine runtime state and
// config checks.
func BuildSystemChecks(cfg *config.Config, st daemon.Status) []StatusLine {
	lines := make([]StatusLine, 0, 5)
	if st.Running {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", st.PID)})
		if st.Workflow.Paused {
			lines = append(lines, StatusLine{Label: "Dispatching", Severity: "warn", Detail: "Paused"})
		} else {
			lines = append(lines, StatusLine{Label: "Dispatching", Severity: "ok", Detail: "Active"})
		}
		if st.Polling {
			lines = append(lines, StatusLine{Label: "Inbox", Severity: "ok", Detail: "Polling for new files"})
		} else {
			lines = append(lines, StatusLine{Label: "Inbox", Severity: "ok", Detail: "Watching for new files"})
		}
	} else {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "warn", Detail: "Not running (run `instrumental start`)"})
		lines = append(lines, StatusLine{Label: "Inbox", Severity: "info", Detail: "Ingestion inactive (daemon not running)"})
	}

	switch {
	case !cfg.API.Enabled:
		lines = append(lines, StatusLine{Label: "API", Severity: "info", Detail: "Disabled"})
	case st.Running && strings.TrimSpace(st.APIAddr) != "":
		lines = append(lines, StatusLine{Label: "API", Severity: "ok", Detail: "Listening on " + st.APIAddr})
	case st.Running:
		lines = append(lines, StatusLine{Label: "API", Severity: "warn", Detail: "Enabled but not listening"})
	default:
		lines = append(lines, StatusLine{Label: "API", Severity: "info", Detail: "Enabled (starts with the daemon)"})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "warn", Detail: "Not configured"})
	}
	return lines
}

// BuildPathChecks resolves pipeline directory readiness plus free space on
// the filesystem holding the output tree.
func BuildPathChecks(cfg *config.Config) []StatusLine {
	checks := preflight.RunAll(cfg)
	lines := make([]StatusLine, 0, len(checks)+1)
	for _, check := range checks {
		severity := "error"
		if check.Passed {
			severity = "ok"
		}
		lines = append(lines, StatusLine{Label: check.Name, Severity: severity, Detail: check.Detail})
	}

	if stats, err := preflight.DiskUsage(cfg.Paths.OutputDir); err == nil && stats.TotalBytes > 0 {
		severity := "ok"
		if stats.FreeBytes < stats.TotalBytes/10 {
			severity = "warn"
		}
		lines = append(lines, StatusLine{
			Label:    "Disk",
			Severity: severity,
			Detail:   fmt.Sprintf("%s free of %s", formatBytes(stats.FreeBytes), formatBytes(stats.TotalBytes)),
		})
	}
	return lines
}

// BuildBinaryChecks converts binary probes into status lines.
func BuildBinaryChecks(binaries []preflight.Binary) []StatusLine {
	lines := make([]StatusLine, 0, len(binaries))
	for _, bin := range binaries {
		severity := "ok"
		detail := bin.Command
		if !bin.Available {
			severity = "error"
			if bin.Optional {
				severity = "warn"
			}
			if strings.TrimSpace(bin.Detail) != "" {
				detail = bin.Detail
			}
		}
		lines = append(lines, StatusLine{Label: bin.Name, Severity: severity, Detail: detail})
	}
	return lines
}

// BuildBinarySummary computes aggregate external tool readiness.
func BuildBinarySummary(binaries []preflight.Binary) BinarySummary {
	if len(binaries) == 0 {
		return BinarySummary{
			Severity: "info",
			Detail:   "No external tools configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, bin := range binaries {
		if bin.Available {
			continue
		}
		if bin.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(binaries) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(binaries), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(binaries))
	}

	return BinarySummary{
		Total:           len(binaries),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
