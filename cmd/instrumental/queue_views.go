package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/jobs"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/queue"
)

const detailLabelWidth = 12

func buildQueueStatusRows(counts map[string]int) [][]string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", counts[key])})
	}
	return rows
}

func buildQueueListRows(items []queue.Item) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]queue.Item, len(items))
	copy(sorted, items)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DetectedAt.Equal(sorted[j].DetectedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].DetectedAt.After(sorted[j].DetectedAt)
	})

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		name := filepath.Base(strings.TrimSpace(item.Path))
		if name == "." || name == "" {
			name = "Unknown"
		}
		rows = append(rows, []string{
			shortID(item.ID),
			name,
			string(item.Kind),
			formatStatusLabel(string(item.Status)),
			formatDisplayTime(item.DetectedAt),
		})
	}
	return rows
}

func buildJobListRows(list []jobs.Job) [][]string {
	if len(list) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		name := filepath.Base(strings.TrimSpace(job.SourcePath))
		if name == "." || name == "" {
			name = "Unknown"
		}
		rows = append(rows, []string{
			shortID(job.ID),
			name,
			formatStatusLabel(string(job.Status)),
			fmt.Sprintf("%d%%", job.Progress),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

func buildItemDetailLines(item queue.Item) []string {
	lines := []string{
		detailLine("ID", item.ID),
		detailLine("Path", item.Path),
		detailLine("Kind", string(item.Kind)),
	}
	if item.BlockID != "" {
		lines = append(lines, detailLine("Block", item.BlockID))
	}
	lines = append(lines,
		detailLine("Status", formatStatusLabel(string(item.Status))),
		detailLine("Priority", fmt.Sprintf("%d", item.Priority)),
		detailLine("Retries", fmt.Sprintf("%d", item.RetryCount)),
	)
	if item.ErrorMessage != "" {
		lines = append(lines, detailLine("Error", item.ErrorMessage))
	}
	lines = append(lines, detailLine("Detected", formatDisplayTime(item.DetectedAt)))
	if item.ProcessedAt != nil {
		lines = append(lines, detailLine("Processed", formatDisplayTime(*item.ProcessedAt)))
	}
	if item.LastHeartbeat != nil {
		lines = append(lines, detailLine("Heartbeat", formatDisplayTime(*item.LastHeartbeat)))
	}
	return lines
}

func buildJobDetailLines(job jobs.Job) []string {
	lines := []string{
		detailLine("ID", job.ID),
		detailLine("Source", job.SourcePath),
	}
	if job.OutputPath != "" {
		lines = append(lines, detailLine("Output", job.OutputPath))
	}
	lines = append(lines,
		detailLine("Kind", string(job.Kind)),
		detailLine("Status", formatStatusLabel(string(job.Status))),
		detailLine("Splitter", job.Splitter),
	)
	if len(job.Stems) > 0 {
		lines = append(lines, detailLine("Stems", strings.Join(job.Stems, ", ")))
	}
	lines = append(lines, detailLine("Progress", fmt.Sprintf("%d%%", job.Progress)))
	if job.ErrorMessage != "" {
		lines = append(lines, detailLine("Error", job.ErrorMessage))
	}
	lines = append(lines, detailLine("Created", formatDisplayTime(job.CreatedAt)))
	if job.StartedAt != nil {
		lines = append(lines, detailLine("Started", formatDisplayTime(*job.StartedAt)))
	}
	if job.CompletedAt != nil {
		lines = append(lines, detailLine("Completed", formatDisplayTime(*job.CompletedAt)))
	}
	return lines
}

func detailLine(label, value string) string {
	return fmt.Sprintf("%-*s %s", detailLabelWidth, label+":", value)
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
