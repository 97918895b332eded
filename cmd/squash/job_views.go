package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"squash/internal/engine"
	"squash/internal/history"
)

var titleCaser = cases.Title(language.English)

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

// formatRatio shows compressed/original as a percentage of the original.
func formatRatio(ratio float64) string {
	if ratio <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", ratio*100)
}

func formatPercent(progress float64) string {
	return fmt.Sprintf("%.1f%%", progress)
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayName(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "-"
	}
	return filepath.Base(path)
}

func jobStatusCell(status engine.Status, colorize bool) string {
	label := formatStatusLabel(string(status))
	if colorize {
		if color := jobStatusColor(status); color != "" {
			return color + label + ansiReset
		}
	}
	return label
}

func buildJobRows(jobs []engine.Job, colorize bool) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		progress := formatPercent(job.Progress)
		if job.Pass != "" && job.Status.Active() {
			progress += " (" + job.Pass + ")"
		}
		rows = append(rows, []string{
			shortID(job.ID),
			displayName(job.InputPath),
			job.PresetID,
			jobStatusCell(job.Status, colorize),
			progress,
			formatBytes(job.InputSize),
			formatBytes(job.OutputSize),
			formatRatio(job.CompressionRatio),
		})
	}
	return rows
}

var jobTableHeaders = []string{"ID", "File", "Preset", "Status", "Progress", "Input", "Output", "Ratio"}

var jobTableAligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight}

func printJobDetails(out io.Writer, job engine.Job) {
	field := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "%-14s %s\n", label+":", value)
	}
	field("ID", job.ID)
	field("File ID", job.FileID)
	field("Status", formatStatusLabel(string(job.Status)))
	field("Input", job.InputPath)
	field("Output", job.OutputPath)
	field("Preset", fmt.Sprintf("%s (%s)", job.PresetID, job.Preset.Name))
	if job.TargetSize > 0 {
		field("Target size", formatBytes(job.TargetSize))
	}
	if job.VideoBitrateKbps > 0 {
		field("Video bitrate", fmt.Sprintf("%d kbps", job.VideoBitrateKbps))
	}
	if job.TwoPass {
		field("Two-pass", yesNo(true))
	}
	duration := fmt.Sprintf("%.1fs", job.DurationSeconds)
	if job.DurationEstimated {
		duration += " (estimated)"
	}
	field("Duration", duration)
	progress := formatPercent(job.Progress)
	if job.Pass != "" {
		progress += " (" + job.Pass + ")"
	}
	field("Progress", progress)
	if job.Speed > 0 {
		field("Speed", fmt.Sprintf("%.2fx", job.Speed))
	}
	if job.FPS > 0 {
		field("FPS", fmt.Sprintf("%.1f", job.FPS))
	}
	field("Bitrate", job.Bitrate)
	field("Submitted", formatDisplayTime(job.SubmittedAt))
	if !job.StartedAt.IsZero() {
		field("Started", formatDisplayTime(job.StartedAt))
	}
	if !job.FinishedAt.IsZero() {
		field("Finished", formatDisplayTime(job.FinishedAt))
		if !job.StartedAt.IsZero() {
			field("Elapsed", formatElapsed(job.FinishedAt.Sub(job.StartedAt)))
		}
	}
	field("Input size", formatBytes(job.InputSize))
	if job.OutputSize > 0 {
		field("Output size", formatBytes(job.OutputSize))
		field("Ratio", formatRatio(job.CompressionRatio))
	}
	field("Error", job.Error)
}

func buildHistoryRows(entries []history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		result := "OK"
		if !entry.Success {
			result = firstLine(entry.Error)
			if result == "" {
				result = "Failed"
			}
		}
		rows = append(rows, []string{
			formatDisplayTime(entry.CompletedAt),
			displayName(entry.InputPath),
			entry.PresetID,
			formatBytes(entry.OriginalSize),
			formatBytes(entry.CompressedSize),
			formatRatio(entry.CompressionRatio),
			formatElapsed(entry.Duration),
			result,
		})
	}
	return rows
}

func historyFooter(stats history.Stats) []string {
	saved := stats.OriginalSize - stats.CompressedSize
	return []string{
		"Total",
		fmt.Sprintf("%d ok / %d failed", stats.Succeeded, stats.Failed),
		"",
		formatBytes(stats.OriginalSize),
		formatBytes(stats.CompressedSize),
		"",
		"",
		"saved " + formatBytes(saved),
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// resolveJobID expands a unique id prefix against the known jobs.
func resolveJobID(arg string, jobs []engine.Job) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("job id is required")
	}
	var match string
	for _, job := range jobs {
		if job.ID == arg {
			return arg, nil
		}
		if strings.HasPrefix(job.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("job id %q is ambiguous", arg)
			}
			match = job.ID
		}
	}
	if match == "" {
		return arg, nil
	}
	return match, nil
}
