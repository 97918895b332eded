package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"squash/internal/engine"
	"squash/internal/history"
	"squash/internal/preset"
)

func TestResolveJobID(t *testing.T) {
	jobs := []engine.Job{
		{ID: "abcd1234-0000"},
		{ID: "abcd9999-0000"},
		{ID: "ffff0000-0000"},
	}
	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{arg: "ffff", want: "ffff0000-0000"},
		{arg: "abcd1234-0000", want: "abcd1234-0000"},
		{arg: "abcd1", want: "abcd1234-0000"},
		{arg: "abcd", wantErr: true},
		{arg: "zzzz", want: "zzzz"},
		{arg: "  ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := resolveJobID(tt.arg, jobs)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("resolveJobID(%q): expected error, got %q", tt.arg, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("resolveJobID(%q): %v", tt.arg, err)
		}
		if got != tt.want {
			t.Fatalf("resolveJobID(%q) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatStatusLabel("cancelled"); got != "Cancelled" {
		t.Fatalf("formatStatusLabel = %q", got)
	}
	if got := formatStatusLabel("two_pass"); got != "Two Pass" {
		t.Fatalf("formatStatusLabel underscore = %q", got)
	}
	if got := formatBytes(0); got != "-" {
		t.Fatalf("formatBytes(0) = %q", got)
	}
	if got := formatBytes(1_500_000); got != "1.5 MB" {
		t.Fatalf("formatBytes = %q", got)
	}
	if got := formatRatio(0.425); got != "42.5%" {
		t.Fatalf("formatRatio = %q", got)
	}
	if got := formatElapsed(90*time.Second + 400*time.Millisecond); got != "1m30s" {
		t.Fatalf("formatElapsed = %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Fatalf("shortID = %q", got)
	}
	if got := displayName("/media/in/movie.mkv"); got != "movie.mkv" {
		t.Fatalf("displayName = %q", got)
	}
	if got := firstLine("  first\nsecond"); got != "first" {
		t.Fatalf("firstLine = %q", got)
	}
}

func TestBuildJobRowsShowsPassForActiveJobs(t *testing.T) {
	jobs := []engine.Job{
		{ID: "aaaaaaaa-1", InputPath: "/x/a.mkv", PresetID: "share-2pass", Status: engine.StatusRunning, Progress: 37.5, Pass: "pass 1/2", InputSize: 2_000_000},
		{ID: "bbbbbbbb-2", InputPath: "/x/b.mkv", PresetID: "balanced", Status: engine.StatusCompleted, Progress: 100, Pass: "pass 2/2", OutputSize: 500_000, CompressionRatio: 0.25},
	}
	rows := buildJobRows(jobs, false)
	if rows[0][4] != "37.5% (pass 1/2)" {
		t.Fatalf("active progress cell = %q", rows[0][4])
	}
	if rows[1][4] != "100.0%" {
		t.Fatalf("finished progress cell = %q", rows[1][4])
	}
	if rows[1][7] != "25.0%" {
		t.Fatalf("ratio cell = %q", rows[1][7])
	}
	table := renderTable(jobTableHeaders, rows, jobTableAligns)
	requireContains(t, table, "a.mkv")
	requireContains(t, table, "aaaaaaaa")
}

func TestPrintJobDetails(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	job := engine.Job{
		ID:                "job-1",
		Status:            engine.StatusFailed,
		InputPath:         "/in/clip.mp4",
		OutputPath:        "/in/clip-squashed.mp4",
		PresetID:          "balanced",
		Preset:            preset.Preset{Name: "Balanced H.264"},
		DurationSeconds:   3600,
		DurationEstimated: true,
		SubmittedAt:       started,
		StartedAt:         started,
		FinishedAt:        started.Add(2 * time.Minute),
		InputSize:         1000,
		Error:             "ffmpeg exited with status 1",
	}
	var buf bytes.Buffer
	printJobDetails(&buf, job)
	out := buf.String()
	requireContains(t, out, "Preset:        balanced (Balanced H.264)")
	requireContains(t, out, "3600.0s (estimated)")
	requireContains(t, out, "Elapsed:       2m0s")
	requireContains(t, out, "Error:         ffmpeg exited with status 1")
	if strings.Contains(out, "Output size") {
		t.Fatalf("output size should be omitted when zero:\n%s", out)
	}
}

func TestHistoryRowsAndFooter(t *testing.T) {
	entries := []history.Entry{
		{InputPath: "/a.mkv", PresetID: "small", Success: true, OriginalSize: 1000, CompressedSize: 400, CompressionRatio: 0.4, Duration: 3 * time.Second},
		{InputPath: "/b.mkv", PresetID: "small", Success: false, Error: "boom\ntrace"},
	}
	rows := buildHistoryRows(entries)
	if rows[0][7] != "OK" || rows[1][7] != "boom" {
		t.Fatalf("unexpected result cells %q / %q", rows[0][7], rows[1][7])
	}
	footer := historyFooter(history.Stats{Total: 2, Succeeded: 1, Failed: 1, OriginalSize: 1000, CompressedSize: 400})
	if footer[1] != "1 ok / 1 failed" || footer[7] != "saved 600 B" {
		t.Fatalf("unexpected footer %q", footer)
	}
}
