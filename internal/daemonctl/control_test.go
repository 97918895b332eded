package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"squash/internal/daemonctl"
	"squash/internal/history"
	"squash/internal/ipc"
	"squash/internal/testsupport"
)

func TestBuildDependencySummary(t *testing.T) {
	tests := []struct {
		name     string
		deps     []ipc.DependencyStatus
		severity string
		detail   string
	}{
		{name: "none", severity: "info", detail: "No dependency checks configured"},
		{
			name:     "all present",
			deps:     []ipc.DependencyStatus{{Name: "FFmpeg", Available: true}, {Name: "FFprobe", Available: true, Optional: true}},
			severity: "ok",
			detail:   "2/2 available",
		},
		{
			name:     "optional missing",
			deps:     []ipc.DependencyStatus{{Name: "FFmpeg", Available: true}, {Name: "FFprobe", Optional: true}},
			severity: "warn",
			detail:   "1/2 available (missing: 0 required, 1 optional)",
		},
		{
			name:     "required missing",
			deps:     []ipc.DependencyStatus{{Name: "FFmpeg"}, {Name: "FFprobe", Optional: true}},
			severity: "error",
			detail:   "0/2 available (missing: 1 required, 1 optional)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := daemonctl.BuildDependencySummary(tc.deps)
			if got.Severity != tc.severity || got.Detail != tc.detail {
				t.Fatalf("summary = %+v, want %s/%q", got, tc.severity, tc.detail)
			}
		})
	}
}

func TestStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFakeFFmpeg(testsupport.FakeFFmpeg{}))
	store := testsupport.MustOpenHistory(t, cfg)
	if err := store.AddItem(context.Background(), history.Entry{JobID: "a", InputPath: "/in/a.mkv", Success: true, OriginalSize: 100, CompressedSize: 40}); err != nil {
		t.Fatalf("add history: %v", err)
	}

	snap, err := daemonctl.BuildStatusSnapshot(context.Background(), filepath.Join(t.TempDir(), "missing.sock"), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Daemon != nil {
		t.Fatalf("expected no daemon status, got %+v", snap.Daemon)
	}
	if len(snap.SystemChecks) == 0 || snap.SystemChecks[0].Severity != "warn" || !strings.Contains(snap.SystemChecks[0].Detail, "Not running") {
		t.Fatalf("unexpected system checks: %+v", snap.SystemChecks)
	}
	if len(snap.Dependencies) != 2 {
		t.Fatalf("expected ffmpeg and ffprobe checks, got %+v", snap.Dependencies)
	}
	if !snap.Dependencies[0].Available {
		t.Fatalf("fake ffmpeg should be available: %+v", snap.Dependencies[0])
	}
	if snap.Dependencies[1].Available {
		t.Fatalf("ffprobe should be missing: %+v", snap.Dependencies[1])
	}
	if snap.DependencySummary.Severity != "warn" {
		t.Fatalf("summary = %+v", snap.DependencySummary)
	}
	if snap.History == nil || snap.History.Total != 1 || snap.History.Succeeded != 1 {
		t.Fatalf("history stats = %+v", snap.History)
	}
}

func TestStopAndTerminateWhenNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(filepath.Join(t.TempDir(), "missing.sock"), cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestForceKillRefusesCurrentProcess(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "squash.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := daemonctl.ForceKillProcess(pidPath, "", 0); err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal, got %v", err)
	}
	if _, err := daemonctl.ForceKillProcess(filepath.Join(dir, "absent.pid"), "", 0); err == nil {
		t.Fatal("expected error without a pid")
	}
}

func TestDependencySeverity(t *testing.T) {
	if got := daemonctl.DependencySeverity(ipc.DependencyStatus{Available: true}); got != "ok" {
		t.Fatalf("available = %s", got)
	}
	if got := daemonctl.DependencySeverity(ipc.DependencyStatus{Optional: true}); got != "warn" {
		t.Fatalf("optional = %s", got)
	}
	if got := daemonctl.DependencySeverity(ipc.DependencyStatus{}); got != "error" {
		t.Fatalf("required = %s", got)
	}
}
