package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"squash/internal/testsupport"
)

func TestStatusCommandWhenDaemonRunning(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.FakeFFmpeg{})

	out, _, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== System Status ==")
	requireContains(t, out, "[OK] Running (pid")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "No jobs recorded")
}

func TestStatusCommandWhenDaemonStopped(t *testing.T) {
	_, configPath := newCLIConfig(t, testsupport.FakeFFmpeg{})
	socket := filepath.Join(t.TempDir(), "absent.sock")

	out, _, err := runCLI(t, []string{"status"}, socket, configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "squash start")
	requireContains(t, out, "Summary:")
}

func TestStatusCommandJSON(t *testing.T) {
	_, configPath := newCLIConfig(t, testsupport.FakeFFmpeg{})
	socket := filepath.Join(t.TempDir(), "absent.sock")

	out, _, err := runCLI(t, []string{"status", "--json"}, socket, configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var payload struct {
		Daemon       map[string]any `json:"daemon"`
		SystemChecks []struct {
			Label    string `json:"label"`
			Severity string `json:"severity"`
		} `json:"system_checks"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if payload.Daemon != nil {
		t.Fatalf("expected no daemon section while stopped, got %v", payload.Daemon)
	}
	if len(payload.SystemChecks) == 0 || payload.SystemChecks[0].Severity != "warn" {
		t.Fatalf("expected first check to report the stopped daemon, got %+v", payload.SystemChecks)
	}
}

func TestStopCommandWhenNotRunning(t *testing.T) {
	_, configPath := newCLIConfig(t, testsupport.FakeFFmpeg{})
	socket := filepath.Join(t.TempDir(), "absent.sock")

	out, _, err := runCLI(t, []string{"stop"}, socket, configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestDaemonLaunchOptionsCarryFlags(t *testing.T) {
	socket := "/tmp/custom.sock"
	configPath := "/tmp/custom.toml"
	ctx := newCommandContext(&socket, &configPath)
	opts := daemonLaunchOptions(ctx)
	if opts.SocketPath != socket || opts.ConfigPath != configPath {
		t.Fatalf("unexpected launch options: %+v", opts)
	}

	empty := ""
	emptyConfig := ""
	opts = daemonLaunchOptions(newCommandContext(&empty, &emptyConfig))
	if opts.SocketPath != "" || opts.ConfigPath != "" {
		t.Fatalf("expected empty launch options, got %+v", opts)
	}
}

func TestDaemonExecutable(t *testing.T) {
	exe, err := daemonExecutable()
	if err != nil {
		t.Fatalf("daemonExecutable: %v", err)
	}
	if _, err := os.Stat(exe); err != nil {
		t.Fatalf("stat executable: %v", err)
	}
}

func TestDependencyLinesForMissingEncoder(t *testing.T) {
	out, _, err := runCLI(t, []string{"status"}, filepath.Join(t.TempDir(), "none.sock"), writeConfigWithoutFFmpeg(t))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Missing dependencies")
	if !strings.Contains(out, "[ERROR]") {
		t.Fatalf("expected an error line for missing ffmpeg:\n%s", out)
	}
}

func writeConfigWithoutFFmpeg(t *testing.T) string {
	t.Helper()
	t.Setenv("SQUASH_FFMPEG", "")
	t.Setenv("SQUASH_FFPROBE", "")
	t.Setenv("SQUASH_NTFY_TOPIC", "")
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)
	return path
}
