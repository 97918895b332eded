package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"squash/internal/config"
	"squash/internal/daemon"
	"squash/internal/engine"
	"squash/internal/events"
	"squash/internal/ipc"
	"squash/internal/logging"
	"squash/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	baseDir    string
}

// newCLIConfig builds a test config backed by fake encoder binaries and
// writes it to disk so commands can load it through --config.
func newCLIConfig(t *testing.T, fake testsupport.FakeFFmpeg, opts ...testsupport.ConfigOption) (*config.Config, string) {
	t.Helper()

	t.Setenv("SQUASH_FFMPEG", "")
	t.Setenv("SQUASH_FFPROBE", "")
	t.Setenv("SQUASH_NTFY_TOPIC", "")
	t.Setenv("SQUASH_API_TOKEN", "")
	opts = append([]testsupport.ConfigOption{
		testsupport.WithFakeFFmpeg(fake),
		testsupport.WithFakeFFprobe(testsupport.FakeFFprobe{DurationSeconds: 10}),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return cfg, configPath
}

func setupCLITestEnv(t *testing.T, fake testsupport.FakeFFmpeg, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg, configPath := newCLIConfig(t, fake, opts...)
	bus := events.NewBus(256)
	t.Cleanup(bus.Close)

	d, err := daemon.New(cfg, logging.NewNop(), bus, daemon.RuntimeOptions{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.DataDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logging.NewNop())
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		srv.Close()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = d.Stop(stopCtx)
		cancel()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		baseDir:    testsupport.BaseDir(cfg),
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.socketPath, e.configPath)
}

func (e *cliTestEnv) mediaFile(t *testing.T, name string, size int64) string {
	t.Helper()
	return testsupport.MediaFile(t, e.baseDir, name, size)
}

func (e *cliTestEnv) jobs() []engine.Job {
	return e.daemon.Engine().List()
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
