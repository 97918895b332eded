package testsupport

import (
	"path/filepath"
	"testing"

	"squash/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Binaries default to names that never resolve on PATH so a test cannot
// spawn a real encoder by accident.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Engine.FFmpegBinary = filepath.Join(base, "bin", "missing-ffmpeg")
	cfgVal.Engine.FFprobeBinary = filepath.Join(base, "bin", "missing-ffprobe")
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMaxParallelJobs overrides engine.max_parallel_jobs.
func WithMaxParallelJobs(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.MaxParallelJobs = n
	}
}

// WithOutputDir routes derived outputs into a directory under the base dir.
func WithOutputDir(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.OutputDir = filepath.Join(b.baseDir, name)
	}
}

// WithAPIBind enables the daemon HTTP API on the given address.
func WithAPIBind(bind, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Bind = bind
		b.cfg.API.Token = token
	}
}

// WithFakeFFmpeg installs a scripted encoder and points the config at it.
func WithFakeFFmpeg(fake FakeFFmpeg) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.FFmpegBinary = fake.Install(b.t, filepath.Join(b.baseDir, "bin"))
	}
}

// WithFakeFFprobe installs a scripted prober reporting the given duration
// and stream layout and points the config at it.
func WithFakeFFprobe(fake FakeFFprobe) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.FFprobeBinary = fake.Install(b.t, filepath.Join(b.baseDir, "bin"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
