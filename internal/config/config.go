package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"squash/internal/preset"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	OutputDir string `toml:"output_dir"`
}

// Engine contains job scheduling and encoder settings.
type Engine struct {
	MaxParallelJobs         int    `toml:"max_parallel_jobs"`
	FFmpegBinary            string `toml:"ffmpeg_binary"`
	FFprobeBinary           string `toml:"ffprobe_binary"`
	FallbackDurationSeconds int    `toml:"fallback_duration_seconds"`
	ProbeTimeoutSeconds     int    `toml:"probe_timeout_seconds"`
	DefaultPreset           string `toml:"default_preset"`
	OutputSuffix            string `toml:"output_suffix"`
}

// Planner bounds the bitrates the target-size planner may choose.
type Planner struct {
	MinVideoKbps int `toml:"min_video_kbps"`
	MaxVideoKbps int `toml:"max_video_kbps"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
	Cancelled      bool   `toml:"cancelled"`
}

// API configures the daemon's optional read-only HTTP API.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for squash.
//
// Configuration sections by subsystem:
//   - Paths: data (history, socket, lock), logs, default output directory
//   - Engine: parallelism, encoder binaries, duration fallback
//   - Planner: target-size bitrate bounds
//   - Notifications: ntfy push on job completion
//   - API: optional HTTP status endpoint served by the daemon
//   - Logging: log format and level
//   - Presets / PresetFiles: custom encoder presets layered over the built-ins
type Config struct {
	Paths         Paths                    `toml:"paths"`
	Engine        Engine                   `toml:"engine"`
	Planner       Planner                  `toml:"planner"`
	Notifications Notifications            `toml:"notifications"`
	API           API                      `toml:"api"`
	Logging       Logging                  `toml:"logging"`
	Presets       map[string]preset.Preset `toml:"presets"`
	PresetFiles   []string                 `toml:"preset_files"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/squash/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("squash.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is optional; when empty, outputs land next to their inputs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		if err := os.MkdirAll(c.Paths.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output directory %q: %w", c.Paths.OutputDir, err)
		}
	}
	return nil
}

// MaxParallelJobs is the scheduler's concurrency limit.
func (c *Config) MaxParallelJobs() int {
	return c.Engine.MaxParallelJobs
}

// FFmpegBinary returns the encoder executable name or path.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Engine.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the probe executable name or path.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Engine.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// FallbackDuration is the duration assumed when probing an input fails.
func (c *Config) FallbackDuration() time.Duration {
	return time.Duration(c.Engine.FallbackDurationSeconds) * time.Second
}

// ProbeTimeout bounds a single ffprobe invocation.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Engine.ProbeTimeoutSeconds) * time.Second
}

// HistoryPath is the SQLite database holding job history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// SocketPath is the daemon's IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "squash.sock")
}

// LockPath is the daemon's single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "squash.lock")
}

// PIDPath records the daemon's process id while it runs.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "squash.pid")
}

// DaemonLogPath is the log file written by the background daemon.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "squash.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
