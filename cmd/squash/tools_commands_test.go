package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"squash/internal/testsupport"
)

func TestPresetsCommandMarksDefault(t *testing.T) {
	_, configPath := newCLIConfig(t, testsupport.FakeFFmpeg{})

	out, _, err := runCLI(t, []string{"presets"}, "", configPath)
	if err != nil {
		t.Fatalf("presets: %v", err)
	}
	requireContains(t, out, "balanced *")
	requireContains(t, out, "share-2pass")
	requireContains(t, out, "* default preset")
}

func TestPresetShowPrintsTOML(t *testing.T) {
	_, configPath := newCLIConfig(t, testsupport.FakeFFmpeg{})

	out, _, err := runCLI(t, []string{"presets", "show", "small"}, "", configPath)
	if err != nil {
		t.Fatalf("presets show: %v", err)
	}
	requireContains(t, out, "[presets.small]")
	requireContains(t, out, "crf = 28")

	if _, _, err := runCLI(t, []string{"presets", "show", "nope"}, "", configPath); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestPlanCommandWithDuration(t *testing.T) {
	_, configPath := newCLIConfig(t, testsupport.FakeFFmpeg{})

	out, _, err := runCLI(t, []string{"plan", "--target-size", "10MiB", "--duration", "100"}, "", configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	// 10 MiB over 100s is 819.2 kbps; balanced reserves 128 kbps of audio.
	requireContains(t, out, "Video:    691 kbps")
	requireContains(t, out, "audio 128 kbps")
	if strings.Contains(out, "Clamped") {
		t.Fatalf("did not expect clamping:\n%s", out)
	}
}

func TestPlanCommandJSONWithInput(t *testing.T) {
	cfg, configPath := newCLIConfig(t, testsupport.FakeFFmpeg{})
	input := testsupport.MediaFile(t, testsupport.BaseDir(cfg), "probe.mkv", 1024)

	out, _, err := runCLI(t, []string{"plan", "--target-size", "1KiB", "--input", input, "--audio-bitrate", "0", "--json"}, "", configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	var plan struct {
		DurationSeconds float64 `json:"duration_seconds"`
		VideoKbps       int     `json:"video_kbps"`
		Clamped         bool    `json:"clamped"`
	}
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("decode plan: %v\n%s", err, out)
	}
	if plan.DurationSeconds != 10 {
		t.Fatalf("duration = %v, want probed 10", plan.DurationSeconds)
	}
	if !plan.Clamped || plan.VideoKbps != cfg.Planner.MinVideoKbps {
		t.Fatalf("expected clamp to the minimum, got %+v", plan)
	}
}

func TestPlanCommandRequiresDurationSource(t *testing.T) {
	_, configPath := newCLIConfig(t, testsupport.FakeFFmpeg{})

	if _, _, err := runCLI(t, []string{"plan", "--target-size", "10MB"}, "", configPath); err == nil {
		t.Fatal("expected error without --duration or --input")
	}
	if _, _, err := runCLI(t, []string{"plan", "--target-size", "zero", "--duration", "10"}, "", configPath); err == nil {
		t.Fatal("expected error for unparseable target size")
	}
}

func TestDepsCommandListsEncoders(t *testing.T) {
	_, configPath := newCLIConfig(t, testsupport.FakeFFmpeg{})

	out, _, err := runCLI(t, []string{"deps"}, "", configPath)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "== Binaries ==")
	requireContains(t, out, "ffmpeg version 7.1-fake")
	requireContains(t, out, "== Encoders ==")

	var libx264 string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "libx264") {
			libx264 = line
			break
		}
	}
	if !strings.Contains(libx264, "yes") || !strings.Contains(libx264, "balanced") {
		t.Fatalf("expected libx264 row to be available for balanced, got %q", libx264)
	}
}

func TestDepsCommandFailsWithoutFFmpeg(t *testing.T) {
	configPath := writeConfigWithoutFFmpeg(t)

	out, _, err := runCLI(t, []string{"deps"}, "", configPath)
	if err == nil {
		t.Fatal("expected error when ffmpeg is missing")
	}
	requireContains(t, out, "[ERROR]")
	if strings.Contains(out, "== Encoders ==") {
		t.Fatalf("encoder table should be skipped without ffmpeg:\n%s", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("SQUASH_FFMPEG", "")
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, "", target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+target)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBadParallelism(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[engine]\nmax_parallel_jobs = 12\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, "", path); err == nil {
		t.Fatal("expected validation error for max_parallel_jobs = 12")
	}
}

func TestConfigShowRedactsToken(t *testing.T) {
	_, configPath := newCLIConfig(t, testsupport.FakeFFmpeg{}, testsupport.WithAPIBind("127.0.0.1:0", "s3cret"))

	out, _, err := runCLI(t, []string{"config", "show"}, "", configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "s3cret") {
		t.Fatalf("token leaked in config show output:\n%s", out)
	}
	requireContains(t, out, "<redacted>")
}
