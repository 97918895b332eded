package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"squash/internal/config"
	"squash/internal/preset"
)

const yamlPresets = `presets:
  - id: phone
    name: Phone 480p
    video_codec: h264
    quality: crf
    crf: 27
    speed: veryfast
    pixel_format: yuv420p
    max_height: 480
    audio_codec: aac
    audio_bitrate_kbps: 96
`

const tomlPresets = `[[presets]]
id = "phone"
name = "Phone (TOML)"
video_codec = "h265"
quality = "crf"
crf = 30
audio_codec = "opus"
audio_bitrate_kbps = 64
`

func TestCatalogLoadsYAMLAndTOMLFiles(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "presets.yaml")
	tomlPath := filepath.Join(dir, "presets.toml")
	if err := os.WriteFile(yamlPath, []byte(yamlPresets), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	if err := os.WriteFile(tomlPath, []byte(tomlPresets), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}

	loaded, err := config.LoadPresetFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadPresetFile yaml: %v", err)
	}
	if len(loaded) != 1 || loaded[0].MaxHeight != 480 || loaded[0].Quality != preset.QualityCRF {
		t.Fatalf("unexpected yaml presets: %+v", loaded)
	}

	cfg := config.Default()
	cfg.PresetFiles = []string{yamlPath, tomlPath}
	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	got, err := catalog.Lookup("phone")
	if err != nil {
		t.Fatalf("Lookup phone: %v", err)
	}
	if got.VideoCodec != preset.CodecH265 || got.Name != "Phone (TOML)" {
		t.Fatalf("later preset file should win, got %+v", got)
	}
}

func TestCatalogInlinePresetsUseTableKey(t *testing.T) {
	cfg := config.Default()
	cfg.Presets = map[string]preset.Preset{
		"tiny": {
			VideoCodec:       preset.CodecH264,
			Quality:          preset.QualityCRF,
			CRF:              35,
			AudioCodec:       preset.AudioAAC,
			AudioBitrateKbps: 64,
		},
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	got, err := catalog.Lookup("tiny")
	if err != nil {
		t.Fatalf("Lookup tiny: %v", err)
	}
	if got.CRF != 35 {
		t.Fatalf("unexpected preset %+v", got)
	}
}

func TestLoadPresetFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := config.LoadPresetFile(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
