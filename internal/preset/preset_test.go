package preset_test

import (
	"strings"
	"testing"

	"squash/internal/preset"
)

func TestApplyOverridesWinFieldByField(t *testing.T) {
	catalog, err := preset.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	base, err := catalog.Lookup("balanced")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	crf := 30
	width := 640
	removeAudio := true
	merged := base.Apply(&preset.Overrides{CRF: &crf, MaxWidth: &width, RemoveAudio: &removeAudio})

	if merged.CRF != 30 {
		t.Fatalf("crf override not applied: got %d", merged.CRF)
	}
	if merged.MaxWidth != 640 {
		t.Fatalf("max width override not applied: got %d", merged.MaxWidth)
	}
	if !merged.RemoveAudio {
		t.Fatal("expected remove audio override to apply")
	}
	if merged.VideoCodec != base.VideoCodec || merged.Speed != base.Speed {
		t.Fatalf("untouched fields changed: %+v", merged)
	}
	if base.CRF != 23 {
		t.Fatalf("base preset mutated: crf=%d", base.CRF)
	}
}

func TestApplyNilOverridesReturnsCopy(t *testing.T) {
	p := preset.Builtin()[0]
	if got := p.Apply(nil); got != p {
		t.Fatalf("expected identical preset, got %+v", got)
	}
	var o *preset.Overrides
	if !o.IsZero() {
		t.Fatal("nil overrides should be zero")
	}
}

func TestBuiltinsValidate(t *testing.T) {
	for _, p := range preset.Builtin() {
		if err := p.Validate(); err != nil {
			t.Fatalf("builtin %s invalid: %v", p.ID, err)
		}
	}
}

func TestValidateRejectsInconsistentPresets(t *testing.T) {
	cases := []struct {
		name   string
		preset preset.Preset
		want   string
	}{
		{"missing id", preset.Preset{}, "id"},
		{"both removed", preset.Preset{ID: "x", RemoveVideo: true, RemoveAudio: true}, "cannot both"},
		{"bad codec", preset.Preset{ID: "x", VideoCodec: "mpeg2", RemoveAudio: true}, "video_codec"},
		{"bitrate mode without bitrate", preset.Preset{ID: "x", VideoCodec: preset.CodecH264, Quality: preset.QualityBitrate, RemoveAudio: true}, "video_bitrate_kbps"},
		{"audio without bitrate", preset.Preset{ID: "x", RemoveVideo: true, AudioCodec: preset.AudioAAC}, "audio_bitrate_kbps"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.preset.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCatalogExtraReplacesBuiltin(t *testing.T) {
	custom := preset.Preset{
		ID:               "balanced",
		VideoCodec:       preset.CodecH265,
		Quality:          preset.QualityCRF,
		CRF:              26,
		AudioCodec:       preset.AudioOpus,
		AudioBitrateKbps: 96,
	}
	catalog, err := preset.NewCatalog(custom)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	got, err := catalog.Lookup("")
	if err != nil {
		t.Fatalf("Lookup default: %v", err)
	}
	if got.VideoCodec != preset.CodecH265 || got.Name != "balanced" {
		t.Fatalf("expected custom preset to replace builtin, got %+v", got)
	}
	if _, err := catalog.Lookup("nope"); err == nil {
		t.Fatal("expected unknown preset error")
	}
}
