package ffmpeg_test

import (
	"testing"

	"squash/internal/ffmpeg"
)

func TestScaleFilterTieBreak(t *testing.T) {
	cases := []struct {
		name       string
		maxW, maxH int
		want       string
	}{
		{"both", 1280, 720, "scale=w='min(1280,iw)':h='min(720,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2"},
		{"width only", 1280, 0, "scale='min(1280,iw)':-2"},
		{"height only", 0, 1080, "scale=-2:'min(1080,ih)'"},
		{"neither", 0, 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ffmpeg.ScaleFilter(tc.maxW, tc.maxH); got != tc.want {
				t.Fatalf("ScaleFilter(%d,%d) = %q, want %q", tc.maxW, tc.maxH, got, tc.want)
			}
		})
	}
}

func TestScaledDimensions(t *testing.T) {
	cases := []struct {
		name         string
		srcW, srcH   int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"larger 16:9 source shrinks", 1920, 1080, 1280, 720, 1280, 720},
		{"smaller source untouched", 640, 360, 1280, 720, 640, 360},
		{"4k source", 3840, 2160, 1280, 720, 1280, 720},
		{"portrait bound by height", 1080, 1920, 1280, 720, 404, 720},
		{"ultrawide bound by width", 2560, 1080, 1280, 720, 1280, 540},
		{"width only", 1920, 1080, 1280, 0, 1280, 720},
		{"height only", 1920, 1080, 0, 480, 854, 480},
		{"no bounds", 1920, 1080, 0, 0, 1920, 1080},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := ffmpeg.ScaledDimensions(tc.srcW, tc.srcH, tc.maxW, tc.maxH)
			if w != tc.wantW || h != tc.wantH {
				t.Fatalf("got %dx%d, want %dx%d", w, h, tc.wantW, tc.wantH)
			}
			if w > tc.srcW || h > tc.srcH {
				t.Fatalf("upscaled %dx%d to %dx%d", tc.srcW, tc.srcH, w, h)
			}
		})
	}
}

func TestScaledDimensionsPreservesAspect(t *testing.T) {
	w, h := ffmpeg.ScaledDimensions(1920, 1080, 1280, 720)
	src := float64(1920) / 1080
	got := float64(w) / float64(h)
	if diff := src - got; diff > 0.01 || diff < -0.01 {
		t.Fatalf("aspect drifted: %.4f vs %.4f", got, src)
	}
}
