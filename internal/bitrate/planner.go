// Package bitrate plans the video bitrate needed to land an encode on a
// target file size.
package bitrate

import (
	"errors"
	"fmt"
	"math"
)

// Default clamp bounds in kbps.
const (
	DefaultMinKbps = 100
	DefaultMaxKbps = 50000
)

var (
	ErrInvalidTarget   = errors.New("target size must be positive")
	ErrInvalidDuration = errors.New("duration must be positive")
)

// Planner computes video bitrates within [MinKbps, MaxKbps].
type Planner struct {
	MinKbps int
	MaxKbps int
}

// New returns a planner with the given bounds; zero values fall back to the
// defaults and inverted bounds are swapped.
func New(minKbps, maxKbps int) Planner {
	if minKbps <= 0 {
		minKbps = DefaultMinKbps
	}
	if maxKbps <= 0 {
		maxKbps = DefaultMaxKbps
	}
	if minKbps > maxKbps {
		minKbps, maxKbps = maxKbps, minKbps
	}
	return Planner{MinKbps: minKbps, MaxKbps: maxKbps}
}

// Plan is the outcome of a bitrate calculation.
type Plan struct {
	TargetBytes     int64   `json:"target_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	AudioKbps       int     `json:"audio_kbps"`
	TotalKbps       float64 `json:"total_kbps"`
	VideoKbps       int     `json:"video_kbps"`
	Clamped         bool    `json:"clamped"`
}

// VideoKbps returns clamp(targetBits/duration - audioKbps, min, max), with
// sizes measured in kibibits. The fractional part is truncated so the
// result errs below the target.
func (p Planner) VideoKbps(targetBytes int64, durationSeconds float64, audioKbps int) (int, error) {
	plan, err := p.Plan(targetBytes, durationSeconds, audioKbps)
	if err != nil {
		return 0, err
	}
	return plan.VideoKbps, nil
}

// Plan is VideoKbps with the intermediate figures kept for display.
func (p Planner) Plan(targetBytes int64, durationSeconds float64, audioKbps int) (Plan, error) {
	if targetBytes <= 0 {
		return Plan{}, ErrInvalidTarget
	}
	if durationSeconds <= 0 || math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidDuration, durationSeconds)
	}
	if audioKbps < 0 {
		audioKbps = 0
	}
	bounds := New(p.MinKbps, p.MaxKbps)

	total := float64(targetBytes) * 8 / 1024 / durationSeconds
	raw := math.Floor(total - float64(audioKbps))
	video := int(raw)
	clamped := false
	switch {
	case raw < float64(bounds.MinKbps):
		video, clamped = bounds.MinKbps, true
	case raw > float64(bounds.MaxKbps):
		video, clamped = bounds.MaxKbps, true
	}
	return Plan{
		TargetBytes:     targetBytes,
		DurationSeconds: durationSeconds,
		AudioKbps:       audioKbps,
		TotalKbps:       total,
		VideoKbps:       video,
		Clamped:         clamped,
	}, nil
}
