package progress

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reTime    = regexp.MustCompile(`time=\s*(-?)(\d+):(\d{1,2}):(\d{1,2}(?:\.\d+)?)`)
	reSpeed   = regexp.MustCompile(`speed=\s*([\d.]+)x`)
	reFPS     = regexp.MustCompile(`fps=\s*([\d.]+)`)
	reBitrate = regexp.MustCompile(`bitrate=\s*([\d.]+\s*[kKmMgG]?bits/s)`)
	reSize    = regexp.MustCompile(`(?:^|\s)L?size=\s*(\d+\s*[kKmMgG]?i?B)`)
)

type field uint8

const (
	fieldElapsed field = 1 << iota
	fieldSpeed
	fieldFPS
	fieldBitrate
	fieldSize
)

// Sample holds the progress markers found in a piece of encoder output.
// Missing markers are reported through the Has* accessors, never as errors.
type Sample struct {
	Elapsed time.Duration
	Speed   float64
	FPS     float64
	Bitrate string
	Size    string
	present field
}

func (s Sample) HasElapsed() bool { return s.present&fieldElapsed != 0 }
func (s Sample) HasSpeed() bool   { return s.present&fieldSpeed != 0 }
func (s Sample) HasFPS() bool     { return s.present&fieldFPS != 0 }
func (s Sample) HasBitrate() bool { return s.present&fieldBitrate != 0 }
func (s Sample) HasSize() bool    { return s.present&fieldSize != 0 }

// Empty reports whether no marker was recognised.
func (s Sample) Empty() bool { return s.present == 0 }

// Merge overlays every field present in next onto s.
func (s Sample) Merge(next Sample) Sample {
	if next.HasElapsed() {
		s.Elapsed = next.Elapsed
	}
	if next.HasSpeed() {
		s.Speed = next.Speed
	}
	if next.HasFPS() {
		s.FPS = next.FPS
	}
	if next.HasBitrate() {
		s.Bitrate = next.Bitrate
	}
	if next.HasSize() {
		s.Size = next.Size
	}
	s.present |= next.present
	return s
}

// ParseLine extracts progress markers from a single line of diagnostic output.
func ParseLine(line string) Sample {
	var s Sample
	if m := reTime.FindStringSubmatch(line); m != nil {
		if d, ok := parseClock(m[2], m[3], m[4]); ok {
			if m[1] == "-" {
				d = 0
			}
			s.Elapsed = d
			s.present |= fieldElapsed
		}
	}
	if m := reSpeed.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && !math.IsNaN(v) && v >= 0 {
			s.Speed = v
			s.present |= fieldSpeed
		}
	}
	if m := reFPS.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && !math.IsNaN(v) && v >= 0 {
			s.FPS = v
			s.present |= fieldFPS
		}
	}
	if m := reBitrate.FindStringSubmatch(line); m != nil {
		s.Bitrate = strings.ReplaceAll(m[1], " ", "")
		s.present |= fieldBitrate
	}
	if m := reSize.FindStringSubmatch(line); m != nil {
		s.Size = strings.ReplaceAll(m[1], " ", "")
		s.present |= fieldSize
	}
	return s
}

// Parse scans a block of text, which may hold several records, and returns
// the latest value seen for each marker.
func Parse(text string) Sample {
	var out Sample
	for _, line := range splitRecords(text) {
		out = out.Merge(ParseLine(line))
	}
	return out
}

// Percent converts encoded time into a completion percentage clamped to
// [0,100]. A non-positive total yields 0.
func Percent(elapsed, total time.Duration) float64 {
	if total <= 0 || elapsed <= 0 {
		return 0
	}
	return Clamp(elapsed.Seconds() / total.Seconds() * 100)
}

// Clamp bounds a percentage to [0,100]; NaN maps to 0.
func Clamp(pct float64) float64 {
	switch {
	case math.IsNaN(pct), pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

// ETA estimates remaining wall time from the wall time spent so far. It is
// undefined (ok=false) while percent is zero.
func ETA(wall time.Duration, percent float64) (time.Duration, bool) {
	percent = Clamp(percent)
	if percent <= 0 || wall <= 0 {
		return 0, false
	}
	if percent >= 100 {
		return 0, true
	}
	remaining := wall.Seconds() / percent * (100 - percent)
	return time.Duration(remaining * float64(time.Second)), true
}

// maxClockHours bounds the hour field; from here on the clock can overflow a
// time.Duration.
const maxClockHours = math.MaxInt64 / int64(time.Hour)

func parseClock(hours, minutes, seconds string) (time.Duration, bool) {
	h, err := strconv.ParseInt(hours, 10, 64)
	if err != nil || h < 0 || h >= maxClockHours {
		return 0, false
	}
	m, err := strconv.ParseInt(minutes, 10, 64)
	if err != nil || m >= 60 {
		return 0, false
	}
	sec, err := strconv.ParseFloat(seconds, 64)
	if err != nil || sec >= 60 {
		return 0, false
	}
	total := float64(h*3600+m*60) + sec
	return time.Duration(total * float64(time.Second)), true
}

func splitRecords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
}
