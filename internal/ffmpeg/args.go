package ffmpeg

import (
	"os"
	"strconv"

	"squash/internal/preset"
)

// Pass identifies which encoder invocation an argument vector is for.
type Pass int

const (
	PassSingle Pass = iota
	PassAnalysis
	PassFinal
)

func (p Pass) String() string {
	switch p {
	case PassAnalysis:
		return "pass1"
	case PassFinal:
		return "pass2"
	default:
		return "single"
	}
}

// Options describes one job's encode. Preset is the effective preset with
// overrides and stream-absence flags already folded in.
type Options struct {
	Input  string
	Output string
	Preset preset.Preset

	// VideoBitrateKbps replaces the preset bitrate when positive, as planned
	// for target-size encodes.
	VideoBitrateKbps int
	TwoPass          bool
	PassLogFile      string
}

// Stage is one encoder invocation plus the slice of overall progress it
// covers.
type Stage struct {
	Pass          Pass
	Args          []string
	ProgressStart float64
	ProgressEnd   float64
}

// Stages returns the invocations needed for opts: one for a single-pass
// encode, two for a two-pass encode with progress split 0-50 and 50-100.
func Stages(opts Options) []Stage {
	if !opts.TwoPass || opts.Preset.RemoveVideo {
		return []Stage{{Pass: PassSingle, Args: Args(opts, PassSingle), ProgressStart: 0, ProgressEnd: 100}}
	}
	return []Stage{
		{Pass: PassAnalysis, Args: Args(opts, PassAnalysis), ProgressStart: 0, ProgressEnd: 50},
		{Pass: PassFinal, Args: Args(opts, PassFinal), ProgressStart: 50, ProgressEnd: 100},
	}
}

// Args builds the argument vector, without the binary name, for one pass.
// The analysis pass drops audio and writes to the null muxer; every pass
// overwrites its destination.
func Args(opts Options, pass Pass) []string {
	p := opts.Preset
	args := make([]string, 0, 48)

	args = append(args, "-hide_banner", "-nostdin", "-y", "-stats")
	args = append(args, "-i", opts.Input)

	if p.RemoveVideo {
		args = append(args, "-vn")
	} else {
		args = appendVideo(args, opts, pass)
	}

	if pass != PassSingle && !p.RemoveVideo {
		n := "1"
		if pass == PassFinal {
			n = "2"
		}
		args = append(args, "-pass", n)
		if opts.PassLogFile != "" {
			args = append(args, "-passlogfile", opts.PassLogFile)
		}
	}

	if pass == PassAnalysis {
		args = append(args, "-an", "-f", "null", os.DevNull)
		return args
	}

	if p.RemoveAudio {
		args = append(args, "-an")
	} else {
		args = appendAudio(args, p)
	}

	args = append(args, opts.Output)
	return args
}

func appendVideo(args []string, opts Options, pass Pass) []string {
	p := opts.Preset
	codec := videoEncoder(p.VideoCodec)
	args = append(args, "-c:v", codec)

	bitrate := p.VideoBitrateKbps
	if opts.VideoBitrateKbps > 0 {
		bitrate = opts.VideoBitrateKbps
	}
	useBitrate := opts.VideoBitrateKbps > 0 || p.Quality == preset.QualityBitrate || pass != PassSingle

	switch {
	case useBitrate && bitrate > 0:
		args = append(args, "-b:v", kbps(bitrate))
	default:
		args = append(args, "-crf", strconv.Itoa(p.CRF))
		if p.VideoCodec == preset.CodecVP9 {
			args = append(args, "-b:v", "0")
		}
	}

	if p.Speed != "" {
		switch p.VideoCodec {
		case preset.CodecVP9:
			args = append(args, "-deadline", "good", "-cpu-used", p.Speed)
		default:
			args = append(args, "-preset", p.Speed)
		}
	}
	if p.Profile != "" {
		args = append(args, "-profile:v", p.Profile)
	}
	if p.Level != "" {
		args = append(args, "-level:v", p.Level)
	}
	if p.PixelFormat != "" {
		args = append(args, "-pix_fmt", p.PixelFormat)
	}
	if filter := ScaleFilter(p.MaxWidth, p.MaxHeight); filter != "" {
		args = append(args, "-vf", filter)
	}
	if p.MaxFPS > 0 {
		args = append(args, "-r", strconv.FormatFloat(p.MaxFPS, 'f', -1, 64))
	}
	return args
}

func appendAudio(args []string, p preset.Preset) []string {
	args = append(args, "-c:a", audioEncoder(p.AudioCodec))
	if p.AudioBitrateKbps > 0 {
		args = append(args, "-b:a", kbps(p.AudioBitrateKbps))
	}
	if p.AudioSampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(p.AudioSampleRate))
	}
	if p.AudioChannels > 0 {
		args = append(args, "-ac", strconv.Itoa(p.AudioChannels))
	}
	return args
}

func videoEncoder(codec string) string {
	switch codec {
	case preset.CodecH265:
		return "libx265"
	case preset.CodecVP9:
		return "libvpx-vp9"
	case preset.CodecAV1:
		return "libsvtav1"
	default:
		return "libx264"
	}
}

func audioEncoder(codec string) string {
	switch codec {
	case preset.AudioOpus:
		return "libopus"
	case preset.AudioMP3:
		return "libmp3lame"
	default:
		return "aac"
	}
}

// Encoders lists the ffmpeg encoder names an encode of p invokes.
func Encoders(p preset.Preset) []string {
	var names []string
	if !p.RemoveVideo {
		names = append(names, videoEncoder(p.VideoCodec))
	}
	if !p.RemoveAudio {
		names = append(names, audioEncoder(p.AudioCodec))
	}
	return names
}

func kbps(v int) string {
	return strconv.Itoa(v) + "k"
}

// Extension picks the container extension an output for p should carry.
func Extension(p preset.Preset) string {
	if p.RemoveVideo {
		switch p.AudioCodec {
		case preset.AudioOpus:
			return ".opus"
		case preset.AudioMP3:
			return ".mp3"
		default:
			return ".m4a"
		}
	}
	switch {
	case p.VideoCodec == preset.CodecVP9:
		return ".webm"
	case p.VideoCodec == preset.CodecAV1 && p.AudioCodec == preset.AudioOpus:
		return ".mkv"
	default:
		return ".mp4"
	}
}
