package preset

import (
	"errors"
	"fmt"
	"strings"
)

// QualityMode selects how the video stream's quality is controlled.
type QualityMode string

const (
	QualityCRF     QualityMode = "crf"
	QualityBitrate QualityMode = "bitrate"
)

// Video codec families understood by the argument builder.
const (
	CodecH264 = "h264"
	CodecH265 = "h265"
	CodecVP9  = "vp9"
	CodecAV1  = "av1"
)

// Audio codec families understood by the argument builder.
const (
	AudioAAC  = "aac"
	AudioOpus = "opus"
	AudioMP3  = "mp3"
)

// Preset is an immutable bundle of encoder parameters. Values are copied
// everywhere; nothing in the engine mutates a Preset after lookup.
type Preset struct {
	ID               string      `toml:"id" yaml:"id" json:"id"`
	Name             string      `toml:"name" yaml:"name" json:"name"`
	VideoCodec       string      `toml:"video_codec" yaml:"video_codec" json:"video_codec"`
	Quality          QualityMode `toml:"quality" yaml:"quality" json:"quality"`
	CRF              int         `toml:"crf" yaml:"crf" json:"crf"`
	VideoBitrateKbps int         `toml:"video_bitrate_kbps" yaml:"video_bitrate_kbps" json:"video_bitrate_kbps"`
	Speed            string      `toml:"speed" yaml:"speed" json:"speed"`
	Profile          string      `toml:"profile" yaml:"profile" json:"profile,omitempty"`
	Level            string      `toml:"level" yaml:"level" json:"level,omitempty"`
	PixelFormat      string      `toml:"pixel_format" yaml:"pixel_format" json:"pixel_format"`
	MaxWidth         int         `toml:"max_width" yaml:"max_width" json:"max_width,omitempty"`
	MaxHeight        int         `toml:"max_height" yaml:"max_height" json:"max_height,omitempty"`
	MaxFPS           float64     `toml:"max_fps" yaml:"max_fps" json:"max_fps,omitempty"`
	TwoPass          bool        `toml:"two_pass" yaml:"two_pass" json:"two_pass"`
	AudioCodec       string      `toml:"audio_codec" yaml:"audio_codec" json:"audio_codec"`
	AudioBitrateKbps int         `toml:"audio_bitrate_kbps" yaml:"audio_bitrate_kbps" json:"audio_bitrate_kbps"`
	AudioSampleRate  int         `toml:"audio_sample_rate" yaml:"audio_sample_rate" json:"audio_sample_rate,omitempty"`
	AudioChannels    int         `toml:"audio_channels" yaml:"audio_channels" json:"audio_channels,omitempty"`
	RemoveVideo      bool        `toml:"remove_video" yaml:"remove_video" json:"remove_video"`
	RemoveAudio      bool        `toml:"remove_audio" yaml:"remove_audio" json:"remove_audio"`
}

// Overrides carries optional per-submission changes. A nil field keeps the
// preset's value; a non-nil field wins.
type Overrides struct {
	VideoCodec       *string      `json:"video_codec,omitempty"`
	Quality          *QualityMode `json:"quality,omitempty"`
	CRF              *int         `json:"crf,omitempty"`
	VideoBitrateKbps *int         `json:"video_bitrate_kbps,omitempty"`
	Speed            *string      `json:"speed,omitempty"`
	Profile          *string      `json:"profile,omitempty"`
	Level            *string      `json:"level,omitempty"`
	PixelFormat      *string      `json:"pixel_format,omitempty"`
	MaxWidth         *int         `json:"max_width,omitempty"`
	MaxHeight        *int         `json:"max_height,omitempty"`
	MaxFPS           *float64     `json:"max_fps,omitempty"`
	TwoPass          *bool        `json:"two_pass,omitempty"`
	AudioCodec       *string      `json:"audio_codec,omitempty"`
	AudioBitrateKbps *int         `json:"audio_bitrate_kbps,omitempty"`
	AudioSampleRate  *int         `json:"audio_sample_rate,omitempty"`
	AudioChannels    *int         `json:"audio_channels,omitempty"`
	RemoveVideo      *bool        `json:"remove_video,omitempty"`
	RemoveAudio      *bool        `json:"remove_audio,omitempty"`
}

// IsZero reports whether no override is set.
func (o *Overrides) IsZero() bool {
	return o == nil || *o == Overrides{}
}

// Apply returns a copy of p with every non-nil override applied.
func (p Preset) Apply(o *Overrides) Preset {
	if o == nil {
		return p
	}
	out := p
	setString(&out.VideoCodec, o.VideoCodec)
	if o.Quality != nil {
		out.Quality = *o.Quality
	}
	setInt(&out.CRF, o.CRF)
	setInt(&out.VideoBitrateKbps, o.VideoBitrateKbps)
	setString(&out.Speed, o.Speed)
	setString(&out.Profile, o.Profile)
	setString(&out.Level, o.Level)
	setString(&out.PixelFormat, o.PixelFormat)
	setInt(&out.MaxWidth, o.MaxWidth)
	setInt(&out.MaxHeight, o.MaxHeight)
	if o.MaxFPS != nil {
		out.MaxFPS = *o.MaxFPS
	}
	setBool(&out.TwoPass, o.TwoPass)
	setString(&out.AudioCodec, o.AudioCodec)
	setInt(&out.AudioBitrateKbps, o.AudioBitrateKbps)
	setInt(&out.AudioSampleRate, o.AudioSampleRate)
	setInt(&out.AudioChannels, o.AudioChannels)
	setBool(&out.RemoveVideo, o.RemoveVideo)
	setBool(&out.RemoveAudio, o.RemoveAudio)
	return out
}

// Validate reports the first inconsistency that would make the preset
// unusable by the argument builder.
func (p Preset) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("preset id must be set")
	}
	if p.RemoveVideo && p.RemoveAudio {
		return fmt.Errorf("preset %s: remove_video and remove_audio cannot both be set", p.ID)
	}
	if !p.RemoveVideo {
		switch p.VideoCodec {
		case CodecH264, CodecH265, CodecVP9, CodecAV1:
		default:
			return fmt.Errorf("preset %s: unsupported video_codec %q", p.ID, p.VideoCodec)
		}
		switch p.Quality {
		case QualityCRF:
			if p.CRF < 0 || p.CRF > 63 {
				return fmt.Errorf("preset %s: crf must be between 0 and 63", p.ID)
			}
		case QualityBitrate:
			if p.VideoBitrateKbps <= 0 {
				return fmt.Errorf("preset %s: video_bitrate_kbps must be positive in bitrate mode", p.ID)
			}
		default:
			return fmt.Errorf("preset %s: quality must be %q or %q", p.ID, QualityCRF, QualityBitrate)
		}
		if p.MaxWidth < 0 || p.MaxHeight < 0 {
			return fmt.Errorf("preset %s: max_width/max_height must be >= 0", p.ID)
		}
		if p.MaxFPS < 0 {
			return fmt.Errorf("preset %s: max_fps must be >= 0", p.ID)
		}
	}
	if !p.RemoveAudio {
		switch p.AudioCodec {
		case AudioAAC, AudioOpus, AudioMP3:
		default:
			return fmt.Errorf("preset %s: unsupported audio_codec %q", p.ID, p.AudioCodec)
		}
		if p.AudioBitrateKbps <= 0 {
			return fmt.Errorf("preset %s: audio_bitrate_kbps must be positive", p.ID)
		}
		if p.AudioSampleRate < 0 || p.AudioChannels < 0 {
			return fmt.Errorf("preset %s: audio_sample_rate/audio_channels must be >= 0", p.ID)
		}
	}
	return nil
}

// EffectiveAudioKbps is the audio bitrate the output will carry, zero when
// the audio stream is dropped.
func (p Preset) EffectiveAudioKbps() int {
	if p.RemoveAudio {
		return 0
	}
	return p.AudioBitrateKbps
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
