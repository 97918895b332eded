package preset

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultID names the preset used when a submission does not pick one.
const DefaultID = "balanced"

var builtins = []Preset{
	{
		ID:               "balanced",
		Name:             "Balanced H.264",
		VideoCodec:       CodecH264,
		Quality:          QualityCRF,
		CRF:              23,
		Speed:            "medium",
		Profile:          "high",
		PixelFormat:      "yuv420p",
		AudioCodec:       AudioAAC,
		AudioBitrateKbps: 128,
	},
	{
		ID:               "small",
		Name:             "Small H.265",
		VideoCodec:       CodecH265,
		Quality:          QualityCRF,
		CRF:              28,
		Speed:            "slow",
		PixelFormat:      "yuv420p",
		AudioCodec:       AudioAAC,
		AudioBitrateKbps: 96,
	},
	{
		ID:               "web-720p",
		Name:             "Web 720p",
		VideoCodec:       CodecH264,
		Quality:          QualityCRF,
		CRF:              24,
		Speed:            "fast",
		Profile:          "main",
		Level:            "3.1",
		PixelFormat:      "yuv420p",
		MaxWidth:         1280,
		MaxHeight:        720,
		MaxFPS:           30,
		AudioCodec:       AudioAAC,
		AudioBitrateKbps: 128,
		AudioSampleRate:  44100,
		AudioChannels:    2,
	},
	{
		ID:               "share-2pass",
		Name:             "Share (two-pass bitrate)",
		VideoCodec:       CodecH264,
		Quality:          QualityBitrate,
		VideoBitrateKbps: 2500,
		Speed:            "medium",
		PixelFormat:      "yuv420p",
		MaxHeight:        1080,
		TwoPass:          true,
		AudioCodec:       AudioAAC,
		AudioBitrateKbps: 128,
	},
	{
		ID:               "archive-av1",
		Name:             "Archive AV1",
		VideoCodec:       CodecAV1,
		Quality:          QualityCRF,
		CRF:              32,
		Speed:            "6",
		PixelFormat:      "yuv420p10le",
		AudioCodec:       AudioOpus,
		AudioBitrateKbps: 128,
	},
	{
		ID:               "webm-vp9",
		Name:             "WebM VP9",
		VideoCodec:       CodecVP9,
		Quality:          QualityCRF,
		CRF:              33,
		Speed:            "2",
		PixelFormat:      "yuv420p",
		AudioCodec:       AudioOpus,
		AudioBitrateKbps: 96,
	},
	{
		ID:               "audio-aac",
		Name:             "Audio only (AAC)",
		RemoveVideo:      true,
		AudioCodec:       AudioAAC,
		AudioBitrateKbps: 192,
		AudioChannels:    2,
	},
	{
		ID:          "mute",
		Name:        "Strip audio",
		VideoCodec:  CodecH264,
		Quality:     QualityCRF,
		CRF:         23,
		Speed:       "medium",
		PixelFormat: "yuv420p",
		RemoveAudio: true,
	},
}

// Builtin returns copies of the presets shipped with squash.
func Builtin() []Preset {
	out := make([]Preset, len(builtins))
	copy(out, builtins)
	return out
}

// Catalog is a read-only lookup of presets by id.
type Catalog struct {
	byID map[string]Preset
}

// NewCatalog merges the built-in presets with extra ones. An extra preset
// with the same id as a built-in replaces it.
func NewCatalog(extra ...Preset) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Preset, len(builtins)+len(extra))}
	for _, p := range builtins {
		c.byID[p.ID] = p
	}
	for _, p := range extra {
		p.ID = strings.TrimSpace(p.ID)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		c.byID[p.ID] = p
	}
	return c, nil
}

// Lookup returns the preset registered under id.
func (c *Catalog) Lookup(id string) (Preset, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = DefaultID
	}
	p, ok := c.byID[id]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q", id)
	}
	return p, nil
}

// All returns every preset sorted by id.
func (c *Catalog) All() []Preset {
	out := make([]Preset, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
