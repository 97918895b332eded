package main

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"squash/internal/ffmpeg"
	"squash/internal/preset"
)

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List built-in and configured encoder presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := cfg.Catalog()
			if err != nil {
				return err
			}
			presets := catalog.All()
			if jsonOut {
				return writeJSON(cmd, presets)
			}
			rows := make([][]string, 0, len(presets))
			for _, p := range presets {
				id := p.ID
				if id == cfg.Engine.DefaultPreset {
					id += " *"
				}
				rows = append(rows, []string{id, p.Name, describeVideo(p), describeAudio(p), ffmpeg.Extension(p)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable([]string{"ID", "Name", "Video", "Audio", "Container"}, rows, nil))
			fmt.Fprintln(out, "* default preset")
			return nil
		},
	}
	addJSONFlag(cmd, &jsonOut)
	cmd.AddCommand(newPresetShowCommand(ctx))
	return cmd
}

func newPresetShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print a preset as a TOML block for the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := cfg.Catalog()
			if err != nil {
				return err
			}
			p, err := catalog.Lookup(args[0])
			if err != nil {
				return err
			}
			data, err := toml.Marshal(map[string]map[string]preset.Preset{"presets": {p.ID: p}})
			if err != nil {
				return fmt.Errorf("encode preset: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func describeVideo(p preset.Preset) string {
	if p.RemoveVideo {
		return "none"
	}
	parts := []string{p.VideoCodec}
	switch p.Quality {
	case preset.QualityBitrate:
		parts = append(parts, fmt.Sprintf("%d kbps", p.VideoBitrateKbps))
	default:
		parts = append(parts, fmt.Sprintf("crf %d", p.CRF))
	}
	if p.MaxHeight > 0 {
		parts = append(parts, fmt.Sprintf("<=%dp", p.MaxHeight))
	}
	if p.MaxFPS > 0 {
		parts = append(parts, fmt.Sprintf("<=%gfps", p.MaxFPS))
	}
	if p.TwoPass {
		parts = append(parts, "2-pass")
	}
	if p.Speed != "" {
		parts = append(parts, p.Speed)
	}
	return strings.Join(parts, " ")
}

func describeAudio(p preset.Preset) string {
	if p.RemoveAudio {
		return "none"
	}
	desc := fmt.Sprintf("%s %d kbps", p.AudioCodec, p.EffectiveAudioKbps())
	if p.AudioChannels > 0 {
		desc += fmt.Sprintf(" %dch", p.AudioChannels)
	}
	return desc
}
