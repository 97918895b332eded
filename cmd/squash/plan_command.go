package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"squash/internal/bitrate"
	"squash/internal/config"
	"squash/internal/media/ffprobe"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var (
		targetSize string
		duration   string
		input      string
		presetID   string
		audioKbps  int
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute the video bitrate needed to hit a target size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := humanize.ParseBytes(strings.TrimSpace(targetSize))
			if err != nil || target == 0 {
				return fmt.Errorf("invalid --target-size %q", targetSize)
			}

			seconds, err := planDuration(cmd.Context(), cfg, duration, input)
			if err != nil {
				return err
			}

			audio := audioKbps
			if !cmd.Flags().Changed("audio-bitrate") {
				catalog, err := cfg.Catalog()
				if err != nil {
					return err
				}
				id := presetID
				if id == "" {
					id = cfg.Engine.DefaultPreset
				}
				p, err := catalog.Lookup(id)
				if err != nil {
					return err
				}
				audio = p.EffectiveAudioKbps()
			}

			planner := bitrate.New(cfg.Planner.MinVideoKbps, cfg.Planner.MaxVideoKbps)
			plan, err := planner.Plan(int64(target), seconds, audio)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, plan)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Target:   %s over %s\n", humanize.Bytes(target), time.Duration(seconds*float64(time.Second)).Round(time.Second))
			fmt.Fprintf(out, "Total:    %.0f kbps (audio %d kbps)\n", plan.TotalKbps, plan.AudioKbps)
			fmt.Fprintf(out, "Video:    %d kbps\n", plan.VideoKbps)
			if plan.Clamped {
				fmt.Fprintf(out, "Clamped to [%d, %d] kbps; the output will miss the target\n", planner.MinKbps, planner.MaxKbps)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetSize, "target-size", "t", "", "Desired output size, e.g. 25MB")
	cmd.Flags().StringVarP(&duration, "duration", "d", "", "Media duration as seconds or a Go duration (1h30m)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Probe this file for its duration")
	cmd.Flags().StringVarP(&presetID, "preset", "p", "", "Preset whose audio bitrate is reserved")
	cmd.Flags().IntVar(&audioKbps, "audio-bitrate", 0, "Audio bitrate to reserve in kbps")
	addJSONFlag(cmd, &jsonOut)
	_ = cmd.MarkFlagRequired("target-size")
	cmd.MarkFlagsMutuallyExclusive("duration", "input")
	cmd.MarkFlagsOneRequired("duration", "input")
	return cmd
}

func planDuration(ctx context.Context, cfg *config.Config, duration, input string) (float64, error) {
	if value := strings.TrimSpace(duration); value != "" {
		if seconds, err := strconv.ParseFloat(value, 64); err == nil {
			return seconds, nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid --duration %q", value)
		}
		return d.Seconds(), nil
	}
	path, err := config.ExpandPath(strings.TrimSpace(input))
	if err != nil {
		return 0, err
	}
	if path == "" {
		return 0, errors.New("either --duration or --input is required")
	}
	prober := ffprobe.Prober{Binary: cfg.FFprobeBinary(), Timeout: cfg.ProbeTimeout()}
	info, err := prober.Probe(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	return info.DurationSeconds, nil
}
