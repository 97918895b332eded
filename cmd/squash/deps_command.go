package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"squash/internal/deps"
	"squash/internal/ffmpeg"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check ffmpeg, ffprobe and the encoders presets need",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := cfg.Catalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			var ffmpegPath string
			missingRequired := false
			for i, status := range statuses {
				if status.Name == "FFmpeg" {
					status = deps.CheckEncoder(cmd.Context(), status)
					statuses[i] = status
					if status.Available {
						ffmpegPath = status.Path
					}
				}
				if !status.Available && !status.Optional {
					missingRequired = true
				}
			}

			for _, line := range renderSectionHeader("Binaries", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, status := range statuses {
				fmt.Fprintln(out, binaryStatusLine(status, colorize))
			}

			if ffmpegPath == "" {
				if missingRequired {
					return fmt.Errorf("ffmpeg is not available (configure engine.ffmpeg_binary or SQUASH_FFMPEG)")
				}
				return nil
			}

			users := make(map[string][]string)
			for _, p := range catalog.All() {
				for _, name := range ffmpeg.Encoders(p) {
					users[name] = append(users[name], p.ID)
				}
			}
			wanted := make([]string, 0, len(users))
			for name := range users {
				wanted = append(wanted, name)
			}
			slices.Sort(wanted)

			available, err := deps.Encoders(cmd.Context(), ffmpegPath, wanted)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Encoders", colorize) {
				fmt.Fprintln(out, line)
			}
			rows := make([][]string, 0, len(wanted))
			for _, name := range wanted {
				rows = append(rows, []string{name, yesNo(available[name]), strings.Join(users[name], ", ")})
			}
			fmt.Fprint(out, renderTable([]string{"Encoder", "Available", "Presets"}, rows, nil))
			return nil
		},
	}
}

func binaryStatusLine(status deps.Status, colorize bool) string {
	if status.Available {
		detail := status.Path
		if status.Version != "" {
			detail = status.Version + " (" + status.Path + ")"
		}
		return renderStatusLine(status.Name, statusOK, detail, colorize)
	}
	detail := strings.TrimSpace(status.Detail)
	if detail == "" {
		detail = "not available"
	}
	kind := statusError
	if status.Optional {
		kind = statusWarn
	}
	return renderStatusLine(status.Name, kind, detail, colorize)
}
