package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"squash/internal/config"
	"squash/internal/engine"
	"squash/internal/ipc"
	"squash/internal/preset"
)

// submitFlags are shared by `add` and `run`.
type submitFlags struct {
	presetID   string
	targetSize string
	output     string
	crf        int
	maxHeight  int
	audioKbps  int
	twoPass    bool
}

func (f *submitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.presetID, "preset", "p", "", "Preset id (see `squash presets`)")
	cmd.Flags().StringVarP(&f.targetSize, "target-size", "t", "", "Aim for this output size, e.g. 25MB (two-pass)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output path (single input only)")
	cmd.Flags().IntVar(&f.crf, "crf", 0, "Override the preset's CRF")
	cmd.Flags().IntVar(&f.maxHeight, "max-height", 0, "Override the preset's maximum height")
	cmd.Flags().IntVar(&f.audioKbps, "audio-bitrate", 0, "Override the preset's audio bitrate in kbps")
	cmd.Flags().BoolVar(&f.twoPass, "two-pass", false, "Force a two-pass encode")
}

func (f *submitFlags) submissions(cmd *cobra.Command, args []string) ([]engine.Submission, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one input file is required")
	}
	if strings.TrimSpace(f.output) != "" && len(args) > 1 {
		return nil, errors.New("--output can only be used with a single input")
	}

	var target int64
	if value := strings.TrimSpace(f.targetSize); value != "" {
		parsed, err := humanize.ParseBytes(value)
		if err != nil {
			return nil, fmt.Errorf("invalid --target-size %q: %w", value, err)
		}
		if parsed == 0 {
			return nil, fmt.Errorf("invalid --target-size %q: must be positive", value)
		}
		target = int64(parsed)
	}

	overrides := &preset.Overrides{}
	if cmd.Flags().Changed("crf") {
		overrides.CRF = &f.crf
	}
	if cmd.Flags().Changed("max-height") {
		overrides.MaxHeight = &f.maxHeight
	}
	if cmd.Flags().Changed("audio-bitrate") {
		overrides.AudioBitrateKbps = &f.audioKbps
	}
	if cmd.Flags().Changed("two-pass") {
		overrides.TwoPass = &f.twoPass
	}
	if overrides.IsZero() {
		overrides = nil
	}

	output := ""
	if value := strings.TrimSpace(f.output); value != "" {
		expanded, err := config.ExpandPath(value)
		if err != nil {
			return nil, fmt.Errorf("resolve output path: %w", err)
		}
		output = expanded
	}

	subs := make([]engine.Submission, 0, len(args))
	for _, arg := range args {
		input, err := config.ExpandPath(strings.TrimSpace(arg))
		if err != nil {
			return nil, fmt.Errorf("resolve input path %q: %w", arg, err)
		}
		subs = append(subs, engine.Submission{
			InputPath:  input,
			OutputPath: output,
			PresetID:   strings.TrimSpace(f.presetID),
			TargetSize: target,
			Overrides:  overrides,
		})
	}
	return subs, nil
}

func newJobCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newAddCommand(ctx),
		newListCommand(ctx),
		newShowCommand(ctx),
		newJobActionCommand(ctx, "cancel", "Cancel waiting, running or paused jobs", "cancelled", (*ipc.Client).Cancel),
		newJobActionCommand(ctx, "pause", "Suspend running jobs", "paused", (*ipc.Client).Pause),
		newJobActionCommand(ctx, "resume", "Continue paused jobs", "resumed", (*ipc.Client).Resume),
		newClearCommand(ctx),
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "add FILE...",
		Short: "Queue files for compression on the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := flags.submissions(cmd, args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(subs)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				rejected := 0
				for _, result := range resp.Results {
					if result.Failure != nil {
						rejected++
						fmt.Fprintf(out, "Rejected %s: %s\n", displayName(result.InputPath), result.Failure.Message)
						continue
					}
					job := result.Job
					fmt.Fprintf(out, "Queued %s as %s (preset %s) -> %s\n",
						displayName(job.InputPath), shortID(job.ID), job.PresetID, job.OutputPath)
				}
				if rejected > 0 {
					return fmt.Errorf("%d of %d files were rejected", rejected, len(resp.Results))
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List jobs known to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				jobs, err := client.List(statuses)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				rows := buildJobRows(jobs, shouldColorize(out))
				fmt.Fprint(out, renderTable(jobTableHeaders, rows, jobTableAligns))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (waiting, running, paused, completed, failed, cancelled)")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				id, err := lookupJobID(client, args[0])
				if err != nil {
					return err
				}
				job, err := client.Describe(id)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, job)
				}
				printJobDetails(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

type jobAction func(*ipc.Client, string) (engine.Job, error)

func newJobActionCommand(ctx *commandContext, name, short, verb string, action jobAction) *cobra.Command {
	return &cobra.Command{
		Use:   name + " ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				var errs []error
				for _, arg := range args {
					id, err := lookupJobID(client, arg)
					if err == nil {
						_, err = action(client, id)
					}
					if err != nil {
						errs = append(errs, fmt.Errorf("%s %s: %w", name, arg, err))
						continue
					}
					fmt.Fprintf(out, "Job %s %s\n", shortID(id), verb)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the daemon's list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				removed, err := client.ClearCompleted()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished %s\n", removed, pluralize(removed, "job", "jobs"))
				return nil
			})
		},
	}
}

func lookupJobID(client *ipc.Client, arg string) (string, error) {
	jobs, err := client.List(nil)
	if err != nil {
		return "", err
	}
	return resolveJobID(arg, jobs)
}

func pluralize(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
