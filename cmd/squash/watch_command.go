package main

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"squash/internal/engine"
	"squash/internal/events"
	"squash/internal/ipc"
)

const watchPollWait = 10 * time.Second

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		jobArg     string
		replay     bool
		logs       bool
		exitOnDone bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow job progress and state changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				jobID := ""
				if strings.TrimSpace(jobArg) != "" {
					id, err := lookupJobID(client, jobArg)
					if err != nil {
						return err
					}
					jobID = id
				}

				names := newJobNames(client)
				out := cmd.OutOrStdout()
				live := false
				if file, ok := out.(*os.File); ok {
					live = isTerminal(file)
				}
				printer := newEventPrinter(out, live, names.lookup)
				printer.showLogs = logs
				defer printer.finish()

				since := uint64(0)
				if !replay {
					resp, err := client.Events(ipc.EventsRequest{Since: math.MaxUint64})
					if err != nil {
						return err
					}
					since = resp.Next
				}
				if exitOnDone && jobID != "" {
					// The job may have finished before the cursor was taken.
					job, err := client.Describe(jobID)
					if err != nil {
						return err
					}
					if job.Status.Terminal() && !replay {
						printJobDetails(out, job)
						return jobExitError(job)
					}
				}

				var finished *events.Completion
				err := followEvents(cmd.Context(), client, since, jobID, func(evt events.Event) bool {
					printer.print(evt)
					if exitOnDone && jobID != "" && evt.Type == events.TypeCompleted {
						finished = evt.Completion
						return true
					}
					return false
				})
				if err != nil || finished == nil || finished.Success {
					return err
				}
				return exitCodeError{code: 2, err: errors.New("job " + shortID(jobID) + " did not complete")}
			})
		},
	}
	cmd.Flags().StringVarP(&jobArg, "job", "j", "", "Only show events for this job")
	cmd.Flags().BoolVar(&replay, "replay", false, "Start from the oldest buffered event")
	cmd.Flags().BoolVar(&logs, "logs", false, "Include daemon log messages")
	cmd.Flags().BoolVar(&exitOnDone, "exit", false, "Exit once the --job finishes")
	return cmd
}

// followEvents long-polls the daemon until ctx ends or handle returns true.
func followEvents(ctx context.Context, client *ipc.Client, since uint64, jobID string, handle func(events.Event) bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		resp, err := client.Events(ipc.EventsRequest{
			Since:      since,
			WaitMillis: int(watchPollWait / time.Millisecond),
			JobID:      jobID,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, evt := range resp.Events {
			if handle(evt) {
				return nil
			}
		}
		since = resp.Next
	}
}

func jobExitError(job engine.Job) error {
	if job.Status == engine.StatusCompleted {
		return nil
	}
	return exitCodeError{code: 2, err: errors.New("job " + shortID(job.ID) + " " + string(job.Status))}
}

// jobNames caches display names for job ids seen by watch.
type jobNames struct {
	client *ipc.Client
	names  map[string]string
}

func newJobNames(client *ipc.Client) *jobNames {
	n := &jobNames{client: client, names: make(map[string]string)}
	n.refresh()
	return n
}

func (n *jobNames) refresh() {
	jobs, err := n.client.List(nil)
	if err != nil {
		return
	}
	for _, job := range jobs {
		n.names[job.ID] = shortID(job.ID) + " " + displayName(job.InputPath)
	}
}

func (n *jobNames) lookup(id string) string {
	if name, ok := n.names[id]; ok {
		return name
	}
	n.refresh()
	if name, ok := n.names[id]; ok {
		return name
	}
	n.names[id] = shortID(id)
	return n.names[id]
}
