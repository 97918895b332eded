package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"squash/internal/daemon"
	"squash/internal/engine"
	"squash/internal/events"
	"squash/internal/logging"
)

const runShutdownTimeout = 15 * time.Second

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		flags    submitFlags
		parallel int
		quiet    bool
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "run FILE...",
		Short: "Compress files in this process and wait for them to finish",
		Long: "Run hosts an engine in the foreground, compresses every FILE and exits " +
			"non-zero when any job fails. Ctrl-C cancels unfinished jobs.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *loaded
			if cmd.Flags().Changed("parallel") {
				cfg.Engine.MaxParallelJobs = parallel
			}
			if quiet {
				cfg.Logging.Level = "warn"
			}
			subs, err := flags.submissions(cmd, args)
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(&cfg, false, nil)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			bus := events.NewBus(1024)
			defer bus.Close()
			rt, err := daemon.NewRuntime(&cfg, logger, bus, daemon.RuntimeOptions{})
			if err != nil {
				return err
			}
			rt.Start(signalCtx)

			out := cmd.OutOrStdout()
			live := false
			if file, ok := out.(*os.File); ok {
				live = isTerminal(file) && !jsonOut
			}
			names := &runNames{names: make(map[string]string), get: rt.Engine().Get}
			var (
				feed        *events.Subscription
				printerDone chan struct{}
			)
			if !jsonOut {
				feed = bus.Subscribe(256)
				printer := newEventPrinter(out, live, names.lookup)
				printerDone = make(chan struct{})
				go func() {
					defer close(printerDone)
					defer printer.finish()
					for evt := range feed.C() {
						printer.print(evt)
					}
				}()
			}

			rejected := 0
			for i, res := range rt.SubmitBatch(signalCtx, subs) {
				if res.Err != nil {
					rejected++
					fmt.Fprintf(cmd.ErrOrStderr(), "Rejected %s: %v\n", displayName(subs[i].InputPath), res.Err)
					continue
				}
				names.set(res.Job.ID, shortID(res.Job.ID)+" "+displayName(res.Job.InputPath))
			}

			waitErr := rt.Engine().WaitIdle(signalCtx)
			interrupted := errors.Is(waitErr, context.Canceled) && cmd.Context().Err() == nil
			if interrupted {
				fmt.Fprintln(cmd.ErrOrStderr(), "Interrupted; cancelling unfinished jobs")
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), runShutdownTimeout)
			defer shutdownCancel()
			closeErr := rt.Close(shutdownCtx)
			if feed != nil {
				feed.Close()
				<-printerDone
			}

			jobs := rt.Engine().List()
			if jsonOut {
				if err := writeJSON(cmd, jobs); err != nil {
					return err
				}
			} else if len(jobs) > 0 {
				fmt.Fprint(out, renderTable(jobTableHeaders, buildJobRows(jobs, live), jobTableAligns))
			}
			if closeErr != nil {
				return closeErr
			}
			return runOutcome(jobs, rejected, interrupted)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 0, "Jobs to run at once (1-8); defaults to the config value")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

// runOutcome maps a finished batch to the process exit status: 130 when
// interrupted, 1 when any file was rejected or did not complete.
func runOutcome(jobs []engine.Job, rejected int, interrupted bool) error {
	if interrupted {
		return exitCodeError{code: 130, err: errors.New("interrupted")}
	}
	failed := rejected
	for _, job := range jobs {
		if job.Status != engine.StatusCompleted {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return exitCodeError{code: 1, err: fmt.Errorf("%d of %d files did not compress", failed, len(jobs)+rejected)}
}

// runNames labels jobs in the progress feed. Events can precede the end of
// submission, so unknown ids are looked up in the engine.
type runNames struct {
	mu    sync.Mutex
	names map[string]string
	get   func(string) (engine.Job, error)
}

func (n *runNames) set(id, name string) {
	n.mu.Lock()
	n.names[id] = name
	n.mu.Unlock()
}

func (n *runNames) lookup(id string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if name, ok := n.names[id]; ok {
		return name
	}
	if n.get != nil {
		if job, err := n.get(id); err == nil {
			name := shortID(id) + " " + displayName(job.InputPath)
			n.names[id] = name
			return name
		}
	}
	return shortID(id)
}
