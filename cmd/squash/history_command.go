package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"squash/internal/history"
	"squash/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit     int
		failed    bool
		succeeded bool
		clear     bool
		jsonOut   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished jobs recorded in the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if failed && succeeded {
				return errors.New("--failed and --succeeded are mutually exclusive")
			}
			out := cmd.OutOrStdout()
			if clear {
				removed, err := ctx.clearHistory(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d history %s\n", removed, pluralize(removed, "entry", "entries"))
				return nil
			}

			req := ipc.HistoryRequest{Limit: limit, FailedOnly: failed, SuccessOnly: succeeded}
			resp, err := ctx.readHistory(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, resp)
			}
			if len(resp.Entries) == 0 {
				fmt.Fprintln(out, "No history entries")
				return nil
			}
			headers := []string{"Finished", "File", "Preset", "Input", "Output", "Ratio", "Elapsed", "Result"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft}
			fmt.Fprint(out, renderTable(headers, buildHistoryRows(resp.Entries), aligns, historyFooter(resp.Stats)...))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only show failed or cancelled jobs")
	cmd.Flags().BoolVar(&succeeded, "succeeded", false, "Only show successful jobs")
	cmd.Flags().BoolVar(&clear, "clear", false, "Delete every history entry")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

// readHistory asks the daemon when one is running and reads the database
// directly otherwise.
func (c *commandContext) readHistory(ctx context.Context, req ipc.HistoryRequest) (*ipc.HistoryResponse, error) {
	if client, err := ipc.Dial(c.socketPath()); err == nil {
		defer client.Close()
		return client.History(req)
	}
	var resp ipc.HistoryResponse
	err := c.withHistoryStore(func(store *history.Store) error {
		entries, err := store.List(ctx, history.Filter{Limit: req.Limit, FailedOnly: req.FailedOnly, SuccessOnly: req.SuccessOnly})
		if err != nil {
			return err
		}
		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		resp.Entries, resp.Stats = entries, stats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *commandContext) clearHistory(ctx context.Context) (int64, error) {
	if client, err := ipc.Dial(c.socketPath()); err == nil {
		defer client.Close()
		return client.HistoryClear()
	}
	var removed int64
	err := c.withHistoryStore(func(store *history.Store) error {
		var err error
		removed, err = store.Clear(ctx)
		return err
	})
	return removed, err
}

// withHistoryStore runs fn against the history database. Nothing runs when
// no database has been created yet.
func (c *commandContext) withHistoryStore(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.HistoryPath()); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}
