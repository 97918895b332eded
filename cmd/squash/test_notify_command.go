package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squash/internal/ipc"
	"squash/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var direct bool
	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if direct {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				if cfg.Notifications.NtfyTopic == "" {
					fmt.Fprintln(out, "ntfy topic not configured")
					return nil
				}
				if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Test notification sent")
				return nil
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				switch {
				case resp.Message != "":
					fmt.Fprintln(out, resp.Message)
				case resp.Sent:
					fmt.Fprintln(out, "Test notification sent")
				default:
					fmt.Fprintln(out, "Notification not sent")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&direct, "direct", false, "Send from this process instead of through the daemon")
	return cmd
}
