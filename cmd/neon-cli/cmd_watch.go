package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neonviz/neon/client"
)

func newWatchCmd() *cobra.Command {
	var sub client.Subscription
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream filter and record events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			events, err := apiClient.Events(ctx, sub)
			if err != nil {
				return err
			}

			for evt := range events {
				if flagFmt == "table" {
					fmt.Fprintf(stdout, "%d\t%s\t%s\n", evt.ID, evt.Type, evt.Data)
					continue
				}
				if err := formatJSON(stdout, evt); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sub.Widget, "widget", "", "Widget this watcher acts for; its own filter changes are withheld")
	cmd.Flags().StringSliceVar(&sub.Events, "events", nil, "Event types to receive (default all)")
	cmd.Flags().Uint64Var(&sub.LastEventID, "since", 0, "Replay buffered events after this ID")
	return cmd
}
