package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/photon/core/channel"
	"github.com/dmitrymomot/photon/core/logger"
)

func newSubscribeCmd(a *app) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "subscribe <channel>",
		Short: "Print messages as JSON lines until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			broker := a.registry.Get()
			defer broker.Disconnect(ctx)

			out := cmd.OutOrStdout()
			msgs := make(chan channel.Message, 16)
			done := make(chan struct{})
			sub, err := broker.Subscribe(ctx, args[0], func(msg channel.Message) {
				select {
				case msgs <- msg:
				case <-done:
				case <-ctx.Done():
				}
			})
			if err != nil {
				return fmt.Errorf("subscribe to %q: %w", args[0], err)
			}
			defer sub.Unsubscribe()
			// Unblocks the handler before Unsubscribe and Disconnect wait on
			// the transport's read loop.
			defer close(done)

			a.logger.InfoContext(ctx, "subscribed", logger.Channel(args[0]), logger.Transport(a.registry.ActiveType()))

			for received := 0; count <= 0 || received < count; received++ {
				select {
				case <-ctx.Done():
					return nil
				case msg := <-msgs:
					line, err := json.Marshal(msg)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(line))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Exit after this many messages (0 = run until interrupted)")

	return cmd
}
