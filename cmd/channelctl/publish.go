package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/photon/core/channel"
)

func newPublishCmd(a *app) *cobra.Command {
	var (
		event  string
		source string
	)

	cmd := &cobra.Command{
		Use:   "publish <channel> [data]",
		Short: "Publish one message",
		Long: `Publish one message to a channel. data is sent as JSON when it parses as
JSON and as a plain string otherwise.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := channel.Message{Channel: args[0], Event: event, Source: source}
			if len(args) == 2 {
				msg.Data = parseData(args[1])
			}

			ctx := cmd.Context()
			broker := a.registry.Get()
			defer broker.Disconnect(ctx)

			if err := broker.Publish(ctx, msg); err != nil {
				return fmt.Errorf("publish to %q: %w", msg.Channel, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published to %s via %s\n", msg.Channel, a.registry.ActiveType())
			return nil
		},
	}

	cmd.Flags().StringVarP(&event, "event", "e", "", "Event tag (default \"message\")")
	cmd.Flags().StringVar(&source, "source", "", "Source identifier (default process name)")

	return cmd
}

func parseData(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
