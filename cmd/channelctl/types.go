package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered transports and the one detected",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a.registry.Get()
			active := a.registry.ActiveType()

			out := cmd.OutOrStdout()
			for _, t := range a.registry.Types() {
				marker := " "
				if t == active {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, t)
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "channelctl version %s\n", version)
			fmt.Fprintf(out, "  Go:       %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
