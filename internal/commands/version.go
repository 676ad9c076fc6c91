package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/txnimport/internal/buildinfo"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "importctl %s\n", buildinfo.Version)
			fmt.Fprintf(out, "  commit: %s\n", buildinfo.Commit)
			fmt.Fprintf(out, "  built:  %s\n", buildinfo.Date)
			fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
		},
	}
}
