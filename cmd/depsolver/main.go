// SPDX-License-Identifier: MPL-2.0

// Command depsolver is the isolated dependency solver. It reads one JSON
// request on stdin, walks the POM graph and writes one JSON response on stdout.
// It shares no state with the process that launched it.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/invowk/depload/pkg/mavensolver"

	"github.com/spf13/cobra"
)

// Version is the solver artifact version (set via -ldflags).
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "depsolver:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "depsolver",
		Short:         "Resolve a Maven artifact's transitive closure over stdin/stdout",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			solver := mavensolver.NewSolver(mavensolver.DefaultGetter(&http.Client{Timeout: timeout}))
			return mavensolver.Serve(solver, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	root.Flags().DurationVar(&timeout, "timeout", time.Minute, "per-request repository timeout")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the solver and protocol versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "depsolver %s (protocol %s)\n", Version, mavensolver.ProtocolVersion)
		},
	})
	return root
}
