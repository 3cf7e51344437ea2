// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/depload/internal/resolver"
	"github.com/invowk/depload/pkg/mavensolver"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(app.stdout, "depload %s\n", getVersionString())
			fmt.Fprintf(app.stdout, "solver %s (protocol %s)\n", resolver.PinnedSolver.String(), mavensolver.ProtocolVersion)
		},
	}
}
