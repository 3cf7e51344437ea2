// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/depload/internal/resolver"

	"github.com/spf13/cobra"
)

func newSolverCommand(app *App) *cobra.Command {
	solverCmd := &cobra.Command{
		Use:   "solver",
		Short: "Inspect and prepare the isolated solver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	solverCmd.AddCommand(&cobra.Command{
		Use:   "coordinate",
		Short: "Print the pinned solver artifact for the configured mode",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			mode, err := resolver.ParseMode(string(app.cfg.Solver.Mode))
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprintln(app.stdout, resolver.SolverCoordinate(mode).String())
			return nil
		},
	})

	solverCmd.AddCommand(&cobra.Command{
		Use:   "bootstrap",
		Short: "Download and prepare the solver now instead of on first resolve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := app.fetcher()
			if err != nil {
				return app.fail(err)
			}
			opts, err := app.bootstrapOptions(f)
			if err != nil {
				return app.fail(err)
			}
			solver, err := resolver.Bootstrap(cmd.Context(), opts)
			if err != nil {
				return app.fail(err)
			}

			switch s := solver.(type) {
			case *resolver.ExecSolver:
				fmt.Fprintf(app.stdout, "%s solver ready (exec): %s\n", SuccessStyle.Render("✓"), s.Path())
			default:
				fmt.Fprintf(app.stdout, "%s solver ready (%s)\n", SuccessStyle.Render("✓"), opts.Mode)
			}
			return nil
		},
	})

	return solverCmd
}
