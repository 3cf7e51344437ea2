// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/depload/internal/fetch"
	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/pkg/coordinate"

	"github.com/spf13/cobra"
)

func newFetchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <coordinate>...",
		Short: "Download artifacts into the cache without resolving",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords := make([]coordinate.Coordinate, len(args))
			for i, arg := range args {
				c, err := coordinate.Parse(arg)
				if err != nil {
					return app.fail(err)
				}
				coords[i] = c
			}
			reg, err := app.registry()
			if err != nil {
				return app.fail(err)
			}
			if err := reg.RequireNonEmpty(); err != nil {
				return app.fail(err)
			}
			f, err := app.fetcher()
			if err != nil {
				return app.fail(err)
			}

			for _, c := range coords {
				path, err := f.Fetch(cmd.Context(), c, reg.Sources())
				if err != nil {
					return app.fail(issue.ForError("download artifact", c.String(), err))
				}
				sum, err := fetch.ComputeFileSHA1(path)
				if err != nil {
					return app.fail(err)
				}
				fmt.Fprintf(app.stdout, "%s %s\n  %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(c.String()), path)
				fmt.Fprintf(app.stdout, "  sha1 %s\n", sum)
			}
			return nil
		},
	}
}
