// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/pkg/coordinate"

	"github.com/spf13/cobra"
)

type resolvedEntry struct {
	Coordinate string `json:"coordinate"`
	Origin     string `json:"origin,omitempty"`
}

func newResolveCommand(app *App) *cobra.Command {
	var (
		provided []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <group:artifact:version[:classifier]>",
		Short: "Print the transitive closure of an artifact",
		Long: `Print what an artifact depends on, transitively.

The artifact itself is never part of its closure. Host-provided coordinates
(from the configuration or --provided) are left out, and when the solver
reports two versions of one group:artifact the first one wins.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := coordinate.Parse(args[0])
			if err != nil {
				return app.fail(err)
			}
			reg, err := app.registry()
			if err != nil {
				return app.fail(err)
			}
			f, err := app.fetcher()
			if err != nil {
				return app.fail(err)
			}
			res, err := app.resolver(reg, f, provided...)
			if err != nil {
				return app.fail(err)
			}

			closure, err := res.Transitive(cmd.Context(), root)
			if err != nil {
				return app.fail(issue.ForError("resolve dependencies", root.String(), err))
			}

			if asJSON {
				out := make([]resolvedEntry, len(closure))
				for i, a := range closure {
					out[i] = resolvedEntry{Coordinate: a.Coordinate.String(), Origin: a.Origin}
				}
				enc := json.NewEncoder(app.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render(root.String()))
			if len(closure) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("  (no dependencies)"))
				return nil
			}
			for _, a := range closure {
				line := "  " + CmdStyle.Render(a.Coordinate.String())
				if a.Origin != "" {
					line += " " + SubtitleStyle.Render("from "+a.Origin)
				}
				fmt.Fprintln(app.stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&provided, "provided", nil, "coordinate the host already provides (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the closure as JSON")
	return cmd
}
