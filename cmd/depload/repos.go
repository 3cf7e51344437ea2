// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/invowk/depload/pkg/repository"

	"github.com/spf13/cobra"
)

// wellKnown names the built-in repositories in listings.
var wellKnown = map[string]string{
	repository.MavenCentral.BaseURL: "maven-central",
	repository.JitPack.BaseURL:      "jitpack",
	repository.Sonatype.BaseURL:     "sonatype",
	repository.PaperMC.BaseURL:      "papermc",
}

func newReposCommand(app *App) *cobra.Command {
	reposCmd := &cobra.Command{
		Use:   "repos",
		Short: "Inspect the repository registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	reposCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List repositories in the order they are consulted",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			reg, err := app.registry()
			if err != nil {
				return app.fail(err)
			}
			if reg.Len() == 0 {
				fmt.Fprintln(app.stdout, WarningStyle.Render("No repositories configured."))
				return nil
			}
			for i, s := range reg.Sources() {
				fmt.Fprintf(app.stdout, "%d. %s %s\n", i+1, CmdStyle.Render(s.BaseURL), SubtitleStyle.Render(fmt.Sprintf("(priority %d)", s.Priority)))
			}
			return nil
		},
	})

	reposCmd.AddCommand(&cobra.Command{
		Use:   "known",
		Short: "List the built-in repositories",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			printKnown(app.stdout)
		},
	})

	return reposCmd
}

func printKnown(w io.Writer) {
	for _, s := range []repository.Source{repository.MavenCentral, repository.JitPack, repository.Sonatype, repository.PaperMC} {
		fmt.Fprintf(w, "%-14s %s\n", wellKnown[s.BaseURL], s.BaseURL)
	}
}
