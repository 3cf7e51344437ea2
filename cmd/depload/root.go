// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for depload.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "depload",
		Short: "Resolve and load library dependencies into a running host",
		Long: TitleStyle.Render("depload") + SubtitleStyle.Render(" - resolve library dependencies at first start") + `

depload computes the transitive closure of an artifact with an isolated
solver, downloads it into a local cache and makes it reachable by a host
that is already running.

` + SubtitleStyle.Render("Examples:") + `
  depload resolve org.example:lib:1.2.0     Print the transitive closure
  depload fetch org.example:lib:1.2.0       Download one artifact
  depload load --manifest depload.cue       Load a manifest's dependencies
  depload repos list                        Show the repository registry
  depload config show                       Show current configuration`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&app.opts.configFile, "config", "", "config file (default is <config dir>/depload/config.cue)")
	flags.StringVar(&app.opts.configDir, "config-dir", "", "override the configuration directory")
	flags.StringArrayVar(&app.opts.repos, "repo", nil, "add a repository URL after the configured ones (repeatable)")
	flags.StringVar(&app.opts.cacheDir, "cache-dir", "", "override the artifact cache directory")

	rootCmd.AddCommand(
		newResolveCommand(app),
		newFetchCommand(app),
		newLoadCommand(app),
		newSolverCommand(app),
		newConfigCommand(app),
		newReposCommand(app),
		newVersionCommand(app),
	)
	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
