// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/invowk/depload/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `depload config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage depload configuration",
		Long: `Manage depload configuration.

Configuration is stored in:
  - Linux: ~/.config/depload/config.cue
  - macOS: ~/Library/Application Support/depload/config.cue
  - Windows: %APPDATA%\depload\config.cue

Every value can be overridden with a DEPLOAD_* environment variable,
e.g. DEPLOAD_SOLVER_MODE=exec or DEPLOAD_FETCH_PARALLELISM=8.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return showConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return app.fail(fmt.Errorf("failed to create config: %w", err))
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprint(app.stdout, config.GenerateCUE(app.cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(app *App) error {
	cfg := app.cfg
	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if src := app.Config.Source(); src != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), src)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s:\n", keyStyle.Render("repositories"))
	for _, r := range cfg.Repositories {
		fmt.Fprintf(w, "  - %s %s\n", valueStyle.Render(r.URL), SubtitleStyle.Render(fmt.Sprintf("(priority %d)", r.Priority)))
	}
	printList(w, "dependencies", cfg.Dependencies)
	printList(w, "provided", cfg.Provided)

	fmt.Fprintf(w, "%s:\n", keyStyle.Render("relocations"))
	if len(cfg.Relocations) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, r := range cfg.Relocations {
		line := fmt.Sprintf("  - %s -> %s", r.From, r.To)
		if len(r.Excludes) > 0 {
			line += " " + SubtitleStyle.Render("excluding "+strings.Join(r.Excludes, ", "))
		}
		fmt.Fprintln(w, line)
	}

	cacheDir, err := cfg.ResolvedCacheDir()
	if err != nil {
		cacheDir = "(unavailable: " + err.Error() + ")"
	}
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("cache_dir"), valueStyle.Render(cacheDir))

	fmt.Fprintf(w, "%s:\n", keyStyle.Render("solver"))
	fmt.Fprintf(w, "  mode: %s\n", valueStyle.Render(string(cfg.Solver.Mode)))
	if cfg.Solver.Path != "" {
		fmt.Fprintf(w, "  path: %s\n", valueStyle.Render(cfg.Solver.Path))
	}
	if cfg.Solver.Repository != "" {
		fmt.Fprintf(w, "  repository: %s\n", valueStyle.Render(cfg.Solver.Repository))
	}

	strategies := "(default order)"
	if len(cfg.Injection.Strategies) > 0 {
		strategies = strings.Join(cfg.Injection.Strategies, ", ")
	}
	fmt.Fprintf(w, "%s:\n  strategies: %s\n", keyStyle.Render("injection"), valueStyle.Render(strategies))

	fmt.Fprintf(w, "%s:\n", keyStyle.Render("fetch"))
	fmt.Fprintf(w, "  parallelism: %s\n", valueStyle.Render(fmt.Sprint(cfg.Fetch.Parallelism)))
	fmt.Fprintf(w, "  verify_checksums: %s\n", valueStyle.Render(fmt.Sprint(cfg.Fetch.VerifyChecksums)))

	fmt.Fprintf(w, "%s:\n  level: %s\n", keyStyle.Render("log"), valueStyle.Render(string(cfg.Log.Level)))
	return nil
}

func printList(w io.Writer, name string, items []string) {
	fmt.Fprintf(w, "%s:\n", CmdStyle.Render(name))
	if len(items) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", SuccessStyle.Render(it))
	}
}
