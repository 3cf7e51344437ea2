// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/invowk/depload/internal/config"
	"github.com/invowk/depload/internal/inject"
	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/internal/loader"
	"github.com/invowk/depload/internal/watch"
	"github.com/invowk/depload/pkg/classpath"
	"github.com/invowk/depload/pkg/coordinate"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const (
	hostLoader     = "loader"
	hostAppendable = "appendable"
)

type searchPathHost interface {
	SearchPath() *classpath.SearchPath
}

func newLoadCommand(app *App) *cobra.Command {
	var (
		manifestPath string
		hostKind     string
		entries      []string
		metricsFile  string
		watchMode    bool
		debounce     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "load [coordinate]...",
		Short: "Resolve, download and inject dependencies into a host loader",
		Long: `Resolve each root, download it with its closure and inject the batch into
an in-process host loader, then print the host's search path.

Roots come from the arguments, else from --manifest, else from the
configured dependencies. Each root is loaded independently: one failing
root does not stop the others.

With --watch the command keeps running after the first load and loads the
manifest's new dependencies into the same host whenever the file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watchMode && manifestPath == "" {
				return app.fail(&issue.ConfigurationError{Reason: "--watch requires --manifest"})
			}
			base := app.cfg
			if manifestPath != "" {
				m, err := config.LoadManifest(manifestPath)
				if err != nil {
					return app.fail(err)
				}
				app.logger.Info("manifest loaded", "manifest", m.String())
				app.cfg = m.Apply(app.cfg)
			}

			roots, err := loadRoots(app.cfg, args)
			if err != nil {
				return app.fail(err)
			}
			if len(roots) == 0 {
				return app.fail(&issue.ConfigurationError{Reason: "nothing to load: give coordinates, --manifest or configure dependencies"})
			}

			var host searchPathHost
			switch hostKind {
			case hostLoader:
				host = classpath.NewLoader("depload", entries...)
			case hostAppendable:
				host = classpath.NewAppendableLoader("depload", entries...)
			default:
				return app.fail(&issue.ConfigurationError{Reason: fmt.Sprintf("unknown host %q (want %s or %s)", hostKind, hostLoader, hostAppendable)})
			}

			reg, err := app.registry()
			if err != nil {
				return app.fail(err)
			}
			f, err := app.fetcher()
			if err != nil {
				return app.fail(err)
			}
			res, err := app.resolver(reg, f)
			if err != nil {
				return app.fail(err)
			}
			order, err := app.injectionOrder()
			if err != nil {
				return app.fail(err)
			}
			hook, err := app.relocation(host)
			if err != nil {
				return app.fail(err)
			}

			promReg := prometheus.NewRegistry()
			chain := inject.NewChain(host, inject.WithOrder(order...), inject.WithLogger(app.logger.WithPrefix("inject")))
			mgr, err := loader.New(reg, res, f, chain,
				loader.WithRelocation(hook),
				loader.WithParallelism(app.cfg.Fetch.Parallelism),
				loader.WithMetrics(loader.NewMetrics(promReg)),
				loader.WithLogger(app.logger.WithPrefix("loader")),
			)
			if err != nil {
				return app.fail(err)
			}

			reports, loadErr := mgr.Load(cmd.Context(), roots...)
			printReports(app, reports)

			fmt.Fprintln(app.stdout)
			fmt.Fprintln(app.stdout, TitleStyle.Render("Search path"))
			for _, e := range host.SearchPath().Entries() {
				fmt.Fprintf(app.stdout, "  %s\n", e)
			}

			if metricsFile != "" {
				if err := prometheus.WriteToTextfile(metricsFile, promReg); err != nil {
					return app.fail(fmt.Errorf("write metrics: %w", err))
				}
			}
			if !watchMode {
				if loadErr != nil {
					return app.fail(issue.ForError("load dependencies", manifestPath, loadErr))
				}
				return nil
			}
			if loadErr != nil {
				app.logger.Error("initial load incomplete", "err", loadErr)
			}
			return app.fail(watchManifest(cmd.Context(), app, manifestPath, debounce, base, mgr))
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "manifest file naming the roots to load")
	cmd.Flags().StringVar(&hostKind, "host", hostLoader, "reference host: loader (swappable search path) or appendable")
	cmd.Flags().StringArrayVar(&entries, "entry", nil, "initial search path entry of the host (repeatable)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write load metrics in Prometheus text format to this file")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "keep running and load new manifest dependencies as the manifest changes")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before reloading a changed manifest (default 500ms)")
	return cmd
}

// watchManifest reloads the manifest on every change and loads its
// dependencies into the same host. Roots already injected are skipped by
// the manager, so only new dependencies reach the host. Repository and
// relocation edits take effect on the next start.
func watchManifest(ctx context.Context, app *App, path string, debounce time.Duration, base *config.Config, mgr *loader.Manager) error {
	current := app.cfg
	w, err := watch.New(watch.Config{
		Files:    []string{path},
		Debounce: debounce,
		Logger:   app.logger.WithPrefix("watch"),
		OnChange: func(ctx context.Context, _ []string) error {
			m, err := config.LoadManifest(path)
			if err != nil {
				return err
			}
			next := m.Apply(base)
			if !slices.Equal(repoURLs(next), repoURLs(current)) || len(next.Relocations) != len(current.Relocations) {
				app.logger.Warn("repository or relocation changes need a restart", "manifest", m.String())
			}
			current = next

			roots, err := next.Roots()
			if err != nil {
				return err
			}
			reports, err := mgr.Load(ctx, roots...)
			printReports(app, reports)
			return err
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "\n%s %s\n", SubtitleStyle.Render("Watching"), path)
	return w.Run(ctx)
}

func repoURLs(cfg *config.Config) []string {
	urls := make([]string, len(cfg.Repositories))
	for i, r := range cfg.Repositories {
		urls[i] = r.URL
	}
	return urls
}

func loadRoots(cfg *config.Config, args []string) ([]coordinate.Coordinate, error) {
	if len(args) == 0 {
		return cfg.Roots()
	}
	roots := make([]coordinate.Coordinate, len(args))
	for i, arg := range args {
		c, err := coordinate.Parse(arg)
		if err != nil {
			return nil, err
		}
		roots[i] = c
	}
	return roots, nil
}

func printReports(app *App, reports []loader.Report) {
	for _, r := range reports {
		via := "nothing new"
		if r.Strategy != "" {
			via = "via " + string(r.Strategy)
		}
		fmt.Fprintf(app.stdout, "%s %s %s\n",
			SuccessStyle.Render("✓"), CmdStyle.Render(r.Root.String()), SubtitleStyle.Render(via))
		for _, a := range r.Artifacts {
			fmt.Fprintf(app.stdout, "    %s\n", a.Coordinate.String())
		}
		for _, s := range r.Skipped {
			fmt.Fprintf(app.stdout, "    %s %s\n", s.String(), SubtitleStyle.Render("(already loaded)"))
		}
	}
}
