// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/invowk/depload/internal/fetch"
	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/pkg/coordinate"
	"github.com/invowk/depload/pkg/repository"

	"github.com/charmbracelet/log"
)

const (
	// ModeExec runs the solver as a subprocess.
	ModeExec Mode = "exec"
	// ModeInterp evaluates the solver sources in an interpreter.
	ModeInterp Mode = "interp"

	// PinnedRepository serves the solver artifact.
	PinnedRepository = "https://repo.invowk.io/releases/"

	sourcesClassifier = "sources"
	maxSourceBytes    = 4 << 20
)

// PinnedSolver is the solver artifact this build of depload speaks to.
var PinnedSolver = coordinate.MustNew("io.github.invowk", "depload-solver", "1.0.1")

type (
	// Mode selects the solver backend.
	Mode string

	// BootstrapOptions configures Bootstrap.
	BootstrapOptions struct {
		Mode Mode
		// LocalPath skips the download: an executable for ModeExec, a
		// directory of solver sources for ModeInterp.
		LocalPath string
		// Repository overrides PinnedRepository.
		Repository string
		CacheDir   string
		Fetcher    fetch.ArtifactFetcher
		Logger     *log.Logger
	}

	// LazySolver bootstraps its delegate on first use. A failed bootstrap is
	// not remembered; the next Solve bootstraps again.
	LazySolver struct {
		bootstrap func(ctx context.Context) (Solver, error)

		mu     sync.Mutex
		solver Solver
	}
)

// ParseMode validates a configured mode. Empty selects ModeExec.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeExec:
		return ModeExec, nil
	case ModeInterp:
		return ModeInterp, nil
	default:
		return "", &issue.ConfigurationError{Reason: fmt.Sprintf("unknown solver mode %q (want exec or interp)", s)}
	}
}

// SolverCoordinate returns the pinned solver coordinate for mode on this
// platform.
func SolverCoordinate(mode Mode) coordinate.Coordinate {
	if mode == ModeInterp {
		return coordinate.MustNew(PinnedSolver.GroupID(), PinnedSolver.ArtifactID(), PinnedSolver.Version(),
			coordinate.WithClassifier(sourcesClassifier), coordinate.WithExtension("zip"))
	}
	ext := "bin"
	if runtime.GOOS == "windows" {
		ext = "exe"
	}
	return coordinate.MustNew(PinnedSolver.GroupID(), PinnedSolver.ArtifactID(), PinnedSolver.Version(),
		coordinate.WithClassifier(runtime.GOOS+"-"+runtime.GOARCH), coordinate.WithExtension(ext))
}

// Bootstrap makes the solver available, downloading it once into the cache.
// Every failure is a ResolverUnavailableError.
func Bootstrap(ctx context.Context, opts BootstrapOptions) (Solver, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	coord := SolverCoordinate(mode)
	unavailable := func(cause error) error {
		return &issue.ResolverUnavailableError{Coordinate: coord.String(), Cause: cause}
	}

	artifact := opts.LocalPath
	if artifact == "" {
		if opts.Fetcher == nil {
			return nil, unavailable(errors.New("no fetcher configured"))
		}
		repo := opts.Repository
		if repo == "" {
			repo = PinnedRepository
		}
		artifact, err = opts.Fetcher.Fetch(ctx, coord, []repository.Source{{BaseURL: repo}})
		if err != nil {
			return nil, unavailable(err)
		}
	}
	if _, err := os.Stat(artifact); err != nil {
		return nil, unavailable(err)
	}

	switch mode {
	case ModeInterp:
		gopath, err := stageSources(artifact, opts.CacheDir, coord)
		if err != nil {
			return nil, unavailable(err)
		}
		logger.Debug("solver sources staged", "gopath", gopath)
		return NewInterpSolver(gopath, logger), nil
	default:
		if opts.LocalPath == "" {
			if err := os.Chmod(artifact, 0o755); err != nil {
				return nil, unavailable(err)
			}
		}
		return NewExecSolver(artifact, logger), nil
	}
}

// NewLazySolver defers bootstrap until the first Solve.
func NewLazySolver(bootstrap func(ctx context.Context) (Solver, error)) *LazySolver {
	return &LazySolver{bootstrap: bootstrap}
}

// Solve implements Solver.
func (l *LazySolver) Solve(ctx context.Context, req Request) ([]SolvedArtifact, error) {
	l.mu.Lock()
	if l.solver == nil {
		s, err := l.bootstrap(ctx)
		if err != nil {
			l.mu.Unlock()
			return nil, err
		}
		l.solver = s
	}
	s := l.solver
	l.mu.Unlock()

	return s.Solve(ctx, req)
}

// stageSources lays the solver sources out as a GOPATH. artifact is either a
// directory of .go files or a zip of them. A zip is unpacked once per cache
// directory; later starts reuse the tree.
func stageSources(artifact, cacheDir string, coord coordinate.Coordinate) (string, error) {
	info, err := os.Stat(artifact)
	if err != nil {
		return "", err
	}
	if cacheDir == "" {
		cacheDir = filepath.Dir(artifact)
	}
	gopath := filepath.Join(cacheDir, strings.TrimSuffix(coord.FileName(), "."+coord.Extension())+"-gopath")
	pkgDir := filepath.Join(gopath, "src", filepath.FromSlash(SolverImportPath))

	if !info.IsDir() {
		if entries, err := os.ReadDir(pkgDir); err == nil && len(entries) > 0 {
			return gopath, nil
		}
	}
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return "", err
	}

	if info.IsDir() {
		return gopath, copySourceDir(artifact, pkgDir)
	}
	return gopath, unzipSources(artifact, pkgDir)
}

func isSolverSource(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go")
}

func copySourceDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	copied := 0
	for _, e := range entries {
		if e.IsDir() || !isSolverSource(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644); err != nil {
			return err
		}
		copied++
	}
	if copied == 0 {
		return fmt.Errorf("no Go sources in %s", src)
	}
	return nil
}

// unzipSources extracts the .go files of the archive, flattened by base name.
func unzipSources(archive, dst string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening solver sources: %w", err)
	}
	defer func() { _ = zr.Close() }() // read-only

	extracted := 0
	for _, f := range zr.File {
		name := path.Base(f.Name)
		if f.FileInfo().IsDir() || !isSolverSource(name) {
			continue
		}
		if err := extractFile(f, filepath.Join(dst, name)); err != nil {
			return err
		}
		extracted++
	}
	if extracted == 0 {
		return fmt.Errorf("no Go sources in %s", archive)
	}
	return nil
}

func extractFile(f *zip.File, dest string) (err error) {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if _, err := io.Copy(out, io.LimitReader(rc, maxSourceBytes)); err != nil {
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	return nil
}
