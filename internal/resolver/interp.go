// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/invowk/depload/internal/issue"

	"github.com/charmbracelet/log"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const (
	// SolverImportPath is where the solver sources live inside the GOPATH
	// bundle handed to the interpreter.
	SolverImportPath = "github.com/invowk/depload/pkg/mavensolver"

	// entryPoint is the only symbol resolved from the interpreted solver.
	entryPoint = "FindTransitiveDependencies"
)

var resultFields = []string{"GroupID", "ArtifactID", "Version", "BaseVersion", "Classifier", "Extension", "Repository"}

// InterpSolver evaluates the solver sources in a private yaegi interpreter.
// The interpreter sees the standard library only and its own types; the host
// reaches it solely through the entry point, called reflectively.
type InterpSolver struct {
	gopath string
	logger *log.Logger

	mu    sync.Mutex
	entry reflect.Value
}

// NewInterpSolver returns a solver whose sources are under
// gopath/src/SolverImportPath. Evaluation is deferred to the first Solve.
func NewInterpSolver(gopath string, logger *log.Logger) *InterpSolver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &InterpSolver{gopath: gopath, logger: logger}
}

// Solve implements Solver. Calls are serialized. A cancelled ctx returns
// immediately; the interpreted call finishes in the background. Sources that
// fail to evaluate are a ResolverUnavailableError.
func (s *InterpSolver) Solve(ctx context.Context, req Request) ([]SolvedArtifact, error) {
	s.mu.Lock()
	entry, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return nil, &issue.ResolverUnavailableError{Coordinate: SolverCoordinate(ModeInterp).String(), Cause: err}
	}

	type outcome struct {
		artifacts []SolvedArtifact
		err       error
	}
	done := make(chan outcome, 1)
	go func() {
		defer s.mu.Unlock()
		artifacts, err := call(entry, req)
		done <- outcome{artifacts, err}
	}()

	select {
	case o := <-done:
		return o.artifacts, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load evaluates the solver package once. Callers hold s.mu.
func (s *InterpSolver) load() (reflect.Value, error) {
	if s.entry.IsValid() {
		return s.entry, nil
	}

	i := interp.New(interp.Options{GoPath: s.gopath, Env: []string{}})
	if err := i.Use(stdlib.Symbols); err != nil {
		return reflect.Value{}, fmt.Errorf("loading interpreter symbols: %w", err)
	}
	if _, err := i.Eval(`import solver "` + SolverImportPath + `"`); err != nil {
		return reflect.Value{}, fmt.Errorf("interpreting solver sources: %w", err)
	}
	fn, err := i.Eval("solver." + entryPoint)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("solver must define %s: %w", entryPoint, err)
	}
	if fn.Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("%s is not a function", entryPoint)
	}
	s.logger.Debug("solver sources evaluated", "gopath", s.gopath)
	s.entry = fn
	return fn, nil
}

func call(fn reflect.Value, req Request) (artifacts []SolvedArtifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("solver panicked: %v", r)
		}
	}()

	repos := req.Repositories
	if repos == nil {
		repos = []string{}
	}
	results := fn.Call([]reflect.Value{
		reflect.ValueOf(req.GroupID),
		reflect.ValueOf(req.ArtifactID),
		reflect.ValueOf(req.Version),
		reflect.ValueOf(req.Classifier),
		reflect.ValueOf(repos),
	})
	if len(results) != 2 {
		return nil, fmt.Errorf("%s returned %d values, want 2", entryPoint, len(results))
	}
	if e := results[1]; e.IsValid() && !e.IsNil() {
		if solveErr, ok := e.Interface().(error); ok {
			return nil, solveErr
		}
		return nil, errors.New("solver returned a non-error failure value")
	}
	return readResults(results[0])
}

// readResults copies the interpreter's result slice field by field. The
// interpreted element type is distinct from SolvedArtifact even though the
// fields match.
func readResults(v reflect.Value) ([]SolvedArtifact, error) {
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s result is %s, want a slice", entryPoint, v.Kind())
	}
	out := make([]SolvedArtifact, 0, v.Len())
	for idx := range v.Len() {
		elem := reflect.Indirect(v.Index(idx))
		if elem.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%s result[%d] is %s, want a struct", entryPoint, idx, elem.Kind())
		}
		var fields [7]string
		for n, name := range resultFields {
			f := elem.FieldByName(name)
			if f.IsValid() && f.Kind() == reflect.String {
				fields[n] = f.String()
			}
		}
		out = append(out, SolvedArtifact{
			GroupID:     fields[0],
			ArtifactID:  fields[1],
			Version:     fields[2],
			BaseVersion: fields[3],
			Classifier:  fields[4],
			Extension:   fields[5],
			Repository:  fields[6],
		})
	}
	return out, nil
}
