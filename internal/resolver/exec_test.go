// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/pkg/coordinate"
	"github.com/invowk/depload/pkg/mavensolver"
	"github.com/invowk/depload/pkg/repository"
)

// helperArg makes the test binary act as a solver process. The solver
// environment is stripped, so the switch travels in argv.
const helperArg = "depload-helper-solver"

func TestHelperSolverProcess(t *testing.T) {
	idx := slices.Index(os.Args, helperArg)
	if idx < 0 {
		return
	}
	mode := ""
	if idx+1 < len(os.Args) {
		mode = os.Args[idx+1]
	}

	var req mavensolver.Request
	_ = json.NewDecoder(os.Stdin).Decode(&req)

	resp := mavensolver.Response{Protocol: mavensolver.ProtocolVersion}
	switch mode {
	case "fail":
		resp.Error = "pom not found for " + req.GroupID + ":" + req.ArtifactID
	case "protocol":
		resp.Protocol = "v2.0.0"
	case "crash":
		_, _ = io.WriteString(os.Stderr, "solver exploded")
		os.Exit(3)
	case "env":
		resp.Artifacts = []mavensolver.Result{{GroupID: "env", ArtifactID: os.Getenv("DEPLOAD_SECRET"), Version: "1"}}
	default:
		resp.Artifacts = []mavensolver.Result{
			{GroupID: req.GroupID, ArtifactID: req.ArtifactID, Version: req.Version, BaseVersion: req.Version, Repository: req.Repositories[0]},
			{GroupID: "org.other", ArtifactID: "dep", Version: "2.0.0", BaseVersion: "2.0.0", Repository: req.Repositories[0]},
		}
	}
	_ = json.NewEncoder(os.Stdout).Encode(resp)
	os.Exit(0)
}

func helperSolver(mode string) *ExecSolver {
	return NewExecSolver(os.Args[0], nil, "-test.run=^TestHelperSolverProcess$", "--", helperArg, mode)
}

func TestExecSolver_Solve(t *testing.T) {
	t.Parallel()

	req := Request{GroupID: "org.example", ArtifactID: "lib", Version: "1.2.0", Repositories: []string{r1}}
	got, err := helperSolver("ok").Solve(context.Background(), req)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if len(got) != 2 || got[1].ArtifactID != "dep" || got[1].Repository != r1 {
		t.Errorf("Solve() = %+v", got)
	}
}

func TestExecSolver_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode            string
		wantMsg         string
		wantUnavailable bool
	}{
		{"fail", "pom not found", false},
		{"protocol", "incompatible", true},
		{"crash", "solver exploded", false},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			t.Parallel()
			req := Request{GroupID: "g", ArtifactID: "a", Version: "1", Repositories: []string{r1}}
			_, err := helperSolver(tt.mode).Solve(context.Background(), req)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Solve() error = %v, want containing %q", err, tt.wantMsg)
			}
			if got := errors.Is(err, issue.ErrResolverUnavailable); got != tt.wantUnavailable {
				t.Errorf("Solve() unavailable = %v, want %v (err %v)", got, tt.wantUnavailable, err)
			}
		})
	}
}

func TestExecSolver_CorruptBinaryIsUnavailable(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("executable detection differs on windows")
	}

	dir := t.TempDir()
	garbage := filepath.Join(dir, "solver.bin")
	if err := os.WriteFile(garbage, []byte("\x00\x01 not a program"), 0o755); err != nil {
		t.Fatal(err)
	}

	reg := repository.NewRegistry(repository.Source{BaseURL: r1})
	for name, path := range map[string]string{
		"garbage": garbage,
		"missing": filepath.Join(dir, "absent.bin"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := New(reg, NewExecSolver(path, nil)).Transitive(context.Background(), coordinate.MustNew("g", "a", "1"))
			if !errors.Is(err, issue.ErrResolverUnavailable) {
				t.Fatalf("Transitive() error = %v, want ResolverUnavailableError", err)
			}
			if errors.Is(err, issue.ErrResolution) {
				t.Errorf("Transitive() error = %v is also a ResolutionError", err)
			}
		})
	}
}

func TestExecSolver_MinimalEnvironment(t *testing.T) {
	t.Setenv("DEPLOAD_SECRET", "leaked")

	req := Request{GroupID: "g", ArtifactID: "a", Version: "1", Repositories: []string{r1}}
	got, err := helperSolver("env").Solve(context.Background(), req)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if len(got) != 1 || got[0].ArtifactID != "" {
		t.Errorf("solver process inherited host environment: %+v", got)
	}
}

func TestCheckProtocol(t *testing.T) {
	t.Parallel()

	for v, ok := range map[string]bool{
		"v1.0.0": true,
		"v1.9.3": true,
		"v2.0.0": false,
		"1.0.0":  false,
		"":       false,
	} {
		if err := checkProtocol(v); (err == nil) != ok {
			t.Errorf("checkProtocol(%q) = %v, want ok=%v", v, err, ok)
		}
	}
}
