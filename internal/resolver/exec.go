// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/pkg/mavensolver"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/semver"
)

// maxStderrBytes bounds how much solver stderr is kept for error messages.
const maxStderrBytes = 8 << 10

// passthroughEnv lists the only host variables a solver process inherits.
var passthroughEnv = []string{
	"PATH", "TMPDIR", "TEMP", "TMP", "SYSTEMROOT",
	"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "no_proxy",
	"SSL_CERT_FILE", "SSL_CERT_DIR",
}

// ExecSolver runs the solver as a separate process speaking the mavensolver
// JSON protocol. Each Solve starts a fresh process; nothing is shared with the
// host beyond stdin, stdout and a minimal environment.
type ExecSolver struct {
	path   string
	args   []string
	logger *log.Logger
}

// NewExecSolver returns a solver running the executable at path.
func NewExecSolver(path string, logger *log.Logger, args ...string) *ExecSolver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ExecSolver{path: path, args: args, logger: logger}
}

// Path returns the solver executable.
func (s *ExecSolver) Path() string { return s.path }

// Solve implements Solver.
func (s *ExecSolver) Solve(ctx context.Context, req Request) ([]SolvedArtifact, error) {
	payload, err := json.Marshal(mavensolver.Request{
		Protocol:     mavensolver.ProtocolVersion,
		GroupID:      req.GroupID,
		ArtifactID:   req.ArtifactID,
		Version:      req.Version,
		Classifier:   req.Classifier,
		Repositories: req.Repositories,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding solver request: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.path, s.args...)
	cmd.Env = minimalEnv()
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	stderr := &limitedBuffer{max: maxStderrBytes}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	s.logger.Debug("starting solver", "path", s.path)
	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, s.unavailable(fmt.Errorf("starting solver: %w", err))
	}
	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("solver process failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp mavensolver.Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decoding solver response: %w", err)
	}
	if err := checkProtocol(resp.Protocol); err != nil {
		return nil, s.unavailable(err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return resp.Artifacts, nil
}

// unavailable reports a solver executable that cannot run or does not speak
// our protocol.
func (s *ExecSolver) unavailable(cause error) error {
	return &issue.ResolverUnavailableError{Coordinate: SolverCoordinate(ModeExec).String(), Cause: cause}
}

// checkProtocol accepts any response whose major matches ours.
func checkProtocol(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("solver reported invalid protocol version %q", v)
	}
	if semver.Major(v) != semver.Major(mavensolver.ProtocolVersion) {
		return fmt.Errorf("solver protocol %s is incompatible with %s", v, mavensolver.ProtocolVersion)
	}
	return nil
}

func minimalEnv() []string {
	var env []string
	for _, key := range passthroughEnv {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

// limitedBuffer keeps the first max bytes written and discards the rest.
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		b.buf.Write(p[:min(room, len(p))])
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }
