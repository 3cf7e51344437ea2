// SPDX-License-Identifier: MPL-2.0

package mavensolver

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ProtocolVersion is the semantic version of the request/response exchange
// spoken over the solver's stdin and stdout. Peers must agree on the major.
const ProtocolVersion = "v1.0.0"

type (
	// Request asks for the closure of one root coordinate.
	Request struct {
		Protocol     string   `json:"protocol"`
		GroupID      string   `json:"groupId"`
		ArtifactID   string   `json:"artifactId"`
		Version      string   `json:"version"`
		Classifier   string   `json:"classifier,omitempty"`
		Repositories []string `json:"repositories"`
	}

	// Response carries either Artifacts or Error, never both.
	Response struct {
		Protocol  string   `json:"protocol"`
		Artifacts []Result `json:"artifacts,omitempty"`
		Error     string   `json:"error,omitempty"`
	}
)

// Serve reads one Request from r, solves it with s and writes one Response to
// w. Solver failures are reported inside the Response; the returned error is
// reserved for transport problems.
func Serve(s *Solver, r io.Reader, w io.Writer) error {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	resp := Response{Protocol: ProtocolVersion}
	if major(req.Protocol) != major(ProtocolVersion) {
		resp.Error = fmt.Sprintf("protocol %q is not compatible with %s", req.Protocol, ProtocolVersion)
	} else {
		artifacts, err := s.Solve(req.GroupID, req.ArtifactID, req.Version, req.Classifier, req.Repositories)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Artifacts = artifacts
		}
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

func major(v string) string {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexByte(v, '.'); i >= 0 {
		return v[:i]
	}
	return v
}
