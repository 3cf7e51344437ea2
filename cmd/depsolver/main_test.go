// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/invowk/depload/pkg/mavensolver"
)

func TestRootCommand_ServesRequest(t *testing.T) {
	t.Parallel()

	repo := t.TempDir()
	pomPath := filepath.Join(repo, "org", "example", "lib", "1.2.0", "lib-1.2.0.pom")
	if err := os.MkdirAll(filepath.Dir(pomPath), 0o755); err != nil {
		t.Fatal(err)
	}
	pom := `<project><groupId>org.example</groupId><artifactId>lib</artifactId><version>1.2.0</version></project>`
	if err := os.WriteFile(pomPath, []byte(pom), 0o644); err != nil {
		t.Fatal(err)
	}

	req, err := json.Marshal(mavensolver.Request{
		Protocol:     mavensolver.ProtocolVersion,
		GroupID:      "org.example",
		ArtifactID:   "lib",
		Version:      "1.2.0",
		Repositories: []string{"file://" + filepath.ToSlash(repo)},
	})
	if err != nil {
		t.Fatal(err)
	}

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetIn(bytes.NewReader(req))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var resp mavensolver.Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, out.String())
	}
	if resp.Error != "" || len(resp.Artifacts) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), mavensolver.ProtocolVersion) {
		t.Errorf("version output = %q", out.String())
	}
}
