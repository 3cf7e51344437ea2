// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/invowk/depload/internal/issue"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "depload.cue")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `
name: "reporting-plugin"
repositories: [{url: "https://repo.example.test/maven", priority: 1}]
dependencies: ["org.apache.commons:commons-csv:1.10.0"]
provided: ["org.slf4j:slf4j-api:2.0.9"]
relocations: [{from: "org.apache.commons.csv", to: "io.host.libs.csv"}]
`)
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if m.Name != "reporting-plugin" || len(m.Dependencies) != 1 || len(m.Relocations) != 1 {
		t.Errorf("manifest = %+v", m)
	}
	if got := m.String(); got != "reporting-plugin (1 dependencies)" {
		t.Errorf("String() = %q", got)
	}
}

func TestLoadManifest_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty dependencies", `name: "x"
dependencies: []`, "dependencies"},
		{"bad coordinate", `name: "x"
dependencies: ["org.example:lib"]`, "dependencies[0]"},
		{"missing name", `dependencies: ["a:b:1"]`, "name"},
		{"bad relocation", `name: "x"
dependencies: ["a:b:1"]
relocations: [{from: "com.example", to: "not a package"}]`, "relocations[0].to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadManifest(writeManifest(t, tt.body))
			if !errors.Is(err, issue.ErrConfiguration) {
				t.Fatalf("LoadManifest() error = %v, want configuration error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.cue"))
	if !errors.Is(err, issue.ErrConfiguration) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadManifest() error = %v", err)
	}
}

func TestManifest_Apply(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Dependencies = []string{"org.example:old:1.0.0"}
	cfg.Provided = []string{"org.slf4j:slf4j-api:2.0.9"}
	cfg.Relocations = []RelocationRule{{From: "a.b", To: "c.d"}}

	m := &Manifest{
		Name: "plugin",
		Repositories: []RepositoryEntry{
			{URL: cfg.Repositories[0].URL},
			{URL: "https://repo.example.test/maven/", Priority: 3},
		},
		Dependencies: []string{"org.example:new:2.0.0"},
		Provided:     []string{"org.slf4j:slf4j-api:2.0.9", "com.google.guava:guava:33.0.0-jre"},
		Relocations:  []RelocationRule{{From: "e.f", To: "g.h"}},
	}

	out := m.Apply(cfg)
	if len(out.Repositories) != 2 || out.Repositories[1].Priority != 3 {
		t.Errorf("repositories = %v", out.Repositories)
	}
	if !slices.Equal(out.Dependencies, []string{"org.example:new:2.0.0"}) {
		t.Errorf("dependencies = %v", out.Dependencies)
	}
	if !slices.Equal(out.Provided, []string{"org.slf4j:slf4j-api:2.0.9", "com.google.guava:guava:33.0.0-jre"}) {
		t.Errorf("provided = %v", out.Provided)
	}
	if len(out.Relocations) != 2 {
		t.Errorf("relocations = %v", out.Relocations)
	}
	// The input is left alone.
	if len(cfg.Repositories) != 1 || cfg.Dependencies[0] != "org.example:old:1.0.0" || len(cfg.Relocations) != 1 {
		t.Errorf("Apply mutated its input: %+v", cfg)
	}
}
