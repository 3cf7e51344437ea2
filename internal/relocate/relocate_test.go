// SPDX-License-Identifier: MPL-2.0

package relocate

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/invowk/depload/internal/issue"
)

type (
	countingRemapper struct {
		calls atomic.Int32
		err   error
	}

	// shadedHost keeps its facility behind an unexported field.
	shadedHost struct {
		name     string
		remapper Remapper
	}
)

func (c *countingRemapper) RemapArtifact(path string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return path + ".remapped", nil
}

func TestProbe(t *testing.T) {
	t.Parallel()

	direct := &countingRemapper{}
	tests := []struct {
		name   string
		target any
		want   string
	}{
		{"target is facility", direct, "a.jar.remapped"},
		{"internal facility", &shadedHost{remapper: &countingRemapper{}}, "a.jar.remapped"},
		{"nil facility", &shadedHost{}, "a.jar"},
		{"no facility", struct{ n int }{}, "a.jar"},
		{"nil target", nil, "a.jar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Probe(tt.target, nil)("a.jar")
			if err != nil || got != tt.want {
				t.Errorf("hook(a.jar) = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestProbe_FacilityErrorIsReturned(t *testing.T) {
	t.Parallel()

	boom := errors.New("remap failed")
	hook := Probe(&countingRemapper{err: boom}, nil)
	if _, err := hook("a.jar"); !errors.Is(err, boom) {
		t.Errorf("hook() error = %v, want %v", err, boom)
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	upper := func(p string) (string, error) { return strings.ToUpper(p), nil }
	suffix := func(p string) (string, error) { return p + "-x", nil }
	fail := func(string) (string, error) { return "", errors.New("nope") }

	if got, _ := Chain()("a"); got != "a" {
		t.Errorf("empty Chain = %q", got)
	}
	if got, _ := Chain(upper, nil, suffix)("a"); got != "A-x" {
		t.Errorf("Chain(upper, suffix) = %q", got)
	}
	if _, err := Chain(upper, fail, suffix)("a"); err == nil {
		t.Error("Chain should stop at the first error")
	}
}

func TestNewArchiveRelocator_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule Rule
	}{
		{"empty from", Rule{To: "a.b"}},
		{"empty segment", Rule{From: "com..gson", To: "a.b"}},
		{"slashes", Rule{From: "com/google", To: "a.b"}},
		{"bad glob", Rule{From: "com.google", To: "a.b", Excludes: []string{"com/[x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewArchiveRelocator(nil, tt.rule); !errors.Is(err, issue.ErrConfiguration) {
				t.Errorf("NewArchiveRelocator() error = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestArchiveRelocator_RemapArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := writeArchive(t, filepath.Join(dir, "gson.jar"), map[string]string{
		"com/google/gson/Gson.class":                "gson",
		"com/google/gson/internal/Excluder.class":   "excluder",
		"org/other/Thing.class":                     "thing",
		"META-INF/services/com.google.gson.Factory": "# providers\ncom.google.gson.internal.Impl\n  com.google.gson.Default # default\n",
		"META-INF/services/org.other.Plugin":        "org.other.Impl\n",
		"META-INF/MANIFEST.MF":                      "Manifest-Version: 1.0\n",
	})

	rel, err := NewArchiveRelocator(nil, Rule{
		From:     "com.google.gson",
		To:       "io.host.libs.gson",
		Excludes: []string{"com/google/gson/internal/**"},
	})
	if err != nil {
		t.Fatalf("NewArchiveRelocator() error = %v", err)
	}

	out, err := rel.RemapArtifact(in)
	if err != nil {
		t.Fatalf("RemapArtifact() error = %v", err)
	}
	if out == in || filepath.Dir(out) != dir {
		t.Fatalf("RemapArtifact() = %q, want a sibling of %q", out, in)
	}

	got := readArchive(t, out)
	wantNames := []string{
		"META-INF/MANIFEST.MF",
		"META-INF/services/io.host.libs.gson.Factory",
		"META-INF/services/org.other.Plugin",
		"com/google/gson/internal/Excluder.class",
		"io/host/libs/gson/Gson.class",
		"org/other/Thing.class",
	}
	var names []string
	for n := range got {
		names = append(names, n)
	}
	slices.Sort(names)
	if !slices.Equal(names, wantNames) {
		t.Fatalf("entries = %v, want %v", names, wantNames)
	}
	if got["io/host/libs/gson/Gson.class"] != "gson" {
		t.Error("renamed entry lost its content")
	}
	wantService := "# providers\ncom.google.gson.internal.Impl\n  io.host.libs.gson.Default # default\n"
	if s := got["META-INF/services/io.host.libs.gson.Factory"]; s != wantService {
		t.Errorf("service descriptor = %q, want %q", s, wantService)
	}

	// A second call reuses the cached output.
	info, _ := os.Stat(out)
	again, err := rel.RemapArtifact(in)
	if err != nil || again != out {
		t.Fatalf("second RemapArtifact() = %q, %v", again, err)
	}
	if info2, _ := os.Stat(out); !info2.ModTime().Equal(info.ModTime()) {
		t.Error("cached output was rewritten")
	}
}

func TestArchiveRelocator_LongServiceLine(t *testing.T) {
	t.Parallel()

	comment := strings.Repeat("x", 100<<10)
	dir := t.TempDir()
	in := writeArchive(t, filepath.Join(dir, "long.jar"), map[string]string{
		"META-INF/services/org.other.Plugin": "com.google.gson.Impl # " + comment + "\norg.other.Impl\n",
	})
	rel, err := NewArchiveRelocator(nil, Rule{From: "com.google.gson", To: "io.host.gson"})
	if err != nil {
		t.Fatal(err)
	}

	out, err := rel.RemapArtifact(in)
	if err != nil {
		t.Fatalf("RemapArtifact() error = %v", err)
	}
	want := "io.host.gson.Impl # " + comment + "\norg.other.Impl\n"
	if got := readArchive(t, out)["META-INF/services/org.other.Plugin"]; got != want {
		t.Errorf("service descriptor has %d bytes, want %d", len(got), len(want))
	}
}

func TestArchiveRelocator_Untouched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := writeArchive(t, filepath.Join(dir, "plain.jar"), map[string]string{
		"org/other/Thing.class": "thing",
	})
	rel, err := NewArchiveRelocator(nil, Rule{From: "com.google.gson", To: "io.host.gson"})
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{in, dir, filepath.Join(dir, "notes.txt")} {
		got, err := rel.RemapArtifact(p)
		if err != nil || got != p {
			t.Errorf("RemapArtifact(%s) = %q, %v; want unchanged", p, got, err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("untouched archive produced extra files: %d entries", len(entries))
	}
}

func writeArchive(t *testing.T, path string, files map[string]string) string {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = zr.Close() }()

	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		data, err := readEntry(f)
		if err != nil {
			t.Fatal(err)
		}
		out[f.Name] = string(data)
	}
	return out
}
