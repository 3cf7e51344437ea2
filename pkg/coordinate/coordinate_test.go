// SPDX-License-Identifier: MPL-2.0

package coordinate

import (
	"errors"
	"slices"
	"testing"

	"github.com/invowk/depload/internal/issue"
)

func TestNew_RequiredFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                     string
		group, artifact, version string
		wantErr                  bool
	}{
		{"complete", "org.example", "lib", "1.2.0", false},
		{"missing group", "", "lib", "1.2.0", true},
		{"missing artifact", "org.example", "", "1.2.0", true},
		{"missing version", "org.example", "lib", " ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.group, tt.artifact, tt.version)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, issue.ErrConfiguration) {
				t.Errorf("New() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in             string
		wantString     string
		wantClassifier string
		wantErr        bool
	}{
		{"org.example:lib:1.2.0", "org.example:lib:1.2.0", "", false},
		{"org.example:lib:1.2.0:sources", "org.example:lib:1.2.0:sources", "sources", false},
		{" org.example:lib:1.2.0 ", "org.example:lib:1.2.0", "", false},
		{"org.example:lib", "", "", true},
		{"a:b:c:d:e", "", "", true},
		{"org.example::1.0", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			c, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := c.String(); got != tt.wantString {
				t.Errorf("String() = %q, want %q", got, tt.wantString)
			}
			if got := c.Classifier(); got != tt.wantClassifier {
				t.Errorf("Classifier() = %q, want %q", got, tt.wantClassifier)
			}
		})
	}
}

func TestSlotEquality(t *testing.T) {
	t.Parallel()

	a := MustNew("org.example", "lib", "1.2.0")
	b := MustNew("org.example", "lib", "2.0.0", WithClassifier("sources"))
	c := MustNew("org.example", "other", "1.2.0")

	if !a.SameSlot(b) {
		t.Error("different versions of the same group/artifact should share a slot")
	}
	if a.SameSlot(c) {
		t.Error("different artifacts should not share a slot")
	}
	if a.Slot().String() != "org.example:lib" {
		t.Errorf("Slot().String() = %q", a.Slot().String())
	}
}

func TestImmutability(t *testing.T) {
	t.Parallel()

	repos := []string{"https://r1/", "https://r2/"}
	c := MustNew("org.example", "lib", "1.2.0", WithRepositories(repos...))
	repos[0] = "mutated"

	got := c.Repositories()
	if got[0] != "https://r1/" {
		t.Errorf("constructor input leaked into coordinate: %v", got)
	}
	got[1] = "mutated"
	if c.Repositories()[1] != "https://r2/" {
		t.Error("accessor result leaked into coordinate")
	}
}

func TestLayout(t *testing.T) {
	t.Parallel()

	snap := MustNew("com.example.tools", "kit", "1.0-20240101.120000-3",
		WithBaseVersion("1.0-SNAPSHOT"), WithClassifier("all"))

	if !snap.IsSnapshot() {
		t.Error("IsSnapshot() = false for a -SNAPSHOT base version")
	}
	if got, want := snap.RepositoryPath(), "com/example/tools/kit/1.0-SNAPSHOT/kit-1.0-20240101.120000-3-all.jar"; got != want {
		t.Errorf("RepositoryPath() = %q, want %q", got, want)
	}
	if got, want := snap.PomPath(), "com/example/tools/kit/1.0-SNAPSHOT/kit-1.0-20240101.120000-3.pom"; got != want {
		t.Errorf("PomPath() = %q, want %q", got, want)
	}

	rel := MustNew("org.example", "lib", "1.2.0", WithExtension(".zip"))
	if got, want := rel.FileName(), "org.example.lib-1.2.0.zip"; got != want {
		t.Errorf("FileName() = %q, want %q", got, want)
	}
	if rel.IsSnapshot() {
		t.Error("IsSnapshot() = true for a release")
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	coords := []Coordinate{
		MustNew("org.b", "x", "1"),
		MustNew("org.a", "y", "2"),
		MustNew("org.a", "y", "1"),
		MustNew("org.a", "x", "9"),
	}
	slices.SortFunc(coords, Compare)

	var got []string
	for _, c := range coords {
		got = append(got, c.String())
	}
	want := []string{"org.a:x:9", "org.a:y:1", "org.a:y:2", "org.b:x:1"}
	if !slices.Equal(got, want) {
		t.Errorf("sorted = %v, want %v", got, want)
	}
}

func TestSet_FirstWins(t *testing.T) {
	t.Parallel()

	s := NewSet(
		MustNew("org.other", "dep", "2.0.0"),
		MustNew("org.third", "dep2", "1.0.0"),
	)
	if s.Add(MustNew("org.other", "dep", "3.0.0")) {
		t.Error("Add() of an occupied slot should return false")
	}
	got, ok := s.Get(Slot{GroupID: "org.other", ArtifactID: "dep"})
	if !ok || got.Version() != "2.0.0" {
		t.Errorf("Get() = %v, %v; want first-added 2.0.0", got, ok)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	items := s.Items()
	if items[0].ArtifactID() != "dep" || items[1].ArtifactID() != "dep2" {
		t.Errorf("Items() lost insertion order: %v", items)
	}

	var nilSet *Set
	if nilSet.Contains(got) || nilSet.Len() != 0 {
		t.Error("nil set should be empty")
	}
}
