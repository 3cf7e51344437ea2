// SPDX-License-Identifier: MPL-2.0

package inject

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/pkg/classpath"
)

type (
	// batchLoader is a host-internal facility recording staged and committed paths.
	batchLoader struct {
		mu        sync.Mutex
		pending   []string
		committed []string
		commits   int
		failStage bool
		reject    string
	}

	// sealedLoader is a batchLoader without a discard facility.
	sealedLoader struct {
		inner *batchLoader
	}

	// pluginHost hides its facility in an unexported interface field.
	pluginHost struct {
		id      string
		library LibraryLoader
	}

	// swapHost keeps its search path in an unexported slot.
	swapHost struct {
		name string
		path atomic.Pointer[classpath.SearchPath]
	}

	// opaqueHost exposes nothing usable.
	opaqueHost struct {
		entries []string
	}
)

func (b *batchLoader) StageLibrary(path string) error {
	if b.failStage || path == b.reject {
		return errors.New("loader sealed")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, path)
	return nil
}

func (b *batchLoader) CommitLibraries() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.committed = append(b.committed, b.pending...)
	b.pending = nil
	b.commits++
	return nil
}

func (b *batchLoader) DiscardLibraries() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
	return nil
}

func (l sealedLoader) StageLibrary(path string) error { return l.inner.StageLibrary(path) }
func (l sealedLoader) CommitLibraries() error         { return l.inner.CommitLibraries() }

func newSwapHost(entries ...string) *swapHost {
	h := &swapHost{name: "swap"}
	h.path.Store(classpath.NewSearchPath(entries...))
	return h
}

func TestChain_ProbePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target any
		opts   []Option
		want   Kind
	}{
		{"host loader wins", &pluginHost{library: &batchLoader{}}, nil, KindHostLoader},
		{"nil facility falls through to nothing", &pluginHost{}, nil, ""},
		{"appendable host", classpath.NewAppendableLoader("a"), nil, KindDirectAppend},
		{"swappable host", newSwapHost(), nil, KindStateReplacement},
		{"reference loader", classpath.NewLoader("l"), nil, KindStateReplacement},
		{"order restricted", classpath.NewAppendableLoader("a"), []Option{WithOrder(KindStateReplacement)}, KindStateReplacement},
		{"opaque host", &opaqueHost{}, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewChain(tt.target, tt.opts...).Probe()
			if tt.want == "" {
				if !errors.Is(err, issue.ErrInjection) {
					t.Fatalf("Probe() = %q, %v; want InjectionError", got, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Probe() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestChain_ProbeMemoizedUnderConcurrency(t *testing.T) {
	t.Parallel()

	host := newSwapHost()
	chain := NewChain(host)

	var wg sync.WaitGroup
	kinds := make([]Kind, 32)
	for i := range kinds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kinds[i], _ = chain.Probe()
		}()
	}
	wg.Wait()

	for _, k := range kinds {
		if k != KindStateReplacement {
			t.Fatalf("divergent probe results: %v", kinds)
		}
	}

	// Later calls return the memoized selection.
	again, err := chain.Probe()
	if err != nil || again != KindStateReplacement {
		t.Errorf("second Probe() = %q, %v", again, err)
	}
}

func TestChain_NoStrategyStagesNothing(t *testing.T) {
	t.Parallel()

	chain := NewChain(&opaqueHost{})
	s, err := chain.Begin()
	if s != nil {
		t.Error("Begin() returned a strategy for an unsupported host")
	}
	var ie *issue.InjectionError
	if !errors.As(err, &ie) {
		t.Fatalf("Begin() error = %v, want *issue.InjectionError", err)
	}
	if _, err2 := chain.Probe(); !errors.Is(err2, issue.ErrInjection) {
		t.Errorf("probe failure was not memoized: %v", err2)
	}
}

func TestStateReplacement_UnionAndIdempotentFlush(t *testing.T) {
	t.Parallel()

	host := newSwapHost("/host/app.jar", "/libs/a.jar")
	before := host.path.Load()
	chain := NewChain(host)

	s, err := chain.Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	for _, p := range []string{"/libs/a.jar", "/libs/b.jar", "/libs/b.jar"} {
		if err := s.AddArtifact(p); err != nil {
			t.Fatalf("AddArtifact() error = %v", err)
		}
	}
	if host.path.Load() != before {
		t.Fatal("staging mutated the host before Flush")
	}

	for range 2 {
		if err := s.Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
	}
	want := []string{"/host/app.jar", "/libs/a.jar", "/libs/b.jar"}
	if got := host.path.Load().Entries(); !slices.Equal(got, want) {
		t.Errorf("search path = %v, want %v", got, want)
	}
	if before.Len() != 2 {
		t.Error("previous search path value was modified in place")
	}
}

func TestStateReplacement_ConcurrentFlushesLoseNothing(t *testing.T) {
	t.Parallel()

	host := newSwapHost()
	chain := NewChain(host)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := chain.Begin()
			if err != nil {
				t.Error(err)
				return
			}
			_ = s.AddArtifact(fmt.Sprintf("/libs/%d.jar", i))
			if err := s.Flush(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := host.path.Load().Len(); got != 16 {
		t.Errorf("search path has %d entries after 16 concurrent flushes, want 16", got)
	}
}

func TestHostLoader_ForwardsOnFlush(t *testing.T) {
	t.Parallel()

	facility := &batchLoader{}
	chain := NewChain(&pluginHost{id: "p", library: facility})
	s, err := chain.Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	_ = s.AddArtifact("/libs/a.jar")
	_ = s.AddArtifact("/libs/b.jar")
	if len(facility.pending) != 0 {
		t.Fatal("facility saw artifacts before Flush")
	}
	for range 2 {
		if err := s.Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
	}
	if facility.commits != 1 || !slices.Equal(facility.committed, []string{"/libs/a.jar", "/libs/b.jar"}) {
		t.Errorf("facility commits=%d committed=%v", facility.commits, facility.committed)
	}
}

func TestHostLoader_StageFailureIsInjectionError(t *testing.T) {
	t.Parallel()

	chain := NewChain(&pluginHost{library: &batchLoader{failStage: true}})
	s, err := chain.Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	_ = s.AddArtifact("/libs/a.jar")
	err = s.Flush()
	var ie *issue.InjectionError
	if !errors.As(err, &ie) || ie.Strategy != string(KindHostLoader) {
		t.Errorf("Flush() error = %v, want host-loader InjectionError", err)
	}
}

func TestHostLoader_FailedBatchNeverReachesLaterCommit(t *testing.T) {
	t.Parallel()

	facility := &batchLoader{reject: "/libs/bad.jar"}
	chain := NewChain(&pluginHost{library: facility})

	first, err := chain.Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	_ = first.AddArtifact("/libs/a-good.jar")
	_ = first.AddArtifact("/libs/bad.jar")
	if err := first.Flush(); !errors.Is(err, issue.ErrInjection) {
		t.Fatalf("Flush() error = %v, want InjectionError", err)
	}

	second, err := chain.Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	_ = second.AddArtifact("/libs/b.jar")
	if err := second.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !slices.Equal(facility.committed, []string{"/libs/b.jar"}) {
		t.Errorf("committed = %v, want only the second batch", facility.committed)
	}
}

func TestHostLoader_PartialBatchWithoutDiscard(t *testing.T) {
	t.Parallel()

	facility := &batchLoader{reject: "/libs/bad.jar"}
	chain := NewChain(&pluginHost{library: sealedLoader{inner: facility}})
	s, err := chain.Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	_ = s.AddArtifact("/libs/a-good.jar")
	_ = s.AddArtifact("/libs/bad.jar")
	err = s.Flush()
	var ie *issue.InjectionError
	if !errors.As(err, &ie) || ie.Coordinate != "/libs/bad.jar" {
		t.Fatalf("Flush() error = %v, want InjectionError naming /libs/bad.jar", err)
	}
	if facility.commits != 0 {
		t.Error("failed batch was committed")
	}
}

func TestDirectAppend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	host := classpath.NewAppendableLoader("host")
	chain := NewChain(host)
	s, err := chain.Begin()
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := s.AddArtifact(dir); err != nil {
		t.Fatalf("AddArtifact() error = %v", err)
	}
	if !host.SearchPath().Contains(dir) {
		t.Error("direct-append should be visible before Flush")
	}
	if err := s.Flush(); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if err := s.AddArtifact(dir + "/missing.jar"); !errors.Is(err, issue.ErrInjection) {
		t.Errorf("AddArtifact(missing) error = %v, want InjectionError", err)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	if k, err := ParseKind("direct-append"); err != nil || k != KindDirectAppend {
		t.Errorf("ParseKind(direct-append) = %q, %v", k, err)
	}
	if _, err := ParseKind("by-magic"); !errors.Is(err, issue.ErrConfiguration) {
		t.Errorf("ParseKind(by-magic) error = %v", err)
	}
}
