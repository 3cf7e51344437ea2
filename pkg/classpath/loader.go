// SPDX-License-Identifier: MPL-2.0

package classpath

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrNotFound is returned by Open when no entry of the search path holds the
// named resource.
var ErrNotFound = errors.New("resource not found on search path")

type (
	// Loader is a reference host that resolves resources against a search path
	// of directories and zip archives. Its search path lives in an internal
	// slot and is never mutated in place; readers observe either the old or
	// the new path.
	Loader struct {
		name       string
		searchPath atomic.Pointer[SearchPath]
	}

	// AppendableLoader is a Loader whose search path can be extended in place
	// through AppendPath.
	AppendableLoader struct {
		Loader
		mu sync.Mutex
	}

	resource struct {
		io.Reader
		closers []io.Closer
	}
)

// NewLoader returns a host loader seeded with entries.
func NewLoader(name string, entries ...string) *Loader {
	l := &Loader{name: name}
	l.searchPath.Store(NewSearchPath(entries...))
	return l
}

// NewAppendableLoader returns a loader that accepts AppendPath.
func NewAppendableLoader(name string, entries ...string) *AppendableLoader {
	l := &AppendableLoader{Loader: Loader{name: name}}
	l.searchPath.Store(NewSearchPath(entries...))
	return l
}

// Name returns the loader's diagnostic name.
func (l *Loader) Name() string { return l.name }

// SearchPath returns the current search path snapshot.
func (l *Loader) SearchPath() *SearchPath {
	if sp := l.searchPath.Load(); sp != nil {
		return sp
	}
	return NewSearchPath()
}

// Open returns the first resource named name found on the search path.
// name uses forward slashes, as inside archives.
func (l *Loader) Open(name string) (io.ReadCloser, error) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	for _, entry := range l.SearchPath().Entries() {
		rc, err := openIn(entry, name)
		if err == nil {
			return rc, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s in %s: %w", name, entry, err)
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
}

// Has reports whether name is reachable.
func (l *Loader) Has(name string) bool {
	rc, err := l.Open(name)
	if err != nil {
		return false
	}
	_ = rc.Close()
	return true
}

// AppendPath adds entry to the end of the search path.
func (l *AppendableLoader) AppendPath(entry string) error {
	info, err := os.Stat(entry)
	if err != nil {
		return err
	}
	if !info.IsDir() && !isArchive(entry) {
		return fmt.Errorf("%s: not a directory or archive", entry)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searchPath.Store(l.SearchPath().Union(entry))
	return nil
}

func openIn(entry, name string) (io.ReadCloser, error) {
	info, err := os.Stat(entry)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return os.Open(filepath.Join(entry, filepath.FromSlash(name)))
	}
	if !isArchive(entry) {
		return nil, fs.ErrNotExist
	}

	zr, err := zip.OpenReader(entry)
	if err != nil {
		return nil, err
	}
	f, err := zr.Open(name)
	if err != nil {
		_ = zr.Close()
		return nil, err
	}
	return &resource{Reader: f, closers: []io.Closer{f, zr}}, nil
}

func isArchive(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".jar", ".zip":
		return true
	default:
		return false
	}
}

func (r *resource) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
