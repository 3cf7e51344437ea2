// SPDX-License-Identifier: MPL-2.0

// Package fetch downloads artifacts into the local cache. Repositories are
// walked in order and the first one that serves the artifact wins; there are
// no retries beyond that walk.
package fetch

import (
	"context"
	"crypto/sha1" //nolint:gosec // Maven SHA-1 sidecars
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/invowk/depload/internal/issue"
	"github.com/invowk/depload/pkg/coordinate"
	"github.com/invowk/depload/pkg/repository"

	"github.com/charmbracelet/log"
)

const (
	defaultUserAgent = "depload"
	defaultTimeout   = 5 * time.Minute
	maxSidecarBytes  = 1 << 10
)

// errNotFound marks a repository that does not publish the requested file.
var errNotFound = errors.New("not found in repository")

type (
	// ArtifactFetcher downloads the file of a coordinate and returns its local
	// path. It is the only component that touches the network for artifacts.
	ArtifactFetcher interface {
		Fetch(ctx context.Context, c coordinate.Coordinate, sources []repository.Source) (string, error)
	}

	// HTTPFetcher fetches over http(s) and file URLs into a cache directory.
	HTTPFetcher struct {
		cacheDir  string
		client    *http.Client
		userAgent string
		logger    *log.Logger
		verify    bool
	}

	// Option configures an HTTPFetcher.
	Option func(*HTTPFetcher)
)

// WithHTTPClient sets the client used for http(s) repositories.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) { f.userAgent = ua }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(f *HTTPFetcher) { f.logger = l }
}

// WithChecksums toggles verification of .sha1 sidecars (on by default).
func WithChecksums(verify bool) Option {
	return func(f *HTTPFetcher) { f.verify = verify }
}

// NewHTTPFetcher returns a fetcher caching into cacheDir.
func NewHTTPFetcher(cacheDir string, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		cacheDir:  cacheDir,
		client:    &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
		logger:    log.New(io.Discard),
		verify:    true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CacheDir returns the directory artifacts are stored in.
func (f *HTTPFetcher) CacheDir() string { return f.cacheDir }

// CachePath returns where c is stored once fetched.
func (f *HTTPFetcher) CachePath(c coordinate.Coordinate) string {
	return filepath.Join(f.cacheDir, c.FileName())
}

// Fetch implements ArtifactFetcher. A file already in the cache is returned
// without touching the network.
func (f *HTTPFetcher) Fetch(ctx context.Context, c coordinate.Coordinate, sources []repository.Source) (string, error) {
	dest := f.CachePath(c)
	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() {
		f.logger.Debug("cache hit", "coordinate", c.String(), "path", dest)
		return dest, nil
	}
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return "", &issue.DownloadError{Coordinate: c.String(), Cause: fmt.Errorf("creating cache dir: %w", err)}
	}

	repos := Candidates(c, sources)
	if len(repos) == 0 {
		return "", &issue.DownloadError{Coordinate: c.String(), Cause: errors.New("no repositories to try")}
	}

	var causes []error
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return "", &issue.DownloadError{Coordinate: c.String(), Repositories: repos, Cause: err}
		}
		artifactURL := repo + c.RepositoryPath()
		err := f.download(ctx, artifactURL, dest)
		if err == nil {
			f.logger.Info("downloaded", "coordinate", c.String(), "repository", repo)
			return dest, nil
		}
		if errors.Is(err, errNotFound) {
			f.logger.Debug("not in repository", "coordinate", c.String(), "repository", repo)
		} else {
			f.logger.Warn("download failed", "coordinate", c.String(), "repository", repo, "error", err)
		}
		causes = append(causes, err)
	}
	return "", &issue.DownloadError{Coordinate: c.String(), Repositories: repos, Cause: errors.Join(causes...)}
}

// Candidates lists the repositories tried for c, in order: the coordinate's
// own repositories, then sources, then the coordinate's fallbacks. Duplicates
// keep their first position.
func Candidates(c coordinate.Coordinate, sources []repository.Source) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if u == "" {
			return
		}
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	for _, u := range c.Repositories() {
		add(u)
	}
	for _, s := range sources {
		add(s.BaseURL)
	}
	for _, u := range c.FallbackRepositories() {
		add(u)
	}
	return out
}

// download writes rawURL to dest through a temp file in the same directory so
// the final rename is atomic.
func (f *HTTPFetcher) download(ctx context.Context, rawURL, dest string) (err error) {
	body, err := f.open(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }() // read-only

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".depload-download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			// Best-effort removal of a partial download.
			_ = os.Remove(tmp.Name())
		}
	}()

	h := sha1.New() //nolint:gosec // Maven SHA-1 sidecars
	if _, err = io.Copy(io.MultiWriter(tmp, h), body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", rawURL, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if f.verify {
		if err = f.verifySidecar(ctx, rawURL, hex.EncodeToString(h.Sum(nil))); err != nil {
			return err
		}
	}
	return os.Rename(tmp.Name(), dest)
}

// verifySidecar compares got against rawURL.sha1. A repository that publishes
// no sidecar is accepted.
func (f *HTTPFetcher) verifySidecar(ctx context.Context, rawURL, got string) error {
	body, err := f.open(ctx, rawURL+".sha1")
	if errors.Is(err, errNotFound) {
		f.logger.Debug("no checksum sidecar", "url", rawURL)
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(body, maxSidecarBytes))
	if err != nil {
		return fmt.Errorf("reading %s.sha1: %w", rawURL, err)
	}
	expected, err := ParseSHA1(string(raw))
	if err != nil {
		return err
	}
	if !strings.EqualFold(expected, got) {
		return &ChecksumError{URL: rawURL, Expected: expected, Got: got}
	}
	return nil
}

func (f *HTTPFetcher) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "file" {
		file, err := os.Open(filepath.FromSlash(u.Path))
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", rawURL, errNotFound)
		}
		return file, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", rawURL, errNotFound)
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: unexpected status %s", rawURL, resp.Status)
	}
}
