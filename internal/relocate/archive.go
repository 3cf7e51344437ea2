// SPDX-License-Identifier: MPL-2.0

package relocate

import (
	"archive/zip"
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/depload/internal/issue"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
)

const servicesDir = "META-INF/services/"

type (
	// Rule renames the dotted package prefix From to To. Entries whose
	// slash-separated path matches one of the Excludes globs keep their name.
	Rule struct {
		From     string   `json:"from" mapstructure:"from"`
		To       string   `json:"to" mapstructure:"to"`
		Excludes []string `json:"excludes,omitempty" mapstructure:"excludes"`
	}

	// ArchiveRelocator is a Remapper for zip and jar artifacts. It renames
	// entry paths and service descriptors; the rewritten archive is written
	// next to the input and reused while it is newer than the input.
	ArchiveRelocator struct {
		rules  []Rule
		suffix string
		logger *log.Logger
	}
)

// NewArchiveRelocator validates rules and returns a relocator applying them
// in order. The first rule whose prefix matches an entry wins.
func NewArchiveRelocator(logger *log.Logger, rules ...Rule) (*ArchiveRelocator, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	h := sha256.New()
	for i, r := range rules {
		if !validPackage(r.From) || !validPackage(r.To) {
			return nil, &issue.ConfigurationError{Reason: fmt.Sprintf("relocation %d: %q -> %q is not a package rename", i, r.From, r.To)}
		}
		for _, pat := range r.Excludes {
			if !doublestar.ValidatePattern(pat) {
				return nil, &issue.ConfigurationError{Reason: fmt.Sprintf("relocation %d: invalid exclude pattern %q", i, pat)}
			}
		}
		fmt.Fprintf(h, "%s>%s!%s\n", r.From, r.To, strings.Join(r.Excludes, ","))
	}
	return &ArchiveRelocator{
		rules:  rules,
		suffix: "-relocated-" + hex.EncodeToString(h.Sum(nil))[:8],
		logger: logger,
	}, nil
}

// RemapArtifact rewrites the archive at path and returns the rewritten
// copy. Directories, non-archives and archives no rule touches come back
// unchanged.
func (a *ArchiveRelocator) RemapArtifact(path string) (string, error) {
	if len(a.rules) == 0 || !isArchive(path) {
		return path, nil
	}
	in, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	out := outputPath(path, a.suffix)
	if cached, statErr := os.Stat(out); statErr == nil && !cached.ModTime().Before(in.ModTime()) {
		return out, nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	touched, err := a.touches(zr.File)
	if err != nil {
		return "", err
	}
	if !touched {
		return path, nil
	}
	if err := a.rewrite(zr.File, out); err != nil {
		return "", err
	}
	a.logger.Debug("relocated archive", "input", path, "output", out)
	return out, nil
}

func (a *ArchiveRelocator) touches(files []*zip.File) (bool, error) {
	for _, f := range files {
		if a.renameEntry(f.Name) != f.Name {
			return true, nil
		}
		if !isServiceDescriptor(f.Name) {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return false, err
		}
		renamed, err := a.renameServices(data)
		if err != nil {
			return false, fmt.Errorf("%s: %w", f.Name, err)
		}
		if !bytes.Equal(renamed, data) {
			return true, nil
		}
	}
	return false, nil
}

func (a *ArchiveRelocator) rewrite(files []*zip.File, out string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(out), ".relocate-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		name := a.renameEntry(f.Name)
		if seen[name] {
			continue
		}
		seen[name] = true

		if isServiceDescriptor(f.Name) {
			err = a.copyService(zw, f, name)
		} else {
			err = copyRaw(zw, f, name)
		}
		if err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return fmt.Errorf("relocate entry %s: %w", f.Name, err)
		}
	}
	if err = zw.Close(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, out)
}

func (a *ArchiveRelocator) copyService(zw *zip.Writer, f *zip.File, name string) error {
	data, err := readEntry(f)
	if err != nil {
		return err
	}
	header := f.FileHeader
	header.Name = name
	w, err := zw.CreateHeader(&header)
	if err != nil {
		return err
	}
	renamed, err := a.renameServices(data)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	_, err = w.Write(renamed)
	return err
}

// copyRaw copies the compressed bytes of f under a new name.
func copyRaw(zw *zip.Writer, f *zip.File, name string) error {
	src, err := f.OpenRaw()
	if err != nil {
		return err
	}
	header := f.FileHeader
	header.Name = name
	dst, err := zw.CreateRaw(&header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

// renameEntry maps an archive entry path. Service descriptors are named
// after the dotted interface they describe.
func (a *ArchiveRelocator) renameEntry(name string) string {
	if isServiceDescriptor(name) {
		return servicesDir + a.renameClass(strings.TrimPrefix(name, servicesDir))
	}
	for _, r := range a.rules {
		prefix := slashed(r.From) + "/"
		if !strings.HasPrefix(name, prefix) || excluded(r, name) {
			continue
		}
		return slashed(r.To) + "/" + strings.TrimPrefix(name, prefix)
	}
	return name
}

// renameClass maps a dotted class name. Excludes see the class as the
// entry path of its class file.
func (a *ArchiveRelocator) renameClass(class string) string {
	for _, r := range a.rules {
		if !strings.HasPrefix(class, r.From+".") {
			continue
		}
		if excluded(r, slashed(class)+".class") {
			continue
		}
		return r.To + strings.TrimPrefix(class, r.From)
	}
	return class
}

// renameServices rewrites the provider names listed in a service
// descriptor, keeping comments and layout. A line may span the whole
// descriptor.
func (a *ArchiveRelocator) renameServices(data []byte) ([]byte, error) {
	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 4096), max(len(data)+1, bufio.MaxScanTokenSize))
	first := true
	for sc.Scan() {
		if !first {
			out.WriteByte('\n')
		}
		first = false

		line := sc.Text()
		body, comment, hasComment := strings.Cut(line, "#")
		class := strings.TrimSpace(body)
		if class != "" {
			body = strings.Replace(body, class, a.renameClass(class), 1)
		}
		out.WriteString(body)
		if hasComment {
			out.WriteByte('#')
			out.WriteString(comment)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading service descriptor: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] == '\n' {
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}

func excluded(r Rule, name string) bool {
	for _, pat := range r.Excludes {
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func isServiceDescriptor(name string) bool {
	return strings.HasPrefix(name, servicesDir) && len(name) > len(servicesDir) && !strings.HasSuffix(name, "/")
}

func isArchive(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar", ".zip":
		return true
	default:
		return false
	}
}

func outputPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

func slashed(pkg string) string { return strings.ReplaceAll(pkg, ".", "/") }

func validPackage(pkg string) bool {
	if pkg == "" {
		return false
	}
	for part := range strings.SplitSeq(pkg, ".") {
		if part == "" || strings.ContainsAny(part, "/\\ \t") {
			return false
		}
	}
	return true
}
