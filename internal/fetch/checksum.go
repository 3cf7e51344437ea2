// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"crypto/sha1" //nolint:gosec // Maven repositories publish SHA-1 sidecars; used for integrity, not security.
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrChecksumMismatch indicates the downloaded bytes do not match the
// repository's published digest.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ChecksumError provides details about a checksum verification failure.
// It wraps ErrChecksumMismatch so callers can use errors.Is for classification.
type ChecksumError struct {
	URL      string
	Expected string
	Got      string
}

// Error returns a human-readable description of the checksum mismatch.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.URL, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// ParseSHA1 extracts the digest from a Maven .sha1 sidecar. Sidecars hold
// either the bare hex digest or sha1sum output ("{hex}  {filename}").
func ParseSHA1(content string) (string, error) {
	fields := strings.Fields(content)
	if len(fields) == 0 || !isValidHexHash(fields[0], sha1.Size) {
		return "", fmt.Errorf("malformed sha1 sidecar %q", strings.TrimSpace(content))
	}
	return strings.ToLower(fields[0]), nil
}

// ComputeFileSHA1 streams the file at path through SHA-1.
func ComputeFileSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }() // read-only handle

	h := sha1.New() //nolint:gosec // see import
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// isValidHexHash checks that s is a hex digest of size bytes.
func isValidHexHash(s string, size int) bool {
	if len(s) != size*2 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
