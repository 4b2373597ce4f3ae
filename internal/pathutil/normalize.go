// Package pathutil holds small, pure path helpers shared across the
// scan pipeline.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Normalize returns a canonical filesystem path string.
// It removes trailing slashes, collapses "." and "..", and
// preserves relative paths when provided.
func Normalize(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}

// StripTrailingSlash removes a single trailing "/" from path, per spec
// §3's "trailing `/` stripped" rule for the directory document's path
// field. Unlike Normalize, it does not collapse "." or ".." segments —
// the document model stores the path exactly as discovered by the
// walker, only trimmed.
func StripTrailingSlash(path string) string {
	if path == "/" {
		return path
	}
	return strings.TrimSuffix(path, "/")
}

// Latin1Safe coerces path into the representation spec §6 requires
// before it reaches the index backend: "encode UTF-8 with
// surrogate-escape, decode ISO-8859-1". A Go string is already an
// arbitrary byte sequence, so there is nothing for surrogate-escape to
// recover — the transform is just a byte-for-byte reinterpretation of
// the path's raw bytes as Latin-1 code points. It runs unconditionally
// (including on already-valid UTF-8 paths) because the wire format
// must be consistent regardless of the source byte sequence; every
// byte 0x00-0xFF maps to exactly one rune, so the result is always
// valid UTF-8 and no byte is lost.
func Latin1Safe(path string) string {
	b := []byte(path)
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
