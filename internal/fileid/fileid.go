// Package fileid derives deterministic document identifiers.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	contentPrefix = "sha256:"
	pathPrefix    = "file:"
)

// ContentID returns an ID derived from the document bytes. The same report
// uploaded under two names yields the same ID.
func ContentID(content []byte) string {
	hash := sha256.Sum256(content)
	return contentPrefix + hex.EncodeToString(hash[:])
}

// PathID returns a stable ID for a cleaned path. The watcher uses it to
// debounce events per file.
func PathID(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return pathPrefix + hex.EncodeToString(hash[:])
}
