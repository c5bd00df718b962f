package types

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

// ChangeKind is the ChangeDetector's verdict for a FileUnit
type ChangeKind string

const (
	ChangeUnchanged ChangeKind = "unchanged"
	ChangeNew       ChangeKind = "new"
	ChangeModified  ChangeKind = "modified"
)

// FileUnit is one discovered source file. It is immutable once a processing
// attempt starts.
type FileUnit struct {
	// Path is the normalized, slash-separated path relative to the source root
	Path string

	// Content holds the raw file bytes
	Content []byte

	SizeBytes   int64
	Fingerprint string // hex SHA-256 of Content
	Encoding    string // detected text encoding, e.g. "utf-8"
}

// NewFileUnit builds a FileUnit from raw bytes, computing its fingerprint
func NewFileUnit(path string, content []byte, encoding string) FileUnit {
	return FileUnit{
		Path:        NormalizePath(path),
		Content:     content,
		SizeBytes:   int64(len(content)),
		Fingerprint: Fingerprint(content),
		Encoding:    encoding,
	}
}

// Fingerprint returns the hex SHA-256 digest of raw bytes
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// NormalizePath cleans a path and converts it to forward slashes so the same
// file always maps to the same identity.
func NormalizePath(path string) string {
	p := filepath.ToSlash(filepath.Clean(path))
	return strings.TrimPrefix(p, "./")
}

// FingerprintRecord maps a path to the last fingerprint that produced a Sample
type FingerprintRecord struct {
	Path            string
	Fingerprint     string
	Encoding        string
	SizeBytes       int64
	LastProcessedAt time.Time
	SampleID        string // empty when no Sample is referenced

	// SampleExists is filled on read: whether SampleID still resolves
	SampleExists bool
}
