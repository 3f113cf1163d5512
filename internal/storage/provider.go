// Package storage provides rooted, traversal-safe file access for the documentation mirror and uploads.
package storage

import (
	"io"
	"time"
)

// FileInfo describes one file under the root.
type FileInfo struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
	Checksum string    `json:"checksum,omitempty"`
}

// Provider is the interface for rooted file operations. Paths are relative to the root.
type Provider interface {
	// List returns every file under dir whose extension is accepted by the provider.
	List(dir string) ([]FileInfo, error)
	// Stat returns size and modification time of path without reading it.
	Stat(path string) (FileInfo, error)
	// Read returns the raw bytes of path.
	Read(path string) ([]byte, error)
	// Open returns a seekable reader for serving path.
	Open(path string) (ReadSeekCloser, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Root is the absolute root directory.
	Root() string
}

// ReadSeekCloser is what Open returns; *os.File satisfies it.
type ReadSeekCloser interface {
	io.ReadSeeker
	io.Closer
}
