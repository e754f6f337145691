// Package storage defines the file-system abstraction behind the master store
// and the fetch artifacts.
package storage

import "time"

// FileInfo describes one stored file.
type FileInfo struct {
	Path      string
	Size      int64
	UpdatedAt time.Time
}

// Provider is the interface for file operations relative to a root directory.
type Provider interface {
	// Stat returns metadata for path; the error wraps fs.ErrNotExist when absent.
	Stat(path string) (FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
	// Import moves an external file into the root as path.
	Import(src, path string, overwrite bool) error
	// Lock takes an exclusive advisory lock named after path.
	Lock(path string) (func() error, error)
}
