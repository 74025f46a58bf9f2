// Package storage defines the object store used to archive approved manifests.
//
// Backends register themselves with the factory from an init() function in
// their own package; cmd/server blank-imports each backend:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return New(&cfg.Storage.MyBackend)
//	    })
//	}
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Download when no object exists at path
var ErrNotFound = errors.New("object not found")

// Storage is implemented by every archive backend
type Storage interface {
	// Upload stores data at path, replacing any existing object
	Upload(ctx context.Context, path string, data []byte, contentType string) (*UploadResult, error)

	// Download returns a reader for the object at path
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists reports whether an object exists at path
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the object; a missing object is not an error
	Delete(ctx context.Context, path string) error
}

// UploadResult describes a stored object
type UploadResult struct {
	Path     string
	Size     int64
	Checksum string // hex SHA-256
}
