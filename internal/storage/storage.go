// Package storage provides durable key/blob backends for persisted snapshots.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
	ErrInvalidPath    = errors.New("invalid object path")
)

// ObjectStorage abstracts a durable blob store keyed by object path.
// Implementations include the local filesystem, S3 and a SQLite table.
// Put replaces the whole object; readers never observe a partial write.
type ObjectStorage interface {
	// Put writes data at objectPath, overwriting any existing object.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get returns the object at objectPath or ErrObjectNotFound.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
