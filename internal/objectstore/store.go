// Package objectstore provides a narrow read abstraction over blob storage
// backends, used by the orchestrator to load knowledge
// files that live outside the local filesystem (§6.2's s3:// knowledge
// roots).
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// Common errors returned by Store implementations.
var (
	ErrNotFound     = errors.New("object not found")
	ErrAccessDenied = errors.New("access denied")
)

// ObjectAttrs contains metadata about a stored object.
type ObjectAttrs struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
}

// Store defines the read operations knowledge-file loading needs. It is
// intentionally narrower than a full object-storage interface: this
// package is not a general-purpose blob store, only an alternate backend
// for files the orchestrator reads into a prompt.
type Store interface {
	// Get retrieves an object by key. The caller must close the returned
	// reader. Returns ErrNotFound if the object does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectAttrs, error)

	// Exists checks if an object exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}
