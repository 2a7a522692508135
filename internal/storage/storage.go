// Package storage provides durable artifact storage for uploaded product
// photos and rendered videos. It defines the Storage port and implementations
// for local disk and S3. Artifacts are addressed by a generated unique name
// and exposed to clients through a stable public URL.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for durable artifact storage.
type Storage interface {
	// Save writes data under the given name and returns the storage locator
	// (a local path or an object key).
	Save(ctx context.Context, name string, data io.Reader) (locator string, err error)

	// Load opens the artifact stored at the given locator.
	// The caller is responsible for closing the returned ReadCloser.
	Load(ctx context.Context, locator string) (io.ReadCloser, error)

	// Delete removes the artifact at the given locator. Deleting a missing
	// artifact is not an error.
	Delete(ctx context.Context, locator string) error

	// PublicURL returns the client-facing URL for an artifact name.
	PublicURL(name string) string
}
