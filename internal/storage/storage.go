// Package storage provides temporary file staging for uploads and encoder
// outputs, plus optional S3 archival of compressed results.
// It defines the Storage interface (port) and implementations for local
// disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for staging files during a compression request.
// Each request owns the paths it receives; implementations never hand the same
// path to two callers.
type Storage interface {
	// SaveTemp saves data to a uniquely named temporary file and returns its path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// NewTempPath returns a unique path in the temporary directory ending in
	// "-" + suffix. The file itself is not created.
	NewTempPath(suffix string) string

	// LoadTemp opens a temporary file for reading.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// Missing files are not an error. It continues cleanup even if some
	// files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
