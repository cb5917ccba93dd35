// Package storage provides transient file handles and clip publishing.
// It defines the Storage interface and implementations for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for transient files and published clips.
// Transient files back uploaded sources and downloads; Publish delivers a
// finished clip to its final destination.
type Storage interface {
	// SaveTemp saves data to a transient file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp opens a transient file.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified transient files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish stores a finished clip under name and returns its location.
	// Returns ErrPublishNotConfigured if no destination is configured.
	Publish(ctx context.Context, name, contentType string, data io.Reader) (location string, err error)
}
