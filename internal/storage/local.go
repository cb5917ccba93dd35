package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Static errors for storage operations.
var (
	// ErrPublishNotConfigured is returned when Publish is called without an
	// export directory or bucket.
	ErrPublishNotConfigured = errors.New("publish destination is not configured")
	// ErrInvalidName is returned when a name has no usable characters.
	ErrInvalidName = errors.New("invalid file name")
)

// LocalStorage implements the Storage interface using local disk.
// Transient files live in tempDir; published clips are written to exportDir.
type LocalStorage struct {
	tempDir   string
	exportDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// If tempDir is empty, a "clipbatch" directory under os.TempDir() is used.
// An empty exportDir disables Publish. Both directories are created if needed.
func NewLocalStorage(tempDir, exportDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "clipbatch")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	if exportDir != "" {
		if err := os.MkdirAll(exportDir, 0750); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	return &LocalStorage{tempDir: tempDir, exportDir: exportDir}, nil
}

// TempDir returns the transient directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// ExportDir returns the publish directory, or "" when publishing is disabled.
func (s *LocalStorage) ExportDir() string {
	return s.exportDir
}

// SaveTemp saves data to a transient file and returns the file path.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.tempDir, safeName(name)+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp opens a transient file.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the specified transient files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Publish writes data to name inside the export directory, replacing any
// existing file, and returns the absolute path.
func (s *LocalStorage) Publish(ctx context.Context, name, _ string, data io.Reader) (string, error) {
	if s.exportDir == "" {
		return "", ErrPublishNotConfigured
	}
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	// Write next to the destination and rename so readers never see a partial clip.
	tmp, err := os.CreateTemp(s.exportDir, "."+safeName(base)+"_*")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close export file: %w", err)
	}

	dest := filepath.Join(s.exportDir, base)
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("move export file: %w", err)
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return dest, nil
	}
	return abs, nil
}

// safeName reduces name to characters usable in a temp file pattern.
func safeName(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '*' || r == '/' || r == '\\' || r == filepath.Separator:
			return '_'
		case r < 0x20:
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
