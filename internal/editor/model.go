package editor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maauso/clipbatch/internal/media"
)

// Blob is an opaque, re-readable reference to uploaded media bytes.
type Blob interface {
	// Open returns a fresh reader over the bytes. The caller closes it.
	Open() (io.ReadCloser, error)
	// Size returns the number of bytes.
	Size() int64
}

// BytesBlob is a Blob held in memory.
type BytesBlob []byte

// Open returns a reader over the in-memory bytes.
func (b BytesBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Size returns the number of bytes.
func (b BytesBlob) Size() int64 {
	return int64(len(b))
}

// FileBlob is a Blob backed by a file on disk.
type FileBlob struct {
	Path string
	size int64
}

// NewFileBlob creates a FileBlob for an existing file.
func NewFileBlob(path string) (FileBlob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileBlob{}, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return FileBlob{}, fmt.Errorf("source path %s is a directory", path)
	}
	return FileBlob{Path: path, size: info.Size()}, nil
}

// Open opens the underlying file.
func (b FileBlob) Open() (io.ReadCloser, error) {
	f, err := os.Open(b.Path) // #nosec G304 - path comes from storage, not user input
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	return f, nil
}

// Size returns the file size recorded at creation.
func (b FileBlob) Size() int64 {
	return b.size
}

// Source is an uploaded media file the session is working with.
// It is immutable; Renamed returns a copy sharing the same bytes.
type Source struct {
	// Name is the display name, including the extension.
	Name string
	// Kind is the container kind derived from the media type.
	Kind media.Kind
	// Data references the uploaded bytes.
	Data Blob
}

// Renamed returns a copy of the source under a new name.
func (s Source) Renamed(name string) Source {
	s.Name = name
	return s
}

// Size returns the number of bytes, or 0 when the source has no data.
func (s Source) Size() int64 {
	if s.Data == nil {
		return 0
	}
	return s.Data.Size()
}

// Clip is a finished, exported trimmed segment stored in the batch.
// Clips are immutable once added; only Name changes through RenameClip.
type Clip struct {
	// ID is the unique identifier for this clip.
	ID string
	// Name is the display and download name without extension.
	Name string
	// Data is the encoded clip.
	Data []byte
	// Thumbnail is the first frame as JPEG, nil when capture failed.
	Thumbnail []byte
	// RangeStart and RangeEnd are the source offsets the clip was cut from.
	RangeStart float64
	RangeEnd   float64
	// Extension is the container extension including the dot.
	Extension string
	// SourceName is the name of the source at export time.
	SourceName string
	// CreatedAt is when the export completed.
	CreatedAt time.Time
}

// Duration returns the length of the exported range in seconds.
func (c Clip) Duration() float64 {
	return c.RangeEnd - c.RangeStart
}

// FileName returns the download file name.
func (c Clip) FileName() string {
	return c.Name + c.Extension
}

// baseName strips the extension from a source name.
func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
