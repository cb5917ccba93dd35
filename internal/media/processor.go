// Package media drives the external media-processing engine.
// It defines the Engine boundary, an ffmpeg-backed implementation, and the
// Adapter that turns engine commands into duration probes, trims and thumbnails.
package media

import (
	"context"
	"io"
)

// ProgressFunc receives fractional export progress in [0, 1].
type ProgressFunc func(progress float64)

// Processor defines the media operations the editor depends on.
// Implementations allow only one outstanding call at a time.
type Processor interface {
	// Duration returns the duration of the media read from data, in seconds.
	// Fails with *ProbeError if the media cannot be decoded.
	Duration(ctx context.Context, data io.Reader, kind Kind) (float64, error)

	// Trim copies the [start, end) segment of the media read from data and returns
	// the encoded output. Progress is reported monotonically through onProgress,
	// which may be nil. Fails with *TrimError on any engine failure.
	Trim(ctx context.Context, data io.Reader, kind Kind, start, end float64, onProgress ProgressFunc) ([]byte, error)

	// Thumbnail returns the first decoded frame of data as a JPEG image.
	Thumbnail(ctx context.Context, data []byte, kind Kind) ([]byte, error)
}
