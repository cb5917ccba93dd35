package media

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for media operations.
var (
	// ErrEngineInit matches every *EngineInitError.
	ErrEngineInit = errors.New("media engine failed to load")
	// ErrProbe matches every *ProbeError.
	ErrProbe = errors.New("media probe failed")
	// ErrTrim matches every *TrimError.
	ErrTrim = errors.New("media trim failed")
	// ErrEngineBusy is returned when a second operation is issued while one is outstanding.
	ErrEngineBusy = errors.New("media engine busy")
	// ErrEngineNotLoaded is returned when a handle is used before Load or after Terminate.
	ErrEngineNotLoaded = errors.New("media engine not loaded")
	// ErrInvalidRange is returned when a trim range is empty or negative.
	ErrInvalidRange = errors.New("invalid range: end must be after start and start must not be negative")
	// ErrInvalidFileName is returned when a working storage name is not a bare file name.
	ErrInvalidFileName = errors.New("invalid working file name")
	// ErrDurationNotFound is returned when engine output carries no readable duration.
	ErrDurationNotFound = errors.New("no duration in engine output")
)

// EngineInitError reports that the engine handle could not be loaded.
type EngineInitError struct {
	Err error
}

func (e *EngineInitError) Error() string {
	return fmt.Sprintf("media engine failed to load: %v", e.Err)
}

func (e *EngineInitError) Unwrap() []error {
	return []error{ErrEngineInit, e.Err}
}

// ProbeError reports that a source's duration could not be read.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("could not read video duration: %v", e.Err)
}

func (e *ProbeError) Unwrap() []error {
	return []error{ErrProbe, e.Err}
}

// TrimError reports a failed export. Reason is a short human-readable cause.
type TrimError struct {
	Reason string
	Err    error
}

func (e *TrimError) Error() string {
	return "export failed: " + e.Reason
}

func (e *TrimError) Unwrap() []error {
	return []error{ErrTrim, e.Err}
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Reason returns the last non-empty stderr line, which is where ffmpeg
// prints the fatal message.
func (e *FFmpegError) Reason() string {
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return e.Err.Error()
}

// reasonFor extracts a short message from an engine failure.
func reasonFor(err error) string {
	var ffErr *FFmpegError
	if errors.As(err, &ffErr) {
		return ffErr.Reason()
	}
	return err.Error()
}
