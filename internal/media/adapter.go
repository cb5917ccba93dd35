package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Compile-time check that Adapter implements Processor.
var _ Processor = (*Adapter)(nil)

// Working storage names used for every operation.
const (
	inputBase     = "input"
	outputBase    = "output"
	thumbnailName = "thumbnail.jpg"
)

// Adapter owns a single lazily loaded Engine handle and rebuilds it after
// every operation so working storage never carries over between calls.
type Adapter struct {
	mu        sync.Mutex
	newEngine EngineFactory
	engine    Engine
	ready     bool
	logger    *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger used for engine log lines and cleanup failures.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter creates an Adapter that builds engine handles with factory.
func NewAdapter(factory EngineFactory, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		newEngine: factory,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init loads the engine handle. It is a no-op when the handle is already loaded.
func (a *Adapter) Init(ctx context.Context) error {
	if !a.mu.TryLock() {
		return ErrEngineBusy
	}
	defer a.mu.Unlock()
	return a.initLocked(ctx)
}

// Duration writes data into working storage and reads the duration ffmpeg reports for it.
func (a *Adapter) Duration(ctx context.Context, data io.Reader, kind Kind) (float64, error) {
	if !a.mu.TryLock() {
		return 0, ErrEngineBusy
	}
	defer a.mu.Unlock()

	if err := a.initLocked(ctx); err != nil {
		return 0, err
	}
	defer a.reset()

	input := inputBase + kind.Extension()
	if err := a.engine.WriteFile(ctx, input, data); err != nil {
		return 0, &ProbeError{Err: err}
	}

	duration := -1.0
	// ffmpeg exits non-zero when no output is given; the header is all we need.
	execErr := a.engine.Exec(ctx, []string{"-hide_banner", "-i", input}, func(ev Event) {
		if ev.Kind != EventLog {
			return
		}
		if d, ok := parseDuration(ev.Message); ok && duration < 0 {
			duration = d
		}
	})
	if ctx.Err() != nil {
		return 0, &ProbeError{Err: fmt.Errorf("context cancelled: %w", ctx.Err())}
	}
	if duration <= 0 {
		if execErr != nil {
			return 0, &ProbeError{Err: fmt.Errorf("%w: %s", ErrDurationNotFound, reasonFor(execErr))}
		}
		return 0, &ProbeError{Err: ErrDurationNotFound}
	}

	return duration, nil
}

// Trim writes data into working storage, copies the [start, end) segment
// without re-encoding, and returns the output bytes.
func (a *Adapter) Trim(ctx context.Context, data io.Reader, kind Kind, start, end float64, onProgress ProgressFunc) ([]byte, error) {
	if start < 0 || end <= start {
		return nil, &TrimError{
			Reason: fmt.Sprintf("invalid range %.3f-%.3f", start, end),
			Err:    ErrInvalidRange,
		}
	}
	if !a.mu.TryLock() {
		return nil, ErrEngineBusy
	}
	defer a.mu.Unlock()

	if err := a.initLocked(ctx); err != nil {
		return nil, err
	}
	defer a.reset()

	input := inputBase + kind.Extension()
	output := outputBase + kind.Extension()

	if err := a.engine.WriteFile(ctx, input, data); err != nil {
		return nil, &TrimError{Reason: reasonFor(err), Err: err}
	}

	args := []string{
		"-hide_banner",
		"-y",        // Overwrite output file without asking
		"-i", input, // Input file
		"-ss", formatSeconds(start), // Seek to start
		"-t", formatSeconds(end-start), // Limit output duration
		"-c:v", "copy", // Copy video stream without re-encoding
		"-c:a", "copy", // Copy audio stream without re-encoding
		output,
	}

	last := 0.0
	sink := func(ev Event) {
		switch ev.Kind {
		case EventLog:
			a.logger.Debug("engine log", slog.String("message", ev.Message))
		case EventProgress:
			p := clampUnit(ev.Progress)
			if p < last {
				return
			}
			last = p
			if onProgress != nil {
				onProgress(p)
			}
		}
	}

	if err := a.engine.Exec(ctx, args, sink); err != nil {
		return nil, &TrimError{Reason: reasonFor(err), Err: err}
	}

	out, err := a.engine.ReadFile(ctx, output)
	if err != nil {
		return nil, &TrimError{Reason: reasonFor(err), Err: err}
	}
	if len(out) == 0 {
		err := errors.New("engine produced an empty file")
		return nil, &TrimError{Reason: err.Error(), Err: err}
	}

	return out, nil
}

// Thumbnail captures the first decoded frame of data as a JPEG image.
func (a *Adapter) Thumbnail(ctx context.Context, data []byte, kind Kind) ([]byte, error) {
	if !a.mu.TryLock() {
		return nil, ErrEngineBusy
	}
	defer a.mu.Unlock()

	if err := a.initLocked(ctx); err != nil {
		return nil, err
	}
	defer a.reset()

	input := "clip" + kind.Extension()
	if err := a.engine.WriteFile(ctx, input, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("write thumbnail input: %w", err)
	}

	args := []string{
		"-hide_banner",
		"-y",
		"-i", input,
		"-frames:v", "1", // Output single frame (image)
		"-f", "image2",
		thumbnailName,
	}
	if err := a.engine.Exec(ctx, args, nil); err != nil {
		return nil, fmt.Errorf("capture thumbnail: %w", err)
	}

	img, err := a.engine.ReadFile(ctx, thumbnailName)
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	return img, nil
}

func (a *Adapter) initLocked(ctx context.Context) error {
	if a.ready {
		return nil
	}
	if a.engine == nil {
		a.engine = a.newEngine()
	}
	if err := a.engine.Load(ctx); err != nil {
		return &EngineInitError{Err: err}
	}
	a.ready = true
	return nil
}

// reset terminates the current handle and replaces it with a fresh one.
func (a *Adapter) reset() {
	if a.engine != nil {
		if err := a.engine.Terminate(); err != nil {
			a.logger.Warn("engine cleanup failed", slog.String("error", err.Error()))
		}
	}
	a.engine = a.newEngine()
	a.ready = false
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
