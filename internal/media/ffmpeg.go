package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// Compile-time check that FFmpegEngine implements Engine.
var _ Engine = (*FFmpegEngine)(nil)

// FFmpegEngine implements Engine using the ffmpeg CLI.
// Each loaded handle owns a private directory under baseDir that serves as
// its working storage; every Exec runs one ffmpeg process inside it.
type FFmpegEngine struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	baseDir    string

	mu      sync.Mutex
	workDir string
}

// NewFFmpegEngine creates a new, unloaded FFmpegEngine.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
// If baseDir is empty, os.TempDir() is used.
func NewFFmpegEngine(ffmpegPath, baseDir string) *FFmpegEngine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &FFmpegEngine{ffmpegPath: ffmpegPath, baseDir: baseDir}
}

// NewFFmpegEngineFactory returns an EngineFactory producing FFmpegEngine handles.
func NewFFmpegEngineFactory(ffmpegPath, baseDir string) EngineFactory {
	return func() Engine {
		return NewFFmpegEngine(ffmpegPath, baseDir)
	}
}

// Load verifies the ffmpeg binary is executable and creates the working directory.
func (e *FFmpegEngine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.workDir != "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	if _, err := exec.LookPath(e.ffmpegPath); err != nil {
		return fmt.Errorf("locate ffmpeg: %w", err)
	}

	if err := os.MkdirAll(e.baseDir, 0750); err != nil {
		return fmt.Errorf("create engine base directory: %w", err)
	}
	dir, err := os.MkdirTemp(e.baseDir, "engine-*")
	if err != nil {
		return fmt.Errorf("create engine working directory: %w", err)
	}

	e.workDir = dir
	return nil
}

// WorkDir returns the working directory, or "" if the handle is not loaded.
func (e *FFmpegEngine) WorkDir() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workDir
}

// WriteFile copies data into the working directory under name.
func (e *FFmpegEngine) WriteFile(ctx context.Context, name string, data io.Reader) error {
	path, err := e.resolve(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 - path is confined to the working directory
	if err != nil {
		return fmt.Errorf("create working file: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write working file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close working file: %w", err)
	}
	return nil
}

// ReadFile returns the contents of name from the working directory.
func (e *FFmpegEngine) ReadFile(ctx context.Context, name string) ([]byte, error) {
	path, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is confined to the working directory
	if err != nil {
		return nil, fmt.Errorf("read working file: %w", err)
	}
	return data, nil
}

// Exec runs ffmpeg with args inside the working directory. Every stderr line is
// reported as an EventLog; status lines additionally produce EventProgress
// relative to the "-t" limit when present, otherwise to the input duration.
func (e *FFmpegEngine) Exec(ctx context.Context, args []string, onEvent EventHandler) error {
	workDir := e.WorkDir()
	if workDir == "" {
		return ErrEngineNotLoaded
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.Dir = workDir

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attach ffmpeg stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var stderr bytes.Buffer
	total, hasLimit := outputLimit(args)

	scanner := bufio.NewScanner(stderrPipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanStatusLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		stderr.WriteString(line)
		stderr.WriteByte('\n')
		onEvent(Event{Kind: EventLog, Message: line})

		if !hasLimit {
			if d, ok := parseDuration(line); ok && d > 0 {
				total = d
			}
		}
		if t, ok := parseStatusTime(line); ok && total > 0 {
			onEvent(Event{Kind: EventProgress, Progress: t / total})
		}
	}
	// Drain whatever the scanner left so Wait does not block on a full pipe.
	_, _ = io.Copy(io.Discard, stderrPipe)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// Terminate removes the working directory. Terminating an unloaded handle is a no-op.
func (e *FFmpegEngine) Terminate() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.workDir == "" {
		return nil
	}
	dir := e.workDir
	e.workDir = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove engine working directory: %w", err)
	}
	return nil
}

// resolve maps a bare working file name to its path.
func (e *FFmpegEngine) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	workDir := e.WorkDir()
	if workDir == "" {
		return "", ErrEngineNotLoaded
	}
	return filepath.Join(workDir, name), nil
}

// scanStatusLines splits on '\n' and on the bare '\r' ffmpeg uses to
// rewrite its status line in place.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, bytes.TrimSpace(data[:i]), nil
	}
	if atEOF {
		return len(data), bytes.TrimSpace(data), nil
	}
	return 0, nil, nil
}
