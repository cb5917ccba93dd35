package media

import (
	"context"
	"io"
)

// EventKind distinguishes the events an Engine emits while executing a command.
type EventKind int

const (
	// EventLog carries one line of engine log output.
	EventLog EventKind = iota
	// EventProgress carries the fractional completion of the running command.
	EventProgress
)

// Event is emitted by an Engine during Exec.
type Event struct {
	Kind     EventKind
	Message  string
	Progress float64
}

// EventHandler receives engine events. It is called on the goroutine running Exec.
type EventHandler func(Event)

// Engine is the boundary to the external media-processing engine.
// A handle owns private working storage; files written with WriteFile are
// visible to commands run through Exec and results are read back with ReadFile.
// Terminate releases the working storage and makes the handle unusable.
type Engine interface {
	// Load prepares the handle. Calling Load on a loaded handle is a no-op.
	Load(ctx context.Context) error

	// WriteFile stores data under name in the working storage.
	WriteFile(ctx context.Context, name string, data io.Reader) error

	// Exec runs one engine command with argv args relative to the working storage.
	// onEvent may be nil.
	Exec(ctx context.Context, args []string, onEvent EventHandler) error

	// ReadFile returns the contents of name from the working storage.
	ReadFile(ctx context.Context, name string) ([]byte, error)

	// Terminate discards the working storage.
	Terminate() error
}

// EngineFactory builds a fresh, unloaded Engine handle.
type EngineFactory func() Engine
