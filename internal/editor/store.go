// Package editor provides the editing state machine coordinating
// upload, preview, range selection, export and batch accumulation.
// All engine work goes through a media.Processor; the Store's busy flag
// guarantees at most one engine call is outstanding.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maauso/clipbatch/internal/editor/id"
	"github.com/maauso/clipbatch/internal/media"
)

// MinRangeLength is the smallest selectable range in seconds.
const MinRangeLength = 0.01

// Static errors for store actions.
var (
	// ErrBusy is returned when an engine action is attempted while another is outstanding.
	ErrBusy = errors.New("an operation is already in progress")
	// ErrNoSource is returned when an action requires an active source.
	ErrNoSource = errors.New("no active source")
	// ErrInvalidSource is returned when a source has no data or an unsupported kind.
	ErrInvalidSource = errors.New("invalid source")
	// ErrInvalidRange is returned when a range edit would invert or collapse the range.
	ErrInvalidRange = errors.New("invalid range")
	// ErrInvalidTime is returned for NaN or infinite positions.
	ErrInvalidTime = errors.New("invalid time")
	// ErrClipNotFound is returned when a clip ID is not in the batch.
	ErrClipNotFound = errors.New("clip not found")
	// ErrSourceNotFound is returned when a name is not in the upload history.
	ErrSourceNotFound = errors.New("source not found")
	// ErrEmptyName is returned when a rename target is blank.
	ErrEmptyName = errors.New("name must not be empty")
	// ErrNameTaken is returned when a rename target collides with another upload.
	ErrNameTaken = errors.New("name already in use")
	// ErrJobDone is returned when a claimed job is run a second time.
	ErrJobDone = errors.New("job already run")
)

// Listener receives the latest state after every committed transition.
// Listeners run synchronously and must not call Store actions.
type Listener func(State)

// Observer is notified about engine work outcomes.
type Observer interface {
	SourceProbed(err error)
	ClipExported(elapsed time.Duration, err error)
	BatchResized(n int)
}

type nopObserver struct{}

func (nopObserver) SourceProbed(error)                {}
func (nopObserver) ClipExported(time.Duration, error) {}
func (nopObserver) BatchResized(int)                  {}

// Store holds the editing state and exposes the actions that change it.
type Store struct {
	mu         sync.Mutex
	state      State
	generation uint64
	clipSeq    int

	processor media.Processor
	logger    *slog.Logger
	observer  Observer
	rangeLock bool
	newID     func() string
	now       func() time.Time

	emitMu       sync.Mutex
	listeners    map[int]Listener
	nextListener int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers an observer for engine work outcomes.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithRangeLock controls whether the playhead is confined to the selected range.
// Enabled by default.
func WithRangeLock(enabled bool) Option {
	return func(s *Store) {
		s.rangeLock = enabled
	}
}

// WithIDGenerator overrides clip ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewStore creates a Store driving processor.
func NewStore(processor media.Processor, opts ...Option) *Store {
	s := &Store{
		state:     initialState(nil),
		processor: processor,
		logger:    slog.Default(),
		observer:  nopObserver{},
		rangeLock: true,
		newID:     id.Generate,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.emitMu.Lock()
	key := s.nextListener
	s.nextListener++
	s.listeners[key] = l
	s.emitMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.emitMu.Lock()
			delete(s.listeners, key)
			s.emitMu.Unlock()
		})
	}
}

// emit delivers the latest snapshot to every listener.
func (s *Store) emit() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if len(s.listeners) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, l := range s.listeners {
		l(snap)
	}
}

// SetSource makes src the active source and probes its duration.
// A nil src clears the session but keeps the upload history. While an engine
// call is outstanding a non-nil src is rejected with ErrBusy.
func (s *Store) SetSource(ctx context.Context, src *Source) error {
	if src == nil {
		s.mu.Lock()
		s.clearActiveLocked()
		s.mu.Unlock()
		s.emit()
		return nil
	}
	job, err := s.BeginSource(*src)
	if err != nil {
		return err
	}
	return job.Run(ctx)
}

// SourceJob is a source change that holds the busy flag until Run probes
// the duration. Run must be called exactly once.
type SourceJob struct {
	store *Store
	src   Source
	gen   uint64
	ran   atomic.Bool
}

// Source returns the source being probed.
func (j *SourceJob) Source() Source {
	return j.src
}

// BeginSource makes src the active source and claims the busy flag without
// calling the engine. It fails with ErrBusy while another engine call is
// outstanding.
func (s *Store) BeginSource(src Source) (*SourceJob, error) {
	if src.Data == nil || !src.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, src.Name)
	}

	s.mu.Lock()
	if s.state.IsBusy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.generation++
	gen := s.generation
	active := src
	s.state.ActiveSource = &active
	if _, ok := s.findUploadLocked(src.Name); !ok {
		s.state.UploadHistory = append(s.state.UploadHistory, active)
	}
	s.state.IsBusy = true
	s.state.IsPlaying = false
	s.mu.Unlock()
	s.emit()

	return &SourceJob{store: s, src: src, gen: gen}, nil
}

// Run probes the source and commits its duration and range. A result for a
// source that was cleared or replaced meanwhile is discarded.
func (j *SourceJob) Run(ctx context.Context) error {
	if j.ran.Swap(true) {
		return ErrJobDone
	}
	s, src := j.store, j.src

	s.logger.Info("probing source",
		slog.String("name", src.Name),
		slog.String("kind", string(src.Kind)),
		slog.Int64("size", src.Size()),
	)

	duration, err := s.probe(ctx, src)
	s.observer.SourceProbed(err)

	s.mu.Lock()
	s.state.IsBusy = false
	current := j.gen == s.generation
	if current {
		if err != nil {
			s.state.LastError = err.Error()
		} else {
			s.state.Duration = duration
			s.state.RangeStart = 0
			s.state.RangeEnd = duration
			s.state.Playhead = 0
			s.state.LastError = ""
		}
	}
	s.mu.Unlock()
	s.emit()

	switch {
	case !current:
		s.logger.Info("discarding probe of replaced source",
			slog.String("name", src.Name),
		)
	case err != nil:
		s.logger.Warn("probe failed",
			slog.String("name", src.Name),
			slog.String("error", err.Error()),
		)
	default:
		s.logger.Info("source ready",
			slog.String("name", src.Name),
			slog.Float64("duration", duration),
		)
	}
	return err
}

// Activate makes the uploaded source called name active again.
func (s *Store) Activate(ctx context.Context, name string) error {
	job, err := s.BeginActivate(name)
	if err != nil {
		return err
	}
	return job.Run(ctx)
}

// BeginActivate claims the busy flag for re-activating the uploaded source
// called name.
func (s *Store) BeginActivate(name string) (*SourceJob, error) {
	src, ok := s.Upload(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceNotFound, name)
	}
	return s.BeginSource(src)
}

func (s *Store) probe(ctx context.Context, src Source) (float64, error) {
	rc, err := src.Data.Open()
	if err != nil {
		return 0, &media.ProbeError{Err: err}
	}
	defer func() { _ = rc.Close() }()
	return s.processor.Duration(ctx, rc, src.Kind)
}

// SetPlayhead moves the playback position, clamped to the selected range when
// range lock is on and to [0, Duration] otherwise. Reaching the end of the
// range stops playback.
func (s *Store) SetPlayhead(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return ErrInvalidTime
	}

	s.mu.Lock()
	lo, hi := s.playBoundsLocked()
	t = clamp(t, lo, hi)
	s.state.Playhead = t
	if s.state.IsPlaying && t >= hi {
		s.state.IsPlaying = false
	}
	s.mu.Unlock()
	s.emit()
	return nil
}

// SetPlaying starts or stops playback. Starting at the end of the range
// rewinds to its start.
func (s *Store) SetPlaying(playing bool) error {
	s.mu.Lock()
	if playing && s.state.ActiveSource == nil {
		s.mu.Unlock()
		return ErrNoSource
	}
	if playing {
		lo, hi := s.playBoundsLocked()
		if s.state.Playhead >= hi {
			s.state.Playhead = lo
		}
	}
	s.state.IsPlaying = playing
	s.mu.Unlock()
	s.emit()
	return nil
}

// SetRangeStart moves the start of the range. The value is clamped to
// [0, Duration]; a start that would not stay MinRangeLength before the end is
// rejected with ErrInvalidRange and leaves the range unchanged.
func (s *Store) SetRangeStart(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return ErrInvalidTime
	}

	s.mu.Lock()
	t = clamp(t, 0, s.state.Duration)
	if s.state.RangeEnd-t < MinRangeLength {
		s.mu.Unlock()
		return fmt.Errorf("%w: start %.3f must be before end %.3f", ErrInvalidRange, t, s.state.RangeEnd)
	}
	s.state.RangeStart = t
	s.reclampPlayheadLocked()
	s.mu.Unlock()
	s.emit()
	return nil
}

// SetRangeEnd moves the end of the range. The value is clamped to
// [0, Duration]; an end that would not stay MinRangeLength after the start is
// rejected with ErrInvalidRange and leaves the range unchanged.
func (s *Store) SetRangeEnd(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return ErrInvalidTime
	}

	s.mu.Lock()
	t = clamp(t, 0, s.state.Duration)
	if t-s.state.RangeStart < MinRangeLength {
		s.mu.Unlock()
		return fmt.Errorf("%w: end %.3f must be after start %.3f", ErrInvalidRange, t, s.state.RangeStart)
	}
	s.state.RangeEnd = t
	s.reclampPlayheadLocked()
	s.mu.Unlock()
	s.emit()
	return nil
}

// SetRange moves both bounds at once with the same clamping and rejection rules.
func (s *Store) SetRange(start, end float64) error {
	if math.IsNaN(start) || math.IsInf(start, 0) || math.IsNaN(end) || math.IsInf(end, 0) {
		return ErrInvalidTime
	}

	s.mu.Lock()
	start = clamp(start, 0, s.state.Duration)
	end = clamp(end, 0, s.state.Duration)
	if end-start < MinRangeLength {
		s.mu.Unlock()
		return fmt.Errorf("%w: %.3f-%.3f", ErrInvalidRange, start, end)
	}
	s.state.RangeStart = start
	s.state.RangeEnd = end
	s.reclampPlayheadLocked()
	s.mu.Unlock()
	s.emit()
	return nil
}

// ExportRange trims the selected range of the active source and appends the
// result to the batch. Source and bounds are captured when the call starts.
// While an engine call is outstanding it returns ErrBusy without touching state.
// onProgress may be nil.
func (s *Store) ExportRange(ctx context.Context, onProgress media.ProgressFunc) (Clip, error) {
	job, err := s.BeginExport()
	if err != nil {
		return Clip{}, err
	}
	return job.Run(ctx, onProgress)
}

// ExportJob is an export that holds the busy flag until Run trims the
// captured range. Run must be called exactly once.
type ExportJob struct {
	store      *Store
	src        Source
	start, end float64
	ran        atomic.Bool
}

// Range returns the bounds captured when the export began.
func (j *ExportJob) Range() (start, end float64) {
	return j.start, j.end
}

// BeginExport captures the active source and selected range and claims the
// busy flag without calling the engine.
func (s *Store) BeginExport() (*ExportJob, error) {
	s.mu.Lock()
	if s.state.IsBusy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.state.ActiveSource == nil {
		s.mu.Unlock()
		return nil, ErrNoSource
	}
	start, end := s.state.RangeStart, s.state.RangeEnd
	if end-start < MinRangeLength {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %.3f-%.3f", ErrInvalidRange, start, end)
	}
	src := *s.state.ActiveSource
	s.state.IsBusy = true
	s.state.Progress = 0
	s.mu.Unlock()
	s.emit()

	return &ExportJob{store: s, src: src, start: start, end: end}, nil
}

// Run trims the captured range, captures a thumbnail and appends the clip.
func (j *ExportJob) Run(ctx context.Context, onProgress media.ProgressFunc) (Clip, error) {
	if j.ran.Swap(true) {
		return Clip{}, ErrJobDone
	}
	s, src, start, end := j.store, j.src, j.start, j.end

	s.logger.Info("exporting range",
		slog.String("source", src.Name),
		slog.Float64("start", start),
		slog.Float64("end", end),
	)
	began := s.now()

	data, err := s.trim(ctx, src, start, end, func(p float64) {
		s.mu.Lock()
		if p > s.state.Progress {
			s.state.Progress = p
		}
		s.mu.Unlock()
		s.emit()
		if onProgress != nil {
			onProgress(p)
		}
	})
	if err != nil {
		s.observer.ClipExported(s.now().Sub(began), err)
		s.mu.Lock()
		s.state.IsBusy = false
		s.state.LastError = err.Error()
		s.mu.Unlock()
		s.emit()
		s.logger.Warn("export failed",
			slog.String("source", src.Name),
			slog.String("error", err.Error()),
		)
		return Clip{}, err
	}

	thumb, err := s.processor.Thumbnail(ctx, data, src.Kind)
	if err != nil {
		s.logger.Warn("thumbnail capture failed",
			slog.String("source", src.Name),
			slog.String("error", err.Error()),
		)
		thumb = nil
	}

	s.mu.Lock()
	s.clipSeq++
	clip := Clip{
		ID:         s.newID(),
		Name:       fmt.Sprintf("%s_clip%d", baseName(src.Name), s.clipSeq),
		Data:       data,
		Thumbnail:  thumb,
		RangeStart: start,
		RangeEnd:   end,
		Extension:  src.Kind.Extension(),
		SourceName: src.Name,
		CreatedAt:  s.now(),
	}
	s.state.ClipBatch = append(s.state.ClipBatch, clip)
	s.state.IsBusy = false
	s.state.Progress = 1
	s.state.LastError = ""
	n := len(s.state.ClipBatch)
	s.mu.Unlock()
	s.emit()

	s.observer.ClipExported(s.now().Sub(began), nil)
	s.observer.BatchResized(n)
	s.logger.Info("clip exported",
		slog.String("clip_id", clip.ID),
		slog.String("name", clip.FileName()),
		slog.Float64("duration", clip.Duration()),
		slog.Int("size", len(data)),
	)
	return clip, nil
}

func (s *Store) trim(ctx context.Context, src Source, start, end float64, onProgress media.ProgressFunc) ([]byte, error) {
	rc, err := src.Data.Open()
	if err != nil {
		return nil, &media.TrimError{Reason: err.Error(), Err: err}
	}
	defer func() { _ = rc.Close() }()
	return s.processor.Trim(ctx, rc, src.Kind, start, end, onProgress)
}

// Clip returns the batch clip with the given ID.
func (s *Store) Clip(clipID string) (Clip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findClipLocked(clipID)
	if !ok {
		return Clip{}, false
	}
	return s.state.ClipBatch[i], true
}

// RemoveFromBatch removes the clip with the given ID. Removing an unknown ID
// is a no-op; the return value reports whether a clip was removed.
func (s *Store) RemoveFromBatch(clipID string) bool {
	s.mu.Lock()
	i, ok := s.findClipLocked(clipID)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.state.ClipBatch = append(s.state.ClipBatch[:i:i], s.state.ClipBatch[i+1:]...)
	n := len(s.state.ClipBatch)
	s.mu.Unlock()
	s.emit()
	s.observer.BatchResized(n)
	return true
}

// ClearBatch removes every clip.
func (s *Store) ClearBatch() {
	s.mu.Lock()
	s.state.ClipBatch = make([]Clip, 0)
	s.mu.Unlock()
	s.emit()
	s.observer.BatchResized(0)
}

// RenameClip changes the name of a clip.
func (s *Store) RenameClip(clipID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	i, ok := s.findClipLocked(clipID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
	}
	if s.state.ClipBatch[i].Name == name {
		s.mu.Unlock()
		return nil
	}
	batch := append([]Clip(nil), s.state.ClipBatch...)
	batch[i].Name = name
	s.state.ClipBatch = batch
	s.mu.Unlock()
	s.emit()
	return nil
}

// Upload returns the uploaded source called name.
func (s *Store) Upload(name string) (Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findUploadLocked(name)
	if !ok {
		return Source{}, false
	}
	return s.state.UploadHistory[i], true
}

// RemoveUpload removes name from the upload history. If it is the active
// source the session is cleared as with SetSource(nil). The removed source is
// returned so the caller can release its bytes.
func (s *Store) RemoveUpload(name string) (Source, error) {
	s.mu.Lock()
	i, ok := s.findUploadLocked(name)
	if !ok {
		s.mu.Unlock()
		return Source{}, fmt.Errorf("%w: %q", ErrSourceNotFound, name)
	}
	removed := s.state.UploadHistory[i]
	s.state.UploadHistory = append(s.state.UploadHistory[:i:i], s.state.UploadHistory[i+1:]...)
	if s.state.ActiveSource != nil && s.state.ActiveSource.Name == name {
		s.clearActiveLocked()
	}
	s.mu.Unlock()
	s.emit()
	return removed, nil
}

// RenameUpload renames an uploaded source. A new name without an extension
// keeps the old one. If the source is active, the active reference is replaced
// by the renamed source.
func (s *Store) RenameUpload(oldName, newName string) (Source, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return Source{}, ErrEmptyName
	}
	if filepath.Ext(newName) == "" {
		newName += filepath.Ext(oldName)
	}

	s.mu.Lock()
	i, ok := s.findUploadLocked(oldName)
	if !ok {
		s.mu.Unlock()
		return Source{}, fmt.Errorf("%w: %q", ErrSourceNotFound, oldName)
	}
	if newName == oldName {
		src := s.state.UploadHistory[i]
		s.mu.Unlock()
		return src, nil
	}
	if _, taken := s.findUploadLocked(newName); taken {
		s.mu.Unlock()
		return Source{}, fmt.Errorf("%w: %q", ErrNameTaken, newName)
	}

	renamed := s.state.UploadHistory[i].Renamed(newName)
	history := append([]Source(nil), s.state.UploadHistory...)
	history[i] = renamed
	s.state.UploadHistory = history
	if s.state.ActiveSource != nil && s.state.ActiveSource.Name == oldName {
		active := renamed
		s.state.ActiveSource = &active
	}
	s.mu.Unlock()
	s.emit()

	s.logger.Info("source renamed",
		slog.String("from", oldName),
		slog.String("to", newName),
	)
	return renamed, nil
}

// clearActiveLocked resets the session, keeping the upload history. An
// outstanding engine call keeps the busy flag set until it returns.
func (s *Store) clearActiveLocked() {
	busy, progress := s.state.IsBusy, s.state.Progress
	s.generation++
	s.state = initialState(s.state.UploadHistory)
	s.state.IsBusy = busy
	s.state.Progress = progress
}

func (s *Store) playBoundsLocked() (lo, hi float64) {
	if s.rangeLock && s.state.RangeEnd > s.state.RangeStart {
		return s.state.RangeStart, s.state.RangeEnd
	}
	return 0, s.state.Duration
}

func (s *Store) reclampPlayheadLocked() {
	lo, hi := s.playBoundsLocked()
	s.state.Playhead = clamp(s.state.Playhead, lo, hi)
}

func (s *Store) findClipLocked(clipID string) (int, bool) {
	for i, c := range s.state.ClipBatch {
		if c.ID == clipID {
			return i, true
		}
	}
	return -1, false
}

func (s *Store) findUploadLocked(name string) (int, bool) {
	for i, src := range s.state.UploadHistory {
		if src.Name == name {
			return i, true
		}
	}
	return -1, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
