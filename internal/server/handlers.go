package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/clipbatch/internal/editor"
	"github.com/maauso/clipbatch/internal/media"
	"github.com/maauso/clipbatch/internal/playback"
	"github.com/maauso/clipbatch/internal/storage"
	"github.com/maauso/clipbatch/internal/upload"
)

// DefaultMaxUploadBytes bounds request bodies on POST /source.
const DefaultMaxUploadBytes int64 = 2 << 30

// Recorder receives upload and publish outcomes.
type Recorder interface {
	UploadAccepted()
	UploadRejected()
	ClipPublished(err error)
}

type nopRecorder struct{}

func (nopRecorder) UploadAccepted()     {}
func (nopRecorder) UploadRejected()     {}
func (nopRecorder) ClipPublished(error) {}

// Handlers contains the HTTP handlers for the editor views.
type Handlers struct {
	store              *editor.Store
	storage            storage.Storage
	player             *playback.Server
	validator          *validator.Validate
	logger             *slog.Logger
	recorder           Recorder
	maxUploadBytes     int64
	enableAsyncProcess bool

	wg sync.WaitGroup

	mu sync.Mutex
	// files maps transient upload paths to whether a probe still uses them.
	files map[string]bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, probes and exports run to completion before the
// response is written.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithRecorder sets the recorder for upload and publish outcomes.
func WithRecorder(r Recorder) HandlerOption {
	return func(h *Handlers) {
		if r != nil {
			h.recorder = r
		}
	}
}

// WithMaxUploadBytes limits the size of uploaded sources.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *editor.Store, st storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		store:              store,
		storage:            st,
		player:             playback.NewServer(logger),
		validator:          validator.New(),
		logger:             logger,
		recorder:           nopRecorder{},
		maxUploadBytes:     DefaultMaxUploadBytes,
		enableAsyncProcess: true, // Default to enabled
		files:              make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Close waits for background actions and removes every transient upload.
func (h *Handlers) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.logger.Warn("background actions still running at shutdown")
	}

	h.mu.Lock()
	paths := make([]string, 0, len(h.files))
	for p := range h.files {
		paths = append(paths, p)
	}
	h.files = make(map[string]bool)
	h.mu.Unlock()

	return h.storage.CleanupTemp(context.WithoutCancel(ctx), paths)
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// State handles GET /state requests.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(h.store.Snapshot()))
}

// UploadSource handles POST /source requests. The multipart field "file"
// becomes the active source; its duration is probed in the background.
func (h *Handlers) UploadSource(w http.ResponseWriter, r *http.Request) {
	// Fail fast before streaming the body; BeginSource holds the real gate.
	if h.store.Snapshot().IsBusy {
		writeError(w, http.StatusConflict, editor.ErrBusy.Error(), "BUSY")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data body", "INVALID_MULTIPART")
		return
	}

	var part io.ReadCloser
	var name, declared string
	for {
		p, err := mr.NextPart()
		if err != nil {
			if isTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit", "UPLOAD_TOO_LARGE")
				return
			}
			writeError(w, http.StatusBadRequest, "missing file field", "MISSING_FILE")
			return
		}
		if p.FormName() == "file" {
			part = p
			name = filepath.Base(p.FileName())
			declared = p.Header.Get("Content-Type")
			break
		}
		_ = p.Close()
	}
	defer func() { _ = part.Close() }()

	if name == "" || name == "." || name == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "file name is required", "MISSING_FILE")
		return
	}

	kind, body, err := upload.Inspect(declared, part)
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedType) {
			h.recorder.UploadRejected()
			h.logger.Info("upload rejected",
				slog.String("name", name),
				slog.String("content_type", declared),
			)
			writeError(w, http.StatusUnsupportedMediaType, "only MP4 and MOV videos are accepted", "UNSUPPORTED_MEDIA_TYPE")
			return
		}
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit", "UPLOAD_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read upload", "INVALID_UPLOAD")
		return
	}

	path, err := h.storage.SaveTemp(r.Context(), name, body)
	if err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit", "UPLOAD_TOO_LARGE")
			return
		}
		h.logger.Error("failed to store upload",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to store upload", "UPLOAD_FAILED")
		return
	}
	h.pin(path)

	blob, err := editor.NewFileBlob(path)
	if err != nil {
		h.release(r.Context(), path)
		writeError(w, http.StatusInternalServerError, "failed to store upload", "UPLOAD_FAILED")
		return
	}
	job, err := h.store.BeginSource(editor.Source{Name: name, Kind: kind, Data: blob})
	if err != nil {
		h.release(r.Context(), path)
		if errors.Is(err, editor.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error(), "BUSY")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_UPLOAD")
		return
	}
	h.recorder.UploadAccepted()

	h.dispatch(r.Context(), "probe", func(ctx context.Context) error {
		defer h.release(ctx, path)
		return job.Run(ctx)
	})

	writeJSON(w, http.StatusAccepted, UploadResponse{
		Source: newSourceResponse(job.Source()),
		Status: "probing",
	})
}

// ClearSource handles DELETE /source requests.
func (h *Handlers) ClearSource(w http.ResponseWriter, r *http.Request) {
	if err := h.store.SetSource(r.Context(), nil); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}
	h.sweep(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// StreamSource handles GET /source/stream requests with byte-range support.
func (h *Handlers) StreamSource(w http.ResponseWriter, r *http.Request) {
	st := h.store.Snapshot()
	if st.ActiveSource == nil {
		writeError(w, http.StatusNotFound, "no active source", "NO_SOURCE")
		return
	}
	src := st.ActiveSource
	if err := h.player.Serve(w, r, src.Name, src.Kind.MIMEType(), src.Data); err != nil {
		h.logger.Error("failed to stream source",
			slog.String("name", src.Name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to stream source", "STREAM_FAILED")
	}
}

// SetPlayhead handles PUT /playhead requests.
func (h *Handlers) SetPlayhead(w http.ResponseWriter, r *http.Request) {
	var req PlayheadRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.store.SetPlayhead(*req.Time); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_TIME")
		return
	}
	h.State(w, r)
}

// SetPlaying handles PUT /playing requests.
func (h *Handlers) SetPlaying(w http.ResponseWriter, r *http.Request) {
	var req PlayingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.store.SetPlaying(*req.Playing); err != nil {
		writeError(w, http.StatusConflict, err.Error(), "NO_SOURCE")
		return
	}
	h.State(w, r)
}

// SetRange handles PUT /range requests.
func (h *Handlers) SetRange(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if !h.decode(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.Start != nil && req.End != nil:
		err = h.store.SetRange(*req.Start, *req.End)
	case req.Start != nil:
		err = h.store.SetRangeStart(*req.Start)
	case req.End != nil:
		err = h.store.SetRangeEnd(*req.End)
	default:
		writeError(w, http.StatusBadRequest, "start or end is required", "VALIDATION_ERROR")
		return
	}
	if err != nil {
		if errors.Is(err, editor.ErrInvalidRange) {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_RANGE")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_TIME")
		return
	}
	h.State(w, r)
}

// Export handles POST /export requests. The selected range of the active
// source is trimmed in the background and appended to the batch.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.BeginExport()
	if err != nil {
		switch {
		case errors.Is(err, editor.ErrBusy):
			writeError(w, http.StatusConflict, err.Error(), "BUSY")
		case errors.Is(err, editor.ErrNoSource):
			writeError(w, http.StatusConflict, err.Error(), "NO_SOURCE")
		default:
			writeError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_RANGE")
		}
		return
	}

	h.dispatch(r.Context(), "export", func(ctx context.Context) error {
		_, err := job.Run(ctx, nil)
		return err
	})

	start, end := job.Range()
	writeJSON(w, http.StatusAccepted, ExportResponse{
		Status:     "accepted",
		RangeStart: start,
		RangeEnd:   end,
	})
}

// ListBatch handles GET /batch requests.
func (h *Handlers) ListBatch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newClipResponses(h.store.Snapshot().ClipBatch))
}

// RemoveClip handles DELETE /batch/{id} requests. Unknown IDs succeed.
func (h *Handlers) RemoveClip(w http.ResponseWriter, r *http.Request) {
	h.store.RemoveFromBatch(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// ClearBatch handles DELETE /batch requests.
func (h *Handlers) ClearBatch(w http.ResponseWriter, r *http.Request) {
	h.store.ClearBatch()
	w.WriteHeader(http.StatusNoContent)
}

// RenameClip handles PATCH /batch/{id} requests.
func (h *Handlers) RenameClip(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !h.decode(w, r, &req) {
		return
	}
	clipID := chi.URLParam(r, "id")
	if err := h.store.RenameClip(clipID, req.Name); err != nil {
		switch {
		case errors.Is(err, editor.ErrClipNotFound):
			writeError(w, http.StatusNotFound, "clip not found", "CLIP_NOT_FOUND")
		default:
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		}
		return
	}
	clip, _ := h.store.Clip(clipID)
	writeJSON(w, http.StatusOK, newClipResponse(clip))
}

// DownloadClip handles GET /batch/{id}/download requests. The clip is staged
// in a transient file that is removed once the transfer ends.
func (h *Handlers) DownloadClip(w http.ResponseWriter, r *http.Request) {
	clip, ok := h.store.Clip(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "clip not found", "CLIP_NOT_FOUND")
		return
	}

	fileName := clip.FileName()
	path, err := h.storage.SaveTemp(r.Context(), fileName, bytes.NewReader(clip.Data))
	if err != nil {
		h.logger.Error("failed to stage clip",
			slog.String("clip_id", clip.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to prepare download", "DOWNLOAD_FAILED")
		return
	}
	defer h.cleanup(context.WithoutCancel(r.Context()), path)

	blob, err := editor.NewFileBlob(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to prepare download", "DOWNLOAD_FAILED")
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	if err := h.player.Serve(w, r, fileName, clipContentType(clip), blob); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to send clip", "DOWNLOAD_FAILED")
	}
}

// ClipThumbnail handles GET /batch/{id}/thumbnail requests.
func (h *Handlers) ClipThumbnail(w http.ResponseWriter, r *http.Request) {
	clip, ok := h.store.Clip(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "clip not found", "CLIP_NOT_FOUND")
		return
	}
	if len(clip.Thumbnail) == 0 {
		writeError(w, http.StatusNotFound, "clip has no thumbnail", "NO_THUMBNAIL")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(clip.Thumbnail)
}

// PublishBatch handles POST /batch/publish requests. Every clip is sent to the
// configured publish target; per-clip failures are reported, not fatal.
func (h *Handlers) PublishBatch(w http.ResponseWriter, r *http.Request) {
	clips := h.store.Snapshot().ClipBatch
	resp := PublishResponse{
		Published: make([]PublishedClip, 0, len(clips)),
		Failed:    make([]PublishFailure, 0),
	}

	for _, clip := range clips {
		location, err := h.publishClip(r.Context(), clip)
		if errors.Is(err, storage.ErrPublishNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, err.Error(), "PUBLISH_NOT_CONFIGURED")
			return
		}
		h.recorder.ClipPublished(err)
		if err != nil {
			h.logger.Warn("failed to publish clip",
				slog.String("clip_id", clip.ID),
				slog.String("error", err.Error()),
			)
			resp.Failed = append(resp.Failed, PublishFailure{ID: clip.ID, FileName: clip.FileName(), Error: err.Error()})
			continue
		}
		h.logger.Info("clip published",
			slog.String("clip_id", clip.ID),
			slog.String("location", location),
		)
		resp.Published = append(resp.Published, PublishedClip{ID: clip.ID, FileName: clip.FileName(), Location: location})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) publishClip(ctx context.Context, clip editor.Clip) (string, error) {
	fileName := clip.FileName()
	path, err := h.storage.SaveTemp(ctx, fileName, bytes.NewReader(clip.Data))
	if err != nil {
		return "", err
	}
	defer h.cleanup(context.WithoutCancel(ctx), path)

	rc, err := h.storage.LoadTemp(ctx, path)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	return h.storage.Publish(ctx, fileName, clipContentType(clip), rc)
}

// ListUploads handles GET /uploads requests.
func (h *Handlers) ListUploads(w http.ResponseWriter, r *http.Request) {
	history := h.store.Snapshot().UploadHistory
	resp := make([]SourceResponse, 0, len(history))
	for _, src := range history {
		resp = append(resp, newSourceResponse(src))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RenameUpload handles PATCH /uploads/{name} requests.
func (h *Handlers) RenameUpload(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !h.decode(w, r, &req) {
		return
	}
	renamed, err := h.store.RenameUpload(uploadName(r), req.Name)
	if err != nil {
		switch {
		case errors.Is(err, editor.ErrSourceNotFound):
			writeError(w, http.StatusNotFound, "upload not found", "UPLOAD_NOT_FOUND")
		case errors.Is(err, editor.ErrNameTaken):
			writeError(w, http.StatusConflict, err.Error(), "NAME_TAKEN")
		default:
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		}
		return
	}
	writeJSON(w, http.StatusOK, newSourceResponse(renamed))
}

// RemoveUpload handles DELETE /uploads/{name} requests.
func (h *Handlers) RemoveUpload(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.RemoveUpload(uploadName(r)); err != nil {
		writeError(w, http.StatusNotFound, "upload not found", "UPLOAD_NOT_FOUND")
		return
	}
	h.sweep(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ActivateUpload handles POST /uploads/{name}/activate requests.
func (h *Handlers) ActivateUpload(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.BeginActivate(uploadName(r))
	if err != nil {
		switch {
		case errors.Is(err, editor.ErrSourceNotFound):
			writeError(w, http.StatusNotFound, "upload not found", "UPLOAD_NOT_FOUND")
		case errors.Is(err, editor.ErrBusy):
			writeError(w, http.StatusConflict, err.Error(), "BUSY")
		default:
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_UPLOAD")
		}
		return
	}

	h.dispatch(r.Context(), "probe", job.Run)

	writeJSON(w, http.StatusAccepted, UploadResponse{
		Source: newSourceResponse(job.Source()),
		Status: "probing",
	})
}

// dispatch runs fn in the background with a detached context, or inline when
// async processing is disabled. The caller has already claimed the busy flag,
// so fn's error is only logged.
func (h *Handlers) dispatch(ctx context.Context, action string, fn func(context.Context) error) {
	if !h.enableAsyncProcess {
		if err := fn(ctx); err != nil {
			h.logger.Warn("action failed",
				slog.String("action", action),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	h.wg.Add(1)
	go func(ctx context.Context) {
		defer h.wg.Done()
		if err := fn(ctx); err != nil {
			h.logger.Warn("background action failed",
				slog.String("action", action),
				slog.String("error", err.Error()),
			)
		}
	}(context.WithoutCancel(ctx))
}

// pin records a transient upload that a probe is about to read.
func (h *Handlers) pin(path string) {
	h.mu.Lock()
	h.files[path] = true
	h.mu.Unlock()
}

// release unpins path and removes uploads no longer referenced by the store.
func (h *Handlers) release(ctx context.Context, path string) {
	h.mu.Lock()
	if _, ok := h.files[path]; ok {
		h.files[path] = false
	}
	h.mu.Unlock()
	h.sweep(ctx)
}

// sweep removes unpinned transient uploads that neither the active source
// nor the upload history refer to.
func (h *Handlers) sweep(ctx context.Context) {
	inUse := referencedPaths(h.store.Snapshot())

	h.mu.Lock()
	var stale []string
	for p, pinned := range h.files {
		if !pinned && !inUse[p] {
			stale = append(stale, p)
			delete(h.files, p)
		}
	}
	h.mu.Unlock()

	if len(stale) > 0 {
		h.cleanup(ctx, stale...)
	}
}

func (h *Handlers) cleanup(ctx context.Context, paths ...string) {
	if err := h.storage.CleanupTemp(ctx, paths); err != nil {
		h.logger.Warn("failed to remove transient files",
			slog.Any("paths", paths),
			slog.String("error", err.Error()),
		)
	}
}

// decode reads and validates a JSON request body, writing the error response
// itself. It returns false when the handler should stop.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func referencedPaths(st editor.State) map[string]bool {
	paths := make(map[string]bool)
	add := func(src editor.Source) {
		if fb, ok := src.Data.(editor.FileBlob); ok {
			paths[fb.Path] = true
		}
	}
	if st.ActiveSource != nil {
		add(*st.ActiveSource)
	}
	for _, src := range st.UploadHistory {
		add(src)
	}
	return paths
}

func uploadName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func clipContentType(c editor.Clip) string {
	if kind, ok := media.KindFromExtension(c.Extension); ok {
		return kind.MIMEType()
	}
	return "application/octet-stream"
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
