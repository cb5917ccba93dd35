// Package server provides the HTTP views for clipbatch.
// It includes handlers, middleware, routes, and DTOs separated from editor types.
package server

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/maauso/clipbatch/internal/editor"
)

// PlayheadRequest is the HTTP request body for moving the playhead.
type PlayheadRequest struct {
	// Time is the new playback position in seconds.
	Time *float64 `json:"time" validate:"required,gte=0"`
}

// PlayingRequest is the HTTP request body for starting or stopping playback.
type PlayingRequest struct {
	Playing *bool `json:"playing" validate:"required"`
}

// RangeRequest is the HTTP request body for editing the selected range.
// At least one bound is required.
type RangeRequest struct {
	Start *float64 `json:"start,omitempty" validate:"omitempty,gte=0"`
	End   *float64 `json:"end,omitempty" validate:"omitempty,gte=0"`
}

// RenameRequest is the HTTP request body for renaming a clip or upload.
type RenameRequest struct {
	Name string `json:"name" validate:"required,max=255,excludesall=/\\"`
}

// SourceResponse describes an uploaded source.
type SourceResponse struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
}

// ClipResponse describes a clip in the batch. Bytes are served separately.
type ClipResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	FileName     string    `json:"file_name"`
	SourceName   string    `json:"source_name"`
	RangeStart   float64   `json:"range_start"`
	RangeEnd     float64   `json:"range_end"`
	Duration     float64   `json:"duration"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	HasThumbnail bool      `json:"has_thumbnail"`
	CreatedAt    time.Time `json:"created_at"`
}

// StateResponse is the HTTP representation of the editing session.
type StateResponse struct {
	Source     *SourceResponse  `json:"source"`
	Duration   float64          `json:"duration"`
	Playhead   float64          `json:"playhead"`
	RangeStart float64          `json:"range_start"`
	RangeEnd   float64          `json:"range_end"`
	IsPlaying  bool             `json:"is_playing"`
	IsBusy     bool             `json:"is_busy"`
	Progress   float64          `json:"progress"`
	LastError  string           `json:"last_error,omitempty"`
	Uploads    []SourceResponse `json:"uploads"`
	Batch      []ClipResponse   `json:"batch"`
}

// UploadResponse is the HTTP response after accepting an upload.
type UploadResponse struct {
	Source SourceResponse `json:"source"`
	// Status is "probing" until the duration is known; follow /events or /state.
	Status string `json:"status"`
}

// ExportResponse is the HTTP response after starting an export.
type ExportResponse struct {
	Status     string  `json:"status"`
	RangeStart float64 `json:"range_start"`
	RangeEnd   float64 `json:"range_end"`
}

// PublishedClip reports one clip delivered to the publish target.
type PublishedClip struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	Location string `json:"location"`
}

// PublishFailure reports one clip that could not be published.
type PublishFailure struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// PublishResponse is the HTTP response for publishing the batch.
type PublishResponse struct {
	Published []PublishedClip  `json:"published"`
	Failed    []PublishFailure `json:"failed"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

func newSourceResponse(src editor.Source) SourceResponse {
	size := src.Size()
	return SourceResponse{
		Name:      src.Name,
		Kind:      string(src.Kind),
		Size:      size,
		SizeHuman: humanize.IBytes(uint64(max(size, 0))),
	}
}

func newClipResponse(c editor.Clip) ClipResponse {
	size := int64(len(c.Data))
	return ClipResponse{
		ID:           c.ID,
		Name:         c.Name,
		FileName:     c.FileName(),
		SourceName:   c.SourceName,
		RangeStart:   c.RangeStart,
		RangeEnd:     c.RangeEnd,
		Duration:     c.Duration(),
		Size:         size,
		SizeHuman:    humanize.IBytes(uint64(size)),
		HasThumbnail: len(c.Thumbnail) > 0,
		CreatedAt:    c.CreatedAt,
	}
}

func newClipResponses(clips []editor.Clip) []ClipResponse {
	out := make([]ClipResponse, 0, len(clips))
	for _, c := range clips {
		out = append(out, newClipResponse(c))
	}
	return out
}

func newStateResponse(st editor.State) StateResponse {
	resp := StateResponse{
		Duration:   st.Duration,
		Playhead:   st.Playhead,
		RangeStart: st.RangeStart,
		RangeEnd:   st.RangeEnd,
		IsPlaying:  st.IsPlaying,
		IsBusy:     st.IsBusy,
		Progress:   st.Progress,
		LastError:  st.LastError,
		Uploads:    make([]SourceResponse, 0, len(st.UploadHistory)),
		Batch:      newClipResponses(st.ClipBatch),
	}
	if st.ActiveSource != nil {
		src := newSourceResponse(*st.ActiveSource)
		resp.Source = &src
	}
	for _, src := range st.UploadHistory {
		resp.Uploads = append(resp.Uploads, newSourceResponse(src))
	}
	return resp
}
