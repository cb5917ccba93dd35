// Package playback streams media to a player with HTTP byte-range support.
package playback

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
)

// Content is a re-openable body of known size.
type Content interface {
	Open() (io.ReadCloser, error)
	Size() int64
}

// Server writes Content to HTTP responses, honoring Range requests.
type Server struct {
	logger *slog.Logger
}

// NewServer creates a playback server.
// If logger is nil, slog.Default() is used.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// span is the part of a body a response carries.
type span struct {
	offset, length int64
	partial        bool
}

// contentRange formats the Content-Range value of a partial span.
func (sp span) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", sp.offset, sp.offset+sp.length-1, size)
}

// selectSpan picks the bytes to send for a Range header. A missing or
// malformed header selects the whole body; ok is false when the requested
// range lies outside it. Only the first range of a multi-range request is
// honored.
func selectSpan(header string, size int64) (sp span, ok bool) {
	whole := span{length: size}

	unit, set, found := strings.Cut(header, "=")
	if !found || !strings.EqualFold(strings.TrimSpace(unit), "bytes") {
		return whole, true
	}
	set, _, _ = strings.Cut(set, ",")
	first, last, found := strings.Cut(strings.TrimSpace(set), "-")
	if !found {
		return whole, true
	}

	if first == "" {
		// Suffix form: the final n bytes.
		n, valid := parseOffset(last)
		if !valid || n == 0 {
			return whole, true
		}
		if size == 0 {
			return span{}, false
		}
		n = min(n, size)
		return span{offset: size - n, length: n, partial: true}, true
	}

	from, valid := parseOffset(first)
	if !valid {
		return whole, true
	}
	to := size - 1
	if last != "" {
		if to, valid = parseOffset(last); !valid {
			return whole, true
		}
	}
	if from >= size || from > to {
		return span{}, false
	}
	to = min(to, size-1)
	return span{offset: from, length: to - from + 1, partial: true}, true
}

func parseOffset(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil && v >= 0
}

// Serve writes content named name. An empty contentType is derived from the
// name's extension. Errors returned occur before any body bytes were written;
// copy failures after the header are logged.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, name, contentType string, content Content) error {
	size := content.Size()
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	sp, ok := selectSpan(r.Header.Get("Range"), size)
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	body, err := content.Open()
	if err != nil {
		return fmt.Errorf("open content: %w", err)
	}
	defer func() { _ = body.Close() }()

	if err := skip(body, sp.offset); err != nil {
		return fmt.Errorf("seek content: %w", err)
	}

	status := http.StatusOK
	if sp.partial {
		status = http.StatusPartialContent
		w.Header().Set("Content-Range", sp.contentRange(size))
	}
	w.Header().Set("Content-Length", strconv.FormatInt(sp.length, 10))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.CopyN(w, body, sp.length); err != nil {
		s.logger.Debug("playback copy interrupted",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// skip advances r by n bytes, seeking when the underlying file allows it.
func skip(r io.Reader, n int64) error {
	if n == 0 {
		return nil
	}
	if seeker, ok := r.(io.Seeker); ok {
		_, err := seeker.Seek(n, io.SeekStart)
		return err
	}
	_, err := io.CopyN(io.Discard, r, n)
	return err
}
