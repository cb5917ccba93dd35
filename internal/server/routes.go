package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maauso/clipbatch/internal/metrics"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// Metrics enables request counting and GET /metrics when set.
	Metrics *metrics.Metrics
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)
	if cfg.Metrics != nil {
		r.Use(metrics.RequestMiddleware(cfg.Metrics))
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/health", h.Health)
	r.Get("/state", h.State)
	r.Get("/events", h.Events)

	r.Route("/source", func(r chi.Router) {
		r.Post("/", h.UploadSource)
		r.Delete("/", h.ClearSource)
		r.Get("/stream", h.StreamSource)
		r.Head("/stream", h.StreamSource)
	})

	r.Put("/playhead", h.SetPlayhead)
	r.Put("/playing", h.SetPlaying)
	r.Put("/range", h.SetRange)
	r.Post("/export", h.Export)

	r.Route("/batch", func(r chi.Router) {
		r.Get("/", h.ListBatch)
		r.Delete("/", h.ClearBatch)
		r.Post("/publish", h.PublishBatch)
		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/", h.RenameClip)
			r.Delete("/", h.RemoveClip)
			r.Get("/download", h.DownloadClip)
			r.Get("/thumbnail", h.ClipThumbnail)
		})
	})

	r.Route("/uploads", func(r chi.Router) {
		r.Get("/", h.ListUploads)
		r.Route("/{name}", func(r chi.Router) {
			r.Patch("/", h.RenameUpload)
			r.Delete("/", h.RemoveUpload)
			r.Post("/activate", h.ActivateUpload)
		})
	})

	return r
}
