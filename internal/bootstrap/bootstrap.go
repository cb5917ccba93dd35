// Package bootstrap wires the clipbatch dependency graph from configuration.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/maauso/clipbatch/internal/config"
	"github.com/maauso/clipbatch/internal/editor"
	"github.com/maauso/clipbatch/internal/media"
	"github.com/maauso/clipbatch/internal/metrics"
	"github.com/maauso/clipbatch/internal/server"
	"github.com/maauso/clipbatch/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Processor *media.Adapter
	Store     *editor.Store
	Storage   storage.Storage
	Metrics   *metrics.Metrics
	Handlers  *server.Handlers
	Router    http.Handler
}

// NewDependencies creates and initializes all dependencies for the application.
// The media engine is loaded lazily on first use.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	st, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	processor := NewProcessor(cfg, logger)
	met := metrics.New()

	store := editor.NewStore(processor,
		editor.WithLogger(logger),
		editor.WithObserver(met),
		editor.WithRangeLock(cfg.RangeLock),
	)

	handlers := server.NewHandlers(store, st, logger,
		server.WithRecorder(met),
		server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
	)

	router := server.NewRouter(handlers, logger, server.Config{
		AllowedOrigins: cfg.Origins(),
		Metrics:        met,
	})

	return &Dependencies{
		Processor: processor,
		Store:     store,
		Storage:   st,
		Metrics:   met,
		Handlers:  handlers,
		Router:    router,
	}, nil
}

// NewProcessor builds the ffmpeg-backed media adapter. Engine working
// directories live under TempDir/engine.
func NewProcessor(cfg *config.Config, logger *slog.Logger) *media.Adapter {
	factory := media.NewFFmpegEngineFactory(cfg.FFmpegPath, filepath.Join(cfg.TempDir, "engine"))
	return media.NewAdapter(factory, media.WithLogger(logger))
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("prefix", cfg.S3Prefix),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, cfg.ExportDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	if cfg.ExportDir == "" {
		logger.Info("local storage configured, publishing disabled",
			slog.String("temp_dir", cfg.TempDir),
		)
	} else {
		logger.Info("local storage configured",
			slog.String("temp_dir", cfg.TempDir),
			slog.String("export_dir", cfg.ExportDir),
		)
	}
	return localStore, nil
}
