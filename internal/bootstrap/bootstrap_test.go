package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/clipbatch/internal/config"
	"github.com/maauso/clipbatch/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewDependencies_LocalStorage(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{
		Port:           8080,
		AllowedOrigins: "*",
		FFmpegPath:     "ffmpeg",
		MaxUploadMB:    16,
		RangeLock:      true,
		TempDir:        filepath.Join(root, "tmp"),
		ExportDir:      filepath.Join(root, "exports"),
	}

	deps, err := NewDependencies(cfg, quietLogger())
	require.NoError(t, err)

	local, ok := deps.Storage.(*storage.LocalStorage)
	require.True(t, ok, "expected local storage, got %T", deps.Storage)
	assert.Equal(t, cfg.ExportDir, local.ExportDir())
	assert.DirExists(t, cfg.TempDir)
	assert.DirExists(t, cfg.ExportDir)

	assert.False(t, deps.Store.Snapshot().HasSource())

	rec := httptest.NewRecorder()
	deps.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	deps.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clipbatch_requests_total")
}

func TestNewDependencies_S3Storage(t *testing.T) {
	cfg := &config.Config{
		FFmpegPath:         "ffmpeg",
		MaxUploadMB:        16,
		TempDir:            t.TempDir(),
		S3Bucket:           "clips-bucket",
		S3Region:           "eu-west-1",
		S3Endpoint:         "http://localhost:9000",
		S3Prefix:           "clips",
		AWSAccessKeyID:     "key",
		AWSSecretAccessKey: "secret",
	}

	deps, err := NewDependencies(cfg, quietLogger())
	require.NoError(t, err)

	_, ok := deps.Storage.(*storage.S3Storage)
	assert.True(t, ok, "expected S3 storage, got %T", deps.Storage)
}

func TestNewProcessor_EngineUnderTempDir(t *testing.T) {
	cfg := &config.Config{FFmpegPath: "definitely-not-ffmpeg", TempDir: t.TempDir()}

	processor := NewProcessor(cfg, quietLogger())

	err := processor.Init(context.Background())
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(cfg.TempDir, "engine"))
}
