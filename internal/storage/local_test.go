package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directories if not exist", func(t *testing.T) {
		root := filepath.Join(os.TempDir(), "clipbatch_test_"+randomSuffix())
		defer func() { _ = os.RemoveAll(root) }()
		tempDir := filepath.Join(root, "tmp")
		exportDir := filepath.Join(root, "exports")

		storage, err := NewLocalStorage(tempDir, exportDir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.TempDir() != tempDir {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), tempDir)
		}
		if storage.ExportDir() != exportDir {
			t.Errorf("ExportDir() = %v, want %v", storage.ExportDir(), exportDir)
		}

		for _, dir := range []string{tempDir, exportDir} {
			info, err := os.Stat(dir)
			if err != nil {
				t.Fatalf("directory not created: %v", err)
			}
			if !info.IsDir() {
				t.Error("expected directory, got file")
			}
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("", "")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "clipbatch")
		if storage.TempDir() != expected {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), expected)
		}
		if storage.ExportDir() != "" {
			t.Errorf("ExportDir() = %v, want empty", storage.ExportDir())
		}
	})
}

func TestLocalStorage_SaveTemp(t *testing.T) {
	storage := setupTestStorage(t)

	t.Run("saves data to temp file", func(t *testing.T) {
		ctx := context.Background()
		data := bytes.NewReader([]byte("test data"))

		path, err := storage.SaveTemp(ctx, "test.mp4", data)
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}
		defer func() { _ = os.Remove(path) }()

		if !strings.Contains(path, "test.mp4_") {
			t.Errorf("path %s should contain 'test.mp4_'", path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "test data" {
			t.Errorf("got %q, want %q", string(content), "test data")
		}
	})

	t.Run("sanitizes upload names", func(t *testing.T) {
		path, err := storage.SaveTemp(context.Background(), "../../evil*.mov", bytes.NewReader([]byte("x")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}
		defer func() { _ = os.Remove(path) }()

		if filepath.Dir(path) != storage.TempDir() {
			t.Errorf("file %s escaped temp dir %s", path, storage.TempDir())
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.SaveTemp(ctx, "test", bytes.NewReader([]byte("data")))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_LoadTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("loads saved file", func(t *testing.T) {
		path, err := storage.SaveTemp(ctx, "load_test", bytes.NewReader([]byte("load data")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}
		defer func() { _ = os.Remove(path) }()

		reader, err := storage.LoadTemp(ctx, path)
		if err != nil {
			t.Fatalf("LoadTemp() error = %v", err)
		}
		defer func() { _ = reader.Close() }()

		content, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if string(content) != "load data" {
			t.Errorf("got %q, want %q", string(content), "load data")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		_, err := storage.LoadTemp(ctx, "/non/existent/file")
		if err == nil {
			t.Error("expected error for non-existent file")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.LoadTemp(ctx, "/some/path")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_CleanupTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			path, err := storage.SaveTemp(ctx, "cleanup", bytes.NewReader([]byte("data")))
			if err != nil {
				t.Fatalf("SaveTemp() error = %v", err)
			}
			paths = append(paths, path)
		}

		err := storage.CleanupTemp(ctx, paths)
		if err != nil {
			t.Fatalf("CleanupTemp() error = %v", err)
		}

		for _, p := range paths {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("file %s still exists", p)
			}
		}
	})

	t.Run("ignores non-existent files", func(t *testing.T) {
		err := storage.CleanupTemp(ctx, []string{"/non/existent/file"})
		if err != nil {
			t.Errorf("CleanupTemp() should ignore non-existent files, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := storage.CleanupTemp(ctx, []string{"/some/path"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		storage := setupTestStorage(t)

		_, err := storage.Publish(ctx, "clip.mp4", "video/mp4", bytes.NewReader([]byte("data")))
		if !errors.Is(err, ErrPublishNotConfigured) {
			t.Errorf("expected ErrPublishNotConfigured, got %v", err)
		}
	})

	t.Run("writes to export directory", func(t *testing.T) {
		root := filepath.Join(os.TempDir(), "clipbatch_publish_test_"+randomSuffix())
		t.Cleanup(func() { _ = os.RemoveAll(root) })
		storage, err := NewLocalStorage(filepath.Join(root, "tmp"), filepath.Join(root, "exports"))
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		location, err := storage.Publish(ctx, "talk_clip1.mp4", "video/mp4", bytes.NewReader([]byte("first")))
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if filepath.Base(location) != "talk_clip1.mp4" {
			t.Errorf("location = %s, want talk_clip1.mp4", location)
		}

		// Publishing the same name replaces the file.
		_, err = storage.Publish(ctx, "talk_clip1.mp4", "video/mp4", bytes.NewReader([]byte("second")))
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		content, err := os.ReadFile(location)
		if err != nil {
			t.Fatalf("failed to read published file: %v", err)
		}
		if string(content) != "second" {
			t.Errorf("got %q, want %q", string(content), "second")
		}

		entries, err := os.ReadDir(storage.ExportDir())
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected 1 file in export dir, got %d", len(entries))
		}
	})

	t.Run("strips directories from name", func(t *testing.T) {
		root := filepath.Join(os.TempDir(), "clipbatch_publish_test_"+randomSuffix())
		t.Cleanup(func() { _ = os.RemoveAll(root) })
		storage, err := NewLocalStorage(filepath.Join(root, "tmp"), filepath.Join(root, "exports"))
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		location, err := storage.Publish(ctx, "../outside.mp4", "", bytes.NewReader([]byte("x")))
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if filepath.Dir(location) != mustAbs(t, storage.ExportDir()) {
			t.Errorf("location %s escaped export dir", location)
		}
	})
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"clip.mp4", "clip.mp4"},
		{"a/b/c.mov", "c.mov"},
		{"star*name.mp4", "star_name.mp4"},
		{"", "file"},
		{"..", "file"},
	}
	for _, tt := range tests {
		if got := safeName(tt.in); got != tt.want {
			t.Errorf("safeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	tempDir := filepath.Join(os.TempDir(), "clipbatch_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	storage, err := NewLocalStorage(tempDir, "")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}

func mustAbs(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	if err != nil {
		t.Fatalf("Abs() error = %v", err)
	}
	return abs
}

func randomSuffix() string {
	return time.Now().Format("20060102150405.000000000")
}
