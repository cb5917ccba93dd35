package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/clipbatch/internal/media"
)

// fakeProcessor returns canned results and records the trimmed range.
type fakeProcessor struct {
	duration   float64
	probeErr   error
	clip       []byte
	thumb      []byte
	start, end float64
	kind       media.Kind
}

func (f *fakeProcessor) Duration(_ context.Context, data io.Reader, kind media.Kind) (float64, error) {
	_, _ = io.Copy(io.Discard, data)
	f.kind = kind
	return f.duration, f.probeErr
}

func (f *fakeProcessor) Trim(_ context.Context, data io.Reader, _ media.Kind, start, end float64, onProgress media.ProgressFunc) ([]byte, error) {
	_, _ = io.Copy(io.Discard, data)
	f.start, f.end = start, end
	for _, p := range []float64{0.25, 0.5, 1} {
		onProgress(p)
	}
	return f.clip, nil
}

func (f *fakeProcessor) Thumbnail(_ context.Context, _ []byte, _ media.Kind) ([]byte, error) {
	if f.thumb == nil {
		return nil, errors.New("no frame")
	}
	return f.thumb, nil
}

func writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("fake video payload"), 0600))
	return path
}

func TestRunTrim(t *testing.T) {
	proc := &fakeProcessor{duration: 120, clip: []byte("clip"), thumb: []byte{0xFF, 0xD8}}
	src := writeSource(t, "talk.mp4")
	outDir := filepath.Join(t.TempDir(), "clips")
	var out, progress bytes.Buffer

	path, err := runTrim(context.Background(), proc, TrimOptions{
		Source:    src,
		Start:     "00:01:00",
		End:       "90.5",
		OutDir:    outDir,
		Thumbnail: true,
	}, &out, &progress)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "talk_clip1.mp4"), path)
	assert.Equal(t, media.KindMP4, proc.kind)
	assert.InDelta(t, 60, proc.start, 1e-9)
	assert.InDelta(t, 90.5, proc.end, 1e-9)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("clip"), data)
	assert.FileExists(t, filepath.Join(outDir, "talk_clip1.jpg"))

	assert.Contains(t, out.String(), "from 00:01:00.000 to 00:01:30.500")
	assert.Contains(t, out.String(), "Created "+path)
	assert.Contains(t, progress.String(), "100%")
}

func TestRunTrim_DefaultsToWholeVideo(t *testing.T) {
	proc := &fakeProcessor{duration: 42, clip: []byte("clip")}
	src := writeSource(t, "scene.mov")

	path, err := runTrim(context.Background(), proc, TrimOptions{
		Source: src,
		Start:  "0",
		OutDir: t.TempDir(),
	}, io.Discard, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, "scene_clip1.mov", filepath.Base(path))
	assert.Equal(t, media.KindMOV, proc.kind)
	assert.InDelta(t, 0, proc.start, 1e-9)
	assert.InDelta(t, 42, proc.end, 1e-9)
}

func TestRunTrim_Errors(t *testing.T) {
	src := writeSource(t, "talk.mp4")

	t.Run("bad start", func(t *testing.T) {
		_, err := runTrim(context.Background(), &fakeProcessor{duration: 10}, TrimOptions{Source: src, Start: "x", OutDir: t.TempDir()}, io.Discard, io.Discard)
		assert.ErrorIs(t, err, errBadTimestamp)
	})

	t.Run("empty range", func(t *testing.T) {
		_, err := runTrim(context.Background(), &fakeProcessor{duration: 10}, TrimOptions{Source: src, Start: "8", End: "4", OutDir: t.TempDir()}, io.Discard, io.Discard)
		assert.Error(t, err)
	})

	t.Run("probe failure", func(t *testing.T) {
		proc := &fakeProcessor{probeErr: &media.ProbeError{Err: errors.New("moov atom not found")}}
		_, err := runTrim(context.Background(), proc, TrimOptions{Source: src, Start: "0", OutDir: t.TempDir()}, io.Discard, io.Discard)
		assert.ErrorIs(t, err, media.ErrProbe)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runTrim(context.Background(), &fakeProcessor{}, TrimOptions{Source: filepath.Join(t.TempDir(), "nope.mp4"), Start: "0"}, io.Discard, io.Discard)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestRunProbe(t *testing.T) {
	proc := &fakeProcessor{duration: 65.25}
	src := writeSource(t, "talk.mp4")
	var out bytes.Buffer

	err := runProbe(context.Background(), proc, src, &out)

	require.NoError(t, err)
	assert.Equal(t, "talk.mp4: mp4, 18 B, 00:01:05.250\n", out.String())
}

func TestRunProbe_Unsupported(t *testing.T) {
	src := writeSource(t, "notes.txt")

	err := runProbe(context.Background(), &fakeProcessor{}, src, io.Discard)

	assert.Error(t, err)
}
