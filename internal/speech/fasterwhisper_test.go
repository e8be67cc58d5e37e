package speech

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/internal/subtitle"
)

// mockPython writes a shell script standing in for the Python interpreter.
func mockPython(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("mock interpreter needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "python3")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// echoes each request id back with a fixed two-segment transcript
const workingWorker = `echo '{"event":"ready","model":"base"}'
while read -r line; do
  id=$(echo "$line" | sed 's/.*"id":\([0-9]*\).*/\1/')
  echo '{"id":'"$id"',"language":"en","duration":6.5,"segments":[{"start":0,"end":3,"text":" Hello "},{"start":3,"end":6.5,"text":"world"}]}'
done`

func TestFasterWhisperLoader(t *testing.T) {
	t.Run("load and transcribe", func(t *testing.T) {
		python := mockPython(t, workingWorker)
		loader := NewFasterWhisperLoader(config.WhisperConfig{PythonBin: python, Device: "cpu", ComputeType: "int8"})

		handle, err := loader.Load(context.Background(), LoadRequest{ID: "base", DownloadRoot: t.TempDir()})
		require.NoError(t, err)
		defer handle.Close()

		opts := Options{BeamSize: 5, BestOf: 5}
		for i := 0; i < 2; i++ {
			result, err := handle.Transcribe(context.Background(), "/tmp/audio.mp3", opts)
			require.NoError(t, err)
			assert.Equal(t, "en", result.Language)
			assert.Equal(t, 6.5, result.Duration)
			assert.Equal(t, []subtitle.Segment{
				{Start: 0, End: 3, Text: " Hello "},
				{Start: 3, End: 6.5, Text: "world"},
			}, result.Segments)
		}
	})

	t.Run("handshake error", func(t *testing.T) {
		python := mockPython(t, `echo '{"event":"error","error":"model not found"}'
exit 1`)
		loader := NewFasterWhisperLoader(config.WhisperConfig{PythonBin: python})

		_, err := loader.Load(context.Background(), LoadRequest{ID: "nope"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model not found")
	})

	t.Run("worker reports per-request error", func(t *testing.T) {
		python := mockPython(t, `echo '{"event":"ready","model":"base"}'
while read -r line; do
  echo '{"id":1,"error":"audio file unreadable"}'
done`)
		loader := NewFasterWhisperLoader(config.WhisperConfig{PythonBin: python})
		handle, err := loader.Load(context.Background(), LoadRequest{ID: "base"})
		require.NoError(t, err)
		defer handle.Close()

		_, err = handle.Transcribe(context.Background(), "bad.mp3", Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "audio file unreadable")
	})

	t.Run("worker exit breaks the handle", func(t *testing.T) {
		python := mockPython(t, `echo '{"event":"ready","model":"base"}'
read -r line
echo 'Segmentation fault' >&2
exit 139`)
		loader := NewFasterWhisperLoader(config.WhisperConfig{PythonBin: python})
		handle, err := loader.Load(context.Background(), LoadRequest{ID: "base"})
		require.NoError(t, err)
		defer handle.Close()

		_, err = handle.Transcribe(context.Background(), "a.mp3", Options{})
		require.Error(t, err)

		_, err = handle.Transcribe(context.Background(), "a.mp3", Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unusable")
	})

	t.Run("cancelled load kills the worker", func(t *testing.T) {
		python := mockPython(t, `exec sleep 30`)
		loader := NewFasterWhisperLoader(config.WhisperConfig{PythonBin: python})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		start := time.Now()
		_, err := loader.Load(ctx, LoadRequest{ID: "base"})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 10*time.Second)
	})
}
