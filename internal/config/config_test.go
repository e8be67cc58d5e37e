package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_DerivesDirsFromDataDir(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/vn-data")
	t.Setenv("SUBTITLE_DIR", "/srv/subs")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/vn-data", cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join("/tmp/vn-data", "uploads"), cfg.Storage.UploadDir)
	assert.Equal(t, filepath.Join("/tmp/vn-data", "temp"), cfg.Storage.TempDir)
	assert.Equal(t, "/srv/subs", cfg.Storage.SubtitleDir)
	assert.Equal(t, filepath.Join("/tmp/vn-data", "settings.json"), cfg.Storage.SettingsFile)
	assert.Equal(t, filepath.Join("/tmp/vn-data", "videonote.db"), cfg.DBPath())
}

func TestNewFromEnv_Defaults(t *testing.T) {
	cfg, err := NewFromEnv(WithDataDir(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, int64(500)<<20, cfg.HTTP.MaxUploadBytes())
	assert.Equal(t, BackendFasterWhisper, cfg.Whisper.Backend)
	assert.Equal(t, "base", cfg.Whisper.DefaultModel)
	assert.Equal(t, 2000, cfg.Notes.MaxTokens)
	assert.Equal(t, 0.7, cfg.Notes.Temperature)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Notes.Model)
	assert.Equal(t, 24*time.Hour, cfg.Sweep.MaxAge)

	rs := cfg.DefaultRuntimeSettings()
	assert.Equal(t, "base", rs.CurrentModel)
	assert.Equal(t, "vtt", rs.SubtitleOutputFormat)
}

func TestNewFromEnv_ProviderDefaults(t *testing.T) {
	t.Setenv("NOTES_PROVIDER", "gemini")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Contains(t, cfg.Notes.APIURL, "generativelanguage.googleapis.com")
	assert.NotEmpty(t, cfg.Notes.Model)
}

func TestNewFromEnv_Rejects(t *testing.T) {
	cases := map[string]string{
		"WHISPER_BACKEND": "openai-api",
		"NOTES_PROVIDER":  "cohere",
		"SWEEP_CRON":      "every hour",
		"MAX_UPLOAD_MB":   "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := NewFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_OverridesEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	dir := t.TempDir()
	path := filepath.Join(dir, "videonote.toml")
	content := `
[storage]
data_dir = "` + filepath.ToSlash(dir) + `"

[whisper]
backend = "whispercpp"
threads = 4

[notes]
provider = "anthropic"
max_tokens = 1024

[http]
addr = ":7070"

[sweep]
max_age = "2h"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opt, err := LoadFile(path)
	require.NoError(t, err)
	cfg, err := NewFromEnv(opt)
	require.NoError(t, err)

	assert.Equal(t, filepath.ToSlash(dir), cfg.Storage.DataDir)
	assert.Equal(t, BackendWhisperCpp, cfg.Whisper.Backend)
	assert.Equal(t, 4, cfg.Whisper.Threads)
	assert.Equal(t, ProviderAnthropic, cfg.Notes.Provider)
	assert.Equal(t, 1024, cfg.Notes.MaxTokens)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Sweep.MaxAge)
}

func TestLoadFile_UnknownKeyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[http]\nport = 1\n"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_EmptyPathIsNoop(t *testing.T) {
	opt, err := LoadFile("")
	require.NoError(t, err)
	cfg, err := NewFromEnv(WithDataDir(t.TempDir()), opt)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestRedacted(t *testing.T) {
	t.Setenv("NOTES_API_KEY", "sk-secret")
	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "***", cfg.Redacted().Notes.APIKey)
	assert.Equal(t, "sk-secret", cfg.Notes.APIKey)
}
