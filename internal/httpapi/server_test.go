package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/internal/jobs"
	"github.com/MimeLyc/video-note/internal/model"
	"github.com/MimeLyc/video-note/internal/notes"
	"github.com/MimeLyc/video-note/internal/persistence"
	"github.com/MimeLyc/video-note/internal/service"
	"github.com/MimeLyc/video-note/internal/speech"
	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/internal/transcribe"
	"github.com/MimeLyc/video-note/internal/upload"
)

type stubTranscriber struct {
	runtime *model.Runtime
}

func (stubTranscriber) Transcribe(_ context.Context, req transcribe.Request) (*transcribe.Result, error) {
	modelID := req.ModelID
	if modelID == "" {
		modelID = "base"
	}
	return &transcribe.Result{
		Text: "hello world",
		Segments: []subtitle.Segment{
			{Start: 0, End: 1.5, Text: "hello"},
			{Start: 1.5, End: 3, Text: "world"},
		},
		Language: "en",
		Duration: 3,
		ModelID:  modelID,
	}, nil
}

func (s stubTranscriber) SelectModel(ctx context.Context, id string) error {
	return s.runtime.EnsureLoaded(ctx, id)
}

func (stubTranscriber) Degraded() bool { return false }

type stubHandle struct{}

func (stubHandle) Transcribe(context.Context, string, speech.Options) (*speech.Result, error) {
	return &speech.Result{}, nil
}

func (stubHandle) Close() error { return nil }

type stubNotewriter struct{}

func (stubNotewriter) Generate(_ context.Context, text, _ string) (string, error) {
	return "summary of " + text, nil
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	root := t.TempDir()

	settings, err := config.NewRuntimeSettingsStore(filepath.Join(root, "settings.json"), config.RuntimeSettings{
		CurrentModel:         "base",
		SubtitleOutputFormat: "vtt",
	})
	require.NoError(t, err)

	history, err := persistence.NewSQLiteStore(filepath.Join(root, "videonote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	registry := model.NewRegistry(filepath.Join(root, "models"), filepath.Join(root, "hf"))
	loader := speech.LoaderFunc(func(context.Context, speech.LoadRequest) (speech.Handle, error) {
		return stubHandle{}, nil
	})
	runtime := model.NewRuntime(registry, loader, settings, "base")

	promptDir := filepath.Join(root, "prompts")
	require.NoError(t, os.MkdirAll(promptDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(promptDir, notes.DefaultPromptName+".txt"), []byte("Take notes."), 0o644))

	svc := service.New(service.Deps{
		Uploads:     upload.NewStore(filepath.Join(root, "uploads"), filepath.Join(root, "temp")),
		Subtitles:   subtitle.NewWriter(filepath.Join(root, "subtitles")),
		Transcriber: stubTranscriber{runtime: runtime},
		Models:      registry,
		Runtime:     runtime,
		Settings:    settings,
		History:     history,
		Notewriter:  stubNotewriter{},
		Notes:       notes.NewStore(filepath.Join(root, "notes")),
		Prompts:     notes.NewPrompts(promptDir),
		SweepAge:    time.Hour,
	})

	queue := jobs.NewQueue(1, history)
	queue.Start(svc.RunJob)
	t.Cleanup(queue.Stop)

	srv := NewServer(svc, queue, opts...)
	srv.streamInterval = 10 * time.Millisecond
	return srv
}

func do(t *testing.T, srv *Server, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func uploadFile(t *testing.T, srv *Server, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func uploaded(t *testing.T, srv *Server, name string) upload.TempFile {
	t.Helper()
	rec := uploadFile(t, srv, name, []byte("audio bytes"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stored upload.TempFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	return stored
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "base", body["model"])
	assert.Equal(t, false, body["model_loaded"])
}

func TestServer_UploadAndExtract(t *testing.T) {
	srv := newTestServer(t)
	stored := uploaded(t, srv, "My Talk.mp3")
	assert.True(t, strings.HasPrefix(stored.ID, "My_Talk_"))

	rec := do(t, srv, http.MethodPost, "/api/extract", map[string]string{"file_id": stored.ID, "format": "srt"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[service.ExtractResult](t, rec)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, subtitle.FormatSRT, res.Format)
	assert.True(t, strings.HasSuffix(res.SubtitleFile, ".srt"))

	rec = do(t, srv, http.MethodGet, "/api/subtitles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), res.SubtitleFile)

	rec = do(t, srv, http.MethodGet, "/api/subtitles/"+res.SubtitleFile, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[service.SubtitleView](t, rec)
	assert.Len(t, view.Segments, 2)

	rec = do(t, srv, http.MethodGet, "/api/subtitles/"+res.SubtitleFile+"?download=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), res.SubtitleFile)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "1\n00:00:00,000 --> 00:00:01,500\nhello\n"))

	rec = do(t, srv, http.MethodGet, "/api/transcripts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	transcripts := decode[[]persistence.Transcript](t, rec)
	require.Len(t, transcripts, 1)
	assert.Equal(t, stored.ID, transcripts[0].FileID)

	rec = do(t, srv, http.MethodDelete, "/api/files/"+stored.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/extract", map[string]string{"file_id": stored.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_UploadRejects(t *testing.T) {
	srv := newTestServer(t, WithMaxUploadBytes(1024))

	rec := uploadFile(t, srv, "notes.exe", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation", decode[map[string]any](t, rec)["type"])

	rec = uploadFile(t, srv, "big.mp3", bytes.Repeat([]byte("a"), 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/upload", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ExtractErrors(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/extract", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/extract", map[string]string{"file_id": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", decode[map[string]any](t, rec)["type"])

	stored := uploaded(t, srv, "a.wav")
	rec = do(t, srv, http.MethodPost, "/api/extract", map[string]string{"file_id": stored.ID, "format": "ass"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Jobs(t *testing.T) {
	srv := newTestServer(t)
	stored := uploaded(t, srv, "lecture.m4a")

	rec := do(t, srv, http.MethodPost, "/api/jobs", map[string]string{"file_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/jobs", map[string]string{"file_id": stored.ID})
	require.True(t, rec.Code == http.StatusCreated, rec.Body.String())
	created := decode[struct {
		Created bool                   `json:"created"`
		Job     jobs.TranscriptionJob `json:"job"`
	}](t, rec)
	require.True(t, created.Created)

	var detail jobDetailResponse
	require.Eventually(t, func() bool {
		rec := do(t, srv, http.MethodGet, "/api/jobs/"+created.Job.ID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		detail = decode[jobDetailResponse](t, rec)
		return detail.Job.Status == jobs.StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	require.NotNil(t, detail.Job.Result)
	assert.Equal(t, 2, detail.Job.Result.SegmentCount)
	assert.Equal(t, 2, detail.TotalSegments)
	require.Len(t, detail.Preview, 2)
	assert.Equal(t, "00:00:01.500", detail.Preview[1].Start)

	rec = do(t, srv, http.MethodGet, "/api/jobs/"+created.Job.ID+"?offset=1&limit=1", nil)
	paged := decode[jobDetailResponse](t, rec)
	require.Len(t, paged.Preview, 1)
	assert.Equal(t, 2, paged.Preview[0].Index)

	rec = do(t, srv, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]jobs.TranscriptionJob](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_JobStream(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "data: []\n\n"))
	assert.GreaterOrEqual(t, strings.Count(rec.Body.String(), "data: "), 2)
}

func TestServer_ModelsAndSettings(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "large-v3-turbo")

	rec = do(t, srv, http.MethodPost, "/api/models/select", map[string]string{"model": "large-v3-turbo"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.CurrentModel{ID: "large-v3-turbo", Loaded: true}, decode[service.CurrentModel](t, rec))

	rec = do(t, srv, http.MethodGet, "/api/models/current", nil)
	assert.Equal(t, "large-v3-turbo", decode[service.CurrentModel](t, rec).ID)

	rec = do(t, srv, http.MethodPost, "/api/models/select", map[string]string{"model": "gpt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UnsupportedModel", decode[map[string]any](t, rec)["type"])

	rec = do(t, srv, http.MethodPut, "/api/settings", map[string]string{"subtitle_output_format": "srt"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	settings := decode[config.RuntimeSettings](t, rec)
	assert.Equal(t, "srt", settings.SubtitleOutputFormat)
	assert.Equal(t, "large-v3-turbo", settings.CurrentModel)

	rec = do(t, srv, http.MethodPut, "/api/settings", map[string]string{"subtitle_output_format": "docx"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, "srt", decode[config.RuntimeSettings](t, rec).SubtitleOutputFormat)
}

func TestServer_UpdateSettingsIsAllOrNothing(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPut, "/api/settings", map[string]string{
		"subtitle_output_format": "srt",
		"current_model":          "tiny-unknown",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPut, "/api/settings", map[string]string{
		"subtitle_output_format": "docx",
		"current_model":          "large-v3-turbo",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/settings", nil)
	settings := decode[config.RuntimeSettings](t, rec)
	assert.Equal(t, "vtt", settings.SubtitleOutputFormat)
	assert.Equal(t, "base", settings.CurrentModel)
}

func TestServer_Notes(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/prompts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prompts := decode[[]notes.Prompt](t, rec)
	require.Len(t, prompts, 1)
	assert.Equal(t, notes.DefaultPromptName, prompts[0].Name)

	rec = do(t, srv, http.MethodPost, "/api/notes", map[string]string{"text": "a transcript", "tag": "weekly"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	note := decode[notes.Note](t, rec)
	assert.Equal(t, "summary of a transcript", note.Content)

	rec = do(t, srv, http.MethodGet, "/api/notes", nil)
	assert.Contains(t, rec.Body.String(), note.Name)

	rec = do(t, srv, http.MethodGet, "/api/notes/"+note.Name, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weekly", decode[notes.Note](t, rec).Tag)

	rec = do(t, srv, http.MethodPost, "/api/notes", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/notes/missing.md", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Sweep(t *testing.T) {
	srv := newTestServer(t)
	uploaded(t, srv, "fresh.mp3")

	rec := do(t, srv, http.MethodGet, "/api/sweep", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, rec)["deleted_count"])
}

func TestServer_ServesSPAFromStaticDir(t *testing.T) {
	staticDir := filepath.Join(t.TempDir(), "web")
	require.NoError(t, os.MkdirAll(staticDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>spa</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("console.log(1)"), 0o644))

	srv := newTestServer(t, WithUI(staticDir))

	for _, url := range []string{"/", "/notes/abc", "/missing.css"} {
		rec := do(t, srv, http.MethodGet, url, nil)
		assert.Equal(t, http.StatusOK, rec.Code, url)
		assert.Contains(t, rec.Body.String(), "spa", url)
	}

	rec := do(t, srv, http.MethodGet, "/app.js", nil)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
