package notes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/internal/config"
)

func TestBuildPrompt(t *testing.T) {
	custom := BuildPrompt("A B C", "Summarize in English")
	assert.Equal(t, "Summarize in English\n\n以下是需要处理的字幕内容：\nA B C", custom)

	def := BuildPrompt("A B C", "  ")
	assert.True(t, strings.HasPrefix(def, "请根据以下字幕内容生成结构化的学习笔记。要求："))
	assert.True(t, strings.HasSuffix(def, "字幕内容：\n\nA B C"))
	assert.Contains(t, def, "6. 在适当的地方添加总结")
}

func notesConfig(provider, url string) config.NotesConfig {
	return config.NotesConfig{
		Provider:    provider,
		APIKey:      "test-key",
		APIURL:      url,
		Model:       "test-model",
		MaxTokens:   2000,
		Temperature: 0.7,
		Timeout:     30,
	}
}

func TestOpenAIWriter(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "  # 笔记\n\n- 要点  "}}]
		}`))
	}))
	defer srv.Close()

	for _, provider := range []string{config.ProviderOpenAI, config.ProviderGemini} {
		t.Run(provider, func(t *testing.T) {
			writer := New(notesConfig(provider, srv.URL+"/"))

			note, err := writer.Generate(context.Background(), "A B C", "")
			require.NoError(t, err)
			assert.Equal(t, "# 笔记\n\n- 要点", note)

			assert.Equal(t, "test-model", got["model"])
			assert.EqualValues(t, 2000, got["max_tokens"])
			assert.EqualValues(t, 0.7, got["temperature"])
			messages := got["messages"].([]any)
			require.Len(t, messages, 1)
			assert.Equal(t, "user", messages[0].(map[string]any)["role"])
		})
	}
}

func TestOpenAIWriterFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := New(notesConfig(config.ProviderOpenAI, srv.URL+"/")).Generate(context.Background(), "A", "")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.NoteFailure))
}

func TestAnthropicWriter(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "test-model",
			"content": [{"type": "text", "text": "## Notes"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	note, err := New(notesConfig(config.ProviderAnthropic, srv.URL)).Generate(context.Background(), "A B C", "Summarize")
	require.NoError(t, err)
	assert.Equal(t, "## Notes", note)
	assert.EqualValues(t, 2000, got["max_tokens"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
}

func TestCustomWriter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "video-note", r.Header.Get("X-Title"))
		_, _ = w.Write([]byte(`{"id": "x", "choices": [{"index": 0, "message": {"role": "assistant", "content": "note"}}]}`))
	}))
	defer srv.Close()

	cfg := notesConfig(config.ProviderCustom, srv.URL)
	cfg.AppName = "video-note"
	note, err := New(cfg).Generate(context.Background(), "A B C", "")
	require.NoError(t, err)
	assert.Equal(t, "note", note)
}

func TestNewUnavailable(t *testing.T) {
	cfg := notesConfig(config.ProviderOpenAI, "")
	cfg.APIKey = ""
	_, err := New(cfg).Generate(context.Background(), "text", "")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.Config))

	_, err = New(notesConfig("bard", "")).Generate(context.Background(), "text", "")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.Config))
}

func TestGenerateRejectsEmptyText(t *testing.T) {
	_, err := New(notesConfig(config.ProviderCustom, "http://127.0.0.1:1")).Generate(context.Background(), "  \n", "")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.Validation))
}

func TestStoreSaveAndRead(t *testing.T) {
	s := NewStore(t.TempDir())
	s.now = func() time.Time { return time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local) }

	note, err := s.Save("/data/uploads/lecture_20240101_120000.mp4", "# Title", "summary")
	require.NoError(t, err)
	assert.Equal(t, "lecture_20240101_120000_20240203_040506.md", note.Name)

	raw, err := os.ReadFile(note.Path)
	require.NoError(t, err)
	assert.Equal(t, "<!-- PROMPT_TAG: summary -->\n\n# Title", string(raw))

	read, err := s.Read(note.Name)
	require.NoError(t, err)
	assert.Equal(t, "summary", read.Tag)
	assert.Equal(t, "# Title", read.Content)

	untagged, err := s.Save("", "plain", "")
	require.NoError(t, err)
	assert.Equal(t, "notes_20240203_040506.md", untagged.Name)
	read, err = s.Read(untagged.Name)
	require.NoError(t, err)
	assert.Empty(t, read.Tag)
	assert.Equal(t, "plain", read.Content)

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStoreReadErrors(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Read("../secret.md")
	assert.True(t, apperror.Is(err, apperror.Validation))
	_, err = s.Read("notes.txt")
	assert.True(t, apperror.Is(err, apperror.Validation))
	_, err = s.Read("missing.md")
	assert.True(t, apperror.Is(err, apperror.NotFound))
}

func TestPromptsList(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"action_items.txt":        "List action items",
		"default_note_prompt.txt": "Default\n",
		"brief.txt":               "Be brief",
		"ignored.md":              "not a prompt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	p := NewPrompts(dir)

	prompts, err := p.List()
	require.NoError(t, err)
	require.Len(t, prompts, 3)
	assert.Equal(t, Prompt{Name: "default_note_prompt", Content: "Default"}, prompts[0])
	assert.Equal(t, "action_items", prompts[1].Name)
	assert.Equal(t, "brief", prompts[2].Name)

	got, ok := p.Get("brief")
	require.True(t, ok)
	assert.Equal(t, "Be brief", got.Content)
	_, ok = p.Get("../brief")
	assert.False(t, ok)

	empty, err := NewPrompts(filepath.Join(dir, "missing")).List()
	require.NoError(t, err)
	assert.Empty(t, empty)
}
