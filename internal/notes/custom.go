package notes

import (
	"context"
	"strings"
	"time"

	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/internal/llm"
	"github.com/MimeLyc/video-note/pkg/log"
)

// customWriter talks to OpenRouter or another OpenAI-compatible gateway with the in-repo client.
type customWriter struct {
	client *llm.Client
}

func newCustomWriter(cfg config.NotesConfig) (*customWriter, error) {
	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.APIKey,
		APIURL:      cfg.APIURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		SiteURL:     cfg.SiteURL,
		AppName:     cfg.AppName,
	})
	if err != nil {
		return nil, err
	}
	return &customWriter{client: client}, nil
}

func (w *customWriter) Generate(ctx context.Context, text, instructions string) (string, error) {
	if err := checkText(text); err != nil {
		return "", err
	}

	log.Info("Generating note with custom model %s (%d chars)", w.client.Model(), len(text))
	out, err := w.client.Complete(ctx, "", BuildPrompt(text, instructions))
	if err != nil {
		return "", noteFailure(err, config.ProviderCustom)
	}
	if out.Truncated {
		log.Warn("Note from %s hit the token limit and may be incomplete", w.client.Model())
	}
	return strings.TrimSpace(out.Content), nil
}

func requestTimeout(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
