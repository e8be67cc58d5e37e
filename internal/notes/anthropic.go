package notes

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/pkg/log"
)

type anthropicWriter struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

func newAnthropicWriter(cfg config.NotesConfig) *anthropicWriter {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(cfg.APIKey),
		anthropicoption.WithMaxRetries(0),
	}
	if cfg.APIURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(cfg.APIURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, anthropicoption.WithRequestTimeout(requestTimeout(cfg.Timeout)))
	}
	return &anthropicWriter{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

func (w *anthropicWriter) Generate(ctx context.Context, text, instructions string) (string, error) {
	if err := checkText(text); err != nil {
		return "", err
	}

	log.Info("Generating note with anthropic model %s (%d chars)", w.model, len(text))
	msg, err := w.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(w.model),
		MaxTokens: w.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(text, instructions))),
		},
		Temperature: anthropic.Float(w.temperature),
	})
	if err != nil {
		return "", noteFailure(err, config.ProviderAnthropic)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", noteFailure(errors.New("no text in response"), config.ProviderAnthropic)
	}
	return strings.TrimSpace(b.String()), nil
}
