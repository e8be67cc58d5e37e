package notes

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/pkg/log"
)

// openAIWriter serves OpenAI and any provider with an OpenAI-compatible endpoint, such as Gemini.
type openAIWriter struct {
	client      openai.Client
	provider    string
	model       string
	maxTokens   int64
	temperature float64
}

func newOpenAIWriter(cfg config.NotesConfig) *openAIWriter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.APIURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout(cfg.Timeout)))
	}
	return &openAIWriter{
		client:      openai.NewClient(opts...),
		provider:    cfg.Provider,
		model:       cfg.Model,
		maxTokens:   int64(cfg.MaxTokens),
		temperature: cfg.Temperature,
	}
}

func (w *openAIWriter) Generate(ctx context.Context, text, instructions string) (string, error) {
	if err := checkText(text); err != nil {
		return "", err
	}

	log.Info("Generating note with %s model %s (%d chars)", w.provider, w.model, len(text))
	resp, err := w.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(w.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(BuildPrompt(text, instructions)),
		},
		MaxTokens:   openai.Int(w.maxTokens),
		Temperature: openai.Float(w.temperature),
	})
	if err != nil {
		return "", noteFailure(err, w.provider)
	}
	if len(resp.Choices) == 0 {
		return "", noteFailure(errors.New("no choices in response"), w.provider)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
