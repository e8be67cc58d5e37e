package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of a non-JSON error body ends up in an error message.
const maxErrorBody = 512

// Client sends single-turn chat completions. Safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Client{
		config:     *config,
		httpClient: &http.Client{Timeout: config.timeout()},
	}, nil
}

func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends prompt as the only user message, preceded by system when it is set.
func (c *Client) Complete(ctx context.Context, system, prompt string) (*Completion, error) {
	messages := make([]message, 0, 2)
	if system != "" {
		messages = append(messages, message{Role: "system", Content: system})
	}
	messages = append(messages, message{Role: "user", Content: prompt})

	body, err := json.Marshal(completionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.config.setHeaders(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return decodeCompletion(resp.StatusCode, raw)
}

func decodeCompletion(status int, raw []byte) (*Completion, error) {
	ok := status >= 200 && status < 300

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if !ok {
			return nil, &APIError{StatusCode: status, Message: snippet(raw)}
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}
	// gateways such as OpenRouter report some failures with a 200 and an error body
	if parsed.Error != nil && parsed.Error.Message != "" {
		parsed.Error.StatusCode = status
		return nil, parsed.Error
	}
	if !ok {
		return nil, &APIError{StatusCode: status, Message: snippet(raw)}
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	choice := parsed.Choices[0]
	return &Completion{
		Content:   choice.Message.Content,
		Truncated: choice.FinishReason == "length",
	}, nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
