package llm

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config describes an OpenAI-compatible chat endpoint such as OpenRouter.
// SiteURL and AppName become the HTTP-Referer and X-Title attribution headers.
type Config struct {
	APIKey      string
	APIURL      string
	Model       string
	MaxTokens   int
	Temperature float64
	// Timeout is in seconds.
	Timeout int
	SiteURL string
	AppName string
}

func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("API key is required"))
	}
	if c.APIURL == "" {
		errs = append(errs, errors.New("API URL is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.MaxTokens < 1 {
		errs = append(errs, errors.New("max tokens must be positive"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, errors.New("temperature must be between 0 and 2"))
	}
	if c.Timeout < 1 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *Config) completionsURL() string {
	return strings.TrimRight(c.APIURL, "/") + "/chat/completions"
}

func (c *Config) setHeaders(h http.Header) {
	h.Set("Authorization", "Bearer "+c.APIKey)
	h.Set("Content-Type", "application/json")
	if c.SiteURL != "" {
		h.Set("HTTP-Referer", c.SiteURL)
	}
	if c.AppName != "" {
		h.Set("X-Title", c.AppName)
	}
}
