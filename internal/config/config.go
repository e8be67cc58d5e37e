package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/video-note/pkg/icron"
	"github.com/MimeLyc/video-note/pkg/log"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults, optionally
// overridden by a TOML file (see WithFile) and by Option funcs.
//
// Environment Variables:
// Storage:
// - DATA_DIR: Root data directory (default: ./data)
// - UPLOAD_DIR, TEMP_DIR, SUBTITLE_DIR, NOTES_DIR, MODEL_DIR, PROMPT_DIR: derived from DATA_DIR when empty
// - SETTINGS_FILE: Runtime settings JSON (default: {DATA_DIR}/settings.json)
//
// Whisper:
// - WHISPER_BACKEND: faster-whisper or whispercpp (default: faster-whisper)
// - WHISPER_DEFAULT_MODEL: Model used when no selection is persisted (default: base)
// - WHISPER_PYTHON: Python interpreter for the faster-whisper worker (default: python3)
// - WHISPER_DEVICE: cpu, cuda or auto (default: cpu)
// - WHISPER_COMPUTE_TYPE: faster-whisper compute type (default: int8)
// - WHISPER_THREADS: Decoder threads, 0 means backend default (default: 0)
// - HF_CACHE_DIR: Shared Hugging Face hub cache (default: ~/.cache/huggingface/hub)
//
// Notes:
// - NOTES_PROVIDER: openai, anthropic, gemini or custom (default: openai)
// - NOTES_API_KEY, NOTES_API_URL, NOTES_MODEL
// - NOTES_MAX_TOKENS (default: 2000), NOTES_TEMPERATURE (default: 0.7), NOTES_TIMEOUT seconds (default: 120)
// - NOTES_SITE_URL, NOTES_APP_NAME: optional OpenRouter headers for the custom provider
//
// HTTP:
// - HTTP_ADDR (default: :8080)
// - MAX_UPLOAD_MB (default: 500)
//
// Sweep:
// - SWEEP_CRON (default: "0 * * * *")
// - SWEEP_MAX_AGE (default: 24h)
//
// Log:
// - LOG_LEVEL (default: info)
// - LOG_FILE: optional JSON log file
type Config struct {
	Storage StorageConfig `json:"storage"`
	Whisper WhisperConfig `json:"whisper"`
	Notes   NotesConfig   `json:"notes"`
	HTTP    HTTPConfig    `json:"http"`
	Sweep   SweepConfig   `json:"sweep"`
	Log     LogConfig     `json:"log"`
}

type StorageConfig struct {
	DataDir      string `json:"data_dir"`
	UploadDir    string `json:"upload_dir"`
	TempDir      string `json:"temp_dir"`
	SubtitleDir  string `json:"subtitle_dir"`
	NotesDir     string `json:"notes_dir"`
	ModelDir     string `json:"model_dir"`
	PromptDir    string `json:"prompt_dir"`
	SettingsFile string `json:"settings_file"`
}

// Dirs returns every directory the application writes to.
func (c StorageConfig) Dirs() []string {
	return []string{c.DataDir, c.UploadDir, c.TempDir, c.SubtitleDir, c.NotesDir, c.ModelDir}
}

const (
	BackendFasterWhisper = "faster-whisper"
	BackendWhisperCpp    = "whispercpp"
)

type WhisperConfig struct {
	Backend      string `json:"backend"`
	DefaultModel string `json:"default_model"`
	PythonBin    string `json:"python_bin"`
	Device       string `json:"device"`
	ComputeType  string `json:"compute_type"`
	Threads      int    `json:"threads"`
	HFCacheDir   string `json:"hf_cache_dir"`
}

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCustom    = "custom"
)

// NotesConfig configures the note generation provider.
type NotesConfig struct {
	Provider    string  `json:"provider"`
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

type HTTPConfig struct {
	Addr        string `json:"addr"`
	MaxUploadMB int64  `json:"max_upload_mb"`
	// StaticDir serves a single-page UI when set.
	StaticDir string `json:"static_dir"`
}

// MaxUploadBytes is the request body limit for uploads.
func (c HTTPConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

type SweepConfig struct {
	CronExpr string        `json:"cron_expr"`
	MaxAge   time.Duration `json:"max_age"`
}

type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// WithDataDir moves the data root; derived directories follow unless set explicitly.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		if strings.TrimSpace(dir) != "" {
			c.Storage.DataDir = dir
		}
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Storage: StorageConfig{
			DataDir:      getEnvString("DATA_DIR", "./data"),
			UploadDir:    getEnvString("UPLOAD_DIR", ""),
			TempDir:      getEnvString("TEMP_DIR", ""),
			SubtitleDir:  getEnvString("SUBTITLE_DIR", ""),
			NotesDir:     getEnvString("NOTES_DIR", ""),
			ModelDir:     getEnvString("MODEL_DIR", ""),
			PromptDir:    getEnvString("PROMPT_DIR", ""),
			SettingsFile: getEnvString("SETTINGS_FILE", ""),
		},
		Whisper: WhisperConfig{
			Backend:      getEnvString("WHISPER_BACKEND", BackendFasterWhisper),
			DefaultModel: getEnvString("WHISPER_DEFAULT_MODEL", "base"),
			PythonBin:    getEnvString("WHISPER_PYTHON", "python3"),
			Device:       getEnvString("WHISPER_DEVICE", "cpu"),
			ComputeType:  getEnvString("WHISPER_COMPUTE_TYPE", "int8"),
			Threads:      getEnvInt("WHISPER_THREADS", 0),
			HFCacheDir:   getEnvString("HF_CACHE_DIR", defaultHFCacheDir()),
		},
		Notes: NotesConfig{
			Provider:    getEnvString("NOTES_PROVIDER", ProviderOpenAI),
			APIKey:      getEnvString("NOTES_API_KEY", ""),
			APIURL:      getEnvString("NOTES_API_URL", ""),
			Model:       getEnvString("NOTES_MODEL", ""),
			MaxTokens:   getEnvInt("NOTES_MAX_TOKENS", 2000),
			Temperature: getEnvFloat("NOTES_TEMPERATURE", 0.7),
			Timeout:     getEnvInt("NOTES_TIMEOUT", 120),
			SiteURL:     getEnvString("NOTES_SITE_URL", ""),
			AppName:     getEnvString("NOTES_APP_NAME", ""),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("HTTP_ADDR", ":8080"),
			MaxUploadMB: int64(getEnvInt("MAX_UPLOAD_MB", 500)),
			StaticDir:   getEnvString("STATIC_DIR", ""),
		},
		Sweep: SweepConfig{
			CronExpr: getEnvString("SWEEP_CRON", "0 * * * *"),
			MaxAge:   getEnvDuration("SWEEP_MAX_AGE", 24*time.Hour),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			File:  getEnvString("LOG_FILE", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	config.deriveDirs()
	config.Notes.applyProviderDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", config.Redacted())
	return config, nil
}

// DBPath is the sqlite database holding job and transcript history.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, "videonote.db")
}

// LockPath guards against two servers sharing one data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Storage.DataDir, "videonote.lock")
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	ret := *c
	if ret.Notes.APIKey != "" {
		ret.Notes.APIKey = "***"
	}
	return ret
}

func (c *Config) deriveDirs() {
	s := &c.Storage
	derive := func(target *string, name string) {
		if strings.TrimSpace(*target) == "" {
			*target = filepath.Join(s.DataDir, name)
		}
	}
	derive(&s.UploadDir, "uploads")
	derive(&s.TempDir, "temp")
	derive(&s.SubtitleDir, "subtitles")
	derive(&s.NotesDir, "notes")
	derive(&s.ModelDir, "models")
	derive(&s.PromptDir, "prompts")
	derive(&s.SettingsFile, "settings.json")
}

// applyProviderDefaults fills endpoint and model for providers that have well-known ones.
func (n *NotesConfig) applyProviderDefaults() {
	switch n.Provider {
	case ProviderOpenAI:
		if n.Model == "" {
			n.Model = "gpt-3.5-turbo"
		}
	case ProviderAnthropic:
		if n.Model == "" {
			n.Model = "claude-3-sonnet-20240229"
		}
	case ProviderGemini:
		if n.APIURL == "" {
			n.APIURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
		}
		if n.Model == "" {
			n.Model = "gemini-1.5-flash"
		}
	case ProviderCustom:
		if n.APIURL == "" {
			n.APIURL = "https://openrouter.ai/api/v1"
		}
		if n.Model == "" {
			n.Model = "openai/gpt-3.5-turbo"
		}
	}
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	switch c.Whisper.Backend {
	case BackendFasterWhisper, BackendWhisperCpp:
	default:
		return fmt.Errorf("unsupported WHISPER_BACKEND %q", c.Whisper.Backend)
	}
	if strings.TrimSpace(c.Whisper.DefaultModel) == "" {
		return fmt.Errorf("WHISPER_DEFAULT_MODEL is required")
	}
	switch c.Notes.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderCustom:
	default:
		return fmt.Errorf("unsupported NOTES_PROVIDER %q", c.Notes.Provider)
	}
	if c.Notes.MaxTokens < 1 {
		return fmt.Errorf("NOTES_MAX_TOKENS must be greater than 0")
	}
	if c.Notes.Temperature < 0 || c.Notes.Temperature > 2 {
		return fmt.Errorf("NOTES_TEMPERATURE must be between 0 and 2")
	}
	if c.HTTP.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be greater than 0")
	}
	if err := icron.Validate(c.Sweep.CronExpr); err != nil {
		return fmt.Errorf("SWEEP_CRON: %w", err)
	}
	if c.Sweep.MaxAge <= 0 {
		return fmt.Errorf("SWEEP_MAX_AGE must be positive")
	}
	return nil
}

func defaultHFCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "huggingface", "hub")
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
