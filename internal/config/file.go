package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config for TOML decoding; zero values leave the env value in place.
type fileConfig struct {
	Storage struct {
		DataDir      string `toml:"data_dir"`
		UploadDir    string `toml:"upload_dir"`
		TempDir      string `toml:"temp_dir"`
		SubtitleDir  string `toml:"subtitle_dir"`
		NotesDir     string `toml:"notes_dir"`
		ModelDir     string `toml:"model_dir"`
		PromptDir    string `toml:"prompt_dir"`
		SettingsFile string `toml:"settings_file"`
	} `toml:"storage"`
	Whisper struct {
		Backend      string `toml:"backend"`
		DefaultModel string `toml:"default_model"`
		PythonBin    string `toml:"python_bin"`
		Device       string `toml:"device"`
		ComputeType  string `toml:"compute_type"`
		Threads      *int   `toml:"threads"`
		HFCacheDir   string `toml:"hf_cache_dir"`
	} `toml:"whisper"`
	Notes struct {
		Provider    string   `toml:"provider"`
		APIKey      string   `toml:"api_key"`
		APIURL      string   `toml:"api_url"`
		Model       string   `toml:"model"`
		MaxTokens   *int     `toml:"max_tokens"`
		Temperature *float64 `toml:"temperature"`
		Timeout     *int     `toml:"timeout"`
		SiteURL     string   `toml:"site_url"`
		AppName     string   `toml:"app_name"`
	} `toml:"notes"`
	HTTP struct {
		Addr        string `toml:"addr"`
		MaxUploadMB *int64 `toml:"max_upload_mb"`
		StaticDir   string `toml:"static_dir"`
	} `toml:"http"`
	Sweep struct {
		CronExpr string `toml:"cron_expr"`
		MaxAge   string `toml:"max_age"`
	} `toml:"sweep"`
	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
}

// LoadFile decodes a TOML config file into an Option. An empty path yields a no-op.
func LoadFile(path string) (Option, error) {
	if strings.TrimSpace(path) == "" {
		return func(*Config) {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	decoder := toml.NewDecoder(f)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	var maxAge time.Duration
	if fc.Sweep.MaxAge != "" {
		maxAge, err = time.ParseDuration(fc.Sweep.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: sweep.max_age: %w", path, err)
		}
	}

	return func(c *Config) {
		setString(&c.Storage.DataDir, fc.Storage.DataDir)
		setString(&c.Storage.UploadDir, fc.Storage.UploadDir)
		setString(&c.Storage.TempDir, fc.Storage.TempDir)
		setString(&c.Storage.SubtitleDir, fc.Storage.SubtitleDir)
		setString(&c.Storage.NotesDir, fc.Storage.NotesDir)
		setString(&c.Storage.ModelDir, fc.Storage.ModelDir)
		setString(&c.Storage.PromptDir, fc.Storage.PromptDir)
		setString(&c.Storage.SettingsFile, fc.Storage.SettingsFile)

		setString(&c.Whisper.Backend, fc.Whisper.Backend)
		setString(&c.Whisper.DefaultModel, fc.Whisper.DefaultModel)
		setString(&c.Whisper.PythonBin, fc.Whisper.PythonBin)
		setString(&c.Whisper.Device, fc.Whisper.Device)
		setString(&c.Whisper.ComputeType, fc.Whisper.ComputeType)
		setString(&c.Whisper.HFCacheDir, fc.Whisper.HFCacheDir)
		if fc.Whisper.Threads != nil {
			c.Whisper.Threads = *fc.Whisper.Threads
		}

		setString(&c.Notes.Provider, fc.Notes.Provider)
		setString(&c.Notes.APIKey, fc.Notes.APIKey)
		setString(&c.Notes.APIURL, fc.Notes.APIURL)
		setString(&c.Notes.Model, fc.Notes.Model)
		setString(&c.Notes.SiteURL, fc.Notes.SiteURL)
		setString(&c.Notes.AppName, fc.Notes.AppName)
		if fc.Notes.MaxTokens != nil {
			c.Notes.MaxTokens = *fc.Notes.MaxTokens
		}
		if fc.Notes.Temperature != nil {
			c.Notes.Temperature = *fc.Notes.Temperature
		}
		if fc.Notes.Timeout != nil {
			c.Notes.Timeout = *fc.Notes.Timeout
		}

		setString(&c.HTTP.Addr, fc.HTTP.Addr)
		setString(&c.HTTP.StaticDir, fc.HTTP.StaticDir)
		if fc.HTTP.MaxUploadMB != nil {
			c.HTTP.MaxUploadMB = *fc.HTTP.MaxUploadMB
		}

		setString(&c.Sweep.CronExpr, fc.Sweep.CronExpr)
		if maxAge > 0 {
			c.Sweep.MaxAge = maxAge
		}

		setString(&c.Log.Level, fc.Log.Level)
		setString(&c.Log.File, fc.Log.File)
	}, nil
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}
