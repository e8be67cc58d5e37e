package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/pkg/log"
)

// RuntimeSettings is the selection persisted across restarts.
type RuntimeSettings struct {
	CurrentModel         string    `json:"current_model"`
	SubtitleOutputFormat string    `json:"subtitle_output_format"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.CurrentModel) == "" {
		return fmt.Errorf("current_model is required")
	}
	if _, err := subtitle.ParseFormat(s.SubtitleOutputFormat); err != nil {
		return fmt.Errorf("invalid subtitle_output_format: %w", err)
	}
	return nil
}

// SubtitleFormat is the configured output format, falling back to the default.
func (s RuntimeSettings) SubtitleFormat() subtitle.Format {
	return subtitle.FormatOrDefault(s.SubtitleOutputFormat)
}

// DefaultRuntimeSettings is used when no settings file exists yet.
func (c *Config) DefaultRuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		CurrentModel:         c.Whisper.DefaultModel,
		SubtitleOutputFormat: subtitle.DefaultFormat.String(),
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

// ResolveRuntimeSettings reads the settings file, treating absence as defaults.
// Unreadable files and invalid fields fall back field by field.
func ResolveRuntimeSettings(path string, defaults RuntimeSettings) RuntimeSettings {
	loaded, err := LoadRuntimeSettingsFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Ignoring runtime settings %s: %v", path, err)
		}
		return defaults
	}

	ret := loaded
	if strings.TrimSpace(ret.CurrentModel) == "" {
		ret.CurrentModel = defaults.CurrentModel
	}
	if _, err := subtitle.ParseFormat(ret.SubtitleOutputFormat); err != nil {
		log.Warn("Invalid subtitle_output_format %q in %s, using %s", ret.SubtitleOutputFormat, path, defaults.SubtitleOutputFormat)
		ret.SubtitleOutputFormat = defaults.SubtitleOutputFormat
	}
	ret.SubtitleOutputFormat = subtitle.FormatOrDefault(ret.SubtitleOutputFormat).String()
	return ret
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

type RuntimeSettingsStore struct {
	path string
	now  func() time.Time

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		now:     time.Now,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

// SaveCurrentModel persists a model selection, keeping the other fields.
func (s *RuntimeSettingsStore) SaveCurrentModel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	next.CurrentModel = id
	_, err := s.writeLocked(next)
	return err
}

// UpdateSubtitleFormat persists the output format after checking the allow-list.
func (s *RuntimeSettingsStore) UpdateSubtitleFormat(format string) (RuntimeSettings, error) {
	f, err := subtitle.ParseFormat(format)
	if err != nil {
		return RuntimeSettings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	next.SubtitleOutputFormat = f.String()
	return s.writeLocked(next)
}

func (s *RuntimeSettingsStore) writeLocked(next RuntimeSettings) (RuntimeSettings, error) {
	next.SubtitleOutputFormat = strings.ToLower(strings.TrimSpace(next.SubtitleOutputFormat))
	next.UpdatedAt = s.now().UTC()
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}
	s.current = next
	return next, nil
}
