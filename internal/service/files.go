package service

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/internal/upload"
	"github.com/MimeLyc/video-note/pkg/file"
	"github.com/MimeLyc/video-note/pkg/log"
)

func (s *Service) ListSubtitles() ([]file.Info, error) {
	exts := make([]string, 0, len(subtitle.SupportedFormats))
	for _, f := range subtitle.SupportedFormats {
		exts = append(exts, "."+f.Ext())
	}
	return file.ListFiles(s.subtitles.Dir(), exts...)
}

// ReadSubtitle parses a stored subtitle document by file name.
func (s *Service) ReadSubtitle(name string) (*SubtitleView, error) {
	path, ok := file.SafeJoin(s.subtitles.Dir(), name)
	if !ok {
		return nil, apperror.New(apperror.Validation, "invalid subtitle name").WithContext("name", name)
	}
	if _, err := subtitle.ParseFormat(strings.TrimPrefix(filepath.Ext(name), ".")); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.New(apperror.NotFound, "subtitle not found").WithContext("name", name)
		}
		return nil, err
	}
	f, err := subtitle.ReadBytes(content, subtitle.FormatOrDefault(strings.TrimPrefix(filepath.Ext(name), ".")), path)
	if err != nil {
		return nil, err
	}

	view := &SubtitleView{
		Name:     name,
		Format:   f.Format,
		Text:     f.Text(),
		Segments: f.Segments(),
		Content:  string(content),
	}
	if f.Language != language.Und {
		base, _ := f.Language.Base()
		view.Language = base.String()
	}
	return view, nil
}

func (s *Service) Settings() (config.RuntimeSettings, error) {
	return s.settings.GetRuntimeSettings()
}

// SetSubtitleFormat changes the format used when a request does not name one.
func (s *Service) SetSubtitleFormat(format string) (config.RuntimeSettings, error) {
	settings, err := s.settings.UpdateSubtitleFormat(format)
	if err != nil {
		return config.RuntimeSettings{}, err
	}
	log.Info("Subtitle output format set to %s", settings.SubtitleOutputFormat)
	return settings, nil
}

// Sweep removes uploads and scratch files older than the configured age.
func (s *Service) Sweep() (upload.SweepReport, error) {
	return s.uploads.Sweep(s.sweepAge)
}
