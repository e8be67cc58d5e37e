package service

import (
	"context"
	"time"

	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/internal/model"
	"github.com/MimeLyc/video-note/internal/notes"
	"github.com/MimeLyc/video-note/internal/persistence"
	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/internal/transcribe"
	"github.com/MimeLyc/video-note/internal/upload"
)

// Transcriber turns one input file into a transcript. SelectModel waits for any
// running transcription before switching models.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error)
	SelectModel(ctx context.Context, id string) error
	Degraded() bool
}

type ModelCatalog interface {
	List() []model.Descriptor
	Lookup(id string) (model.Descriptor, error)
}

type ModelRuntime interface {
	Current() (string, bool)
}

type SettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateSubtitleFormat(format string) (config.RuntimeSettings, error)
}

// History records completed extractions.
type History interface {
	RecordTranscript(ctx context.Context, rec persistence.Transcript) (persistence.Transcript, error)
	ListTranscripts(ctx context.Context, limit int) ([]persistence.Transcript, error)
}

type Deps struct {
	Uploads     *upload.Store
	Subtitles   *subtitle.Writer
	Transcriber Transcriber
	Models      ModelCatalog
	Runtime     ModelRuntime
	Settings    SettingsStore
	// History is optional.
	History    History
	Notewriter notes.Notewriter
	Notes      *notes.Store
	Prompts    *notes.Prompts
	SweepAge   time.Duration
}

// Service is the pipeline the HTTP API, the job queue and the CLI share.
type Service struct {
	uploads     *upload.Store
	subtitles   *subtitle.Writer
	transcriber Transcriber
	models      ModelCatalog
	runtime     ModelRuntime
	settings    SettingsStore
	history     History
	notewriter  notes.Notewriter
	notes       *notes.Store
	prompts     *notes.Prompts
	sweepAge    time.Duration
	now         func() time.Time
}

func New(d Deps) *Service {
	return &Service{
		uploads:     d.Uploads,
		subtitles:   d.Subtitles,
		transcriber: d.Transcriber,
		models:      d.Models,
		runtime:     d.Runtime,
		settings:    d.Settings,
		history:     d.History,
		notewriter:  d.Notewriter,
		notes:       d.Notes,
		prompts:     d.Prompts,
		sweepAge:    d.SweepAge,
		now:         time.Now,
	}
}

func (s *Service) Uploads() *upload.Store {
	return s.uploads
}

// Degraded reports whether transcripts are placeholders.
func (s *Service) Degraded() bool {
	return s.transcriber.Degraded()
}
