package transcribe

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/internal/speech"
	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/pkg/log"
)

// LanguageAuto asks the backend to detect the spoken language.
const LanguageAuto = "auto"

// Decoding is fixed so repeated runs over the same audio and model agree.
const (
	beamSize    = 5
	bestOf      = 5
	temperature = 0.0
)

// Normalizer prepares audio for recognition. It returns its input when it cannot.
type Normalizer interface {
	Normalize(ctx context.Context, input string) string
}

// Runtime is the model owner the engine drives.
type Runtime interface {
	Resolve(id string) (string, error)
	EnsureLoaded(ctx context.Context, id string) error
	Handle() (speech.Handle, string)
}

type Request struct {
	Path    string
	ModelID string
	// Language is an ISO code or LanguageAuto.
	Language string
}

type Result struct {
	Text     string             `json:"text"`
	Segments []subtitle.Segment `json:"segments"`
	Language string             `json:"language"`
	Duration float64            `json:"duration"`
	ModelID  string             `json:"model_id"`
	Degraded bool               `json:"degraded,omitempty"`
}

// Engine runs one transcription at a time against the runtime's resident model.
// Model switches go through the engine too, so a switch never closes a handle
// that a transcription is still using.
type Engine struct {
	mu               sync.Mutex
	runtime          Runtime
	normalizer       Normalizer
	backendAvailable bool
}

func NewEngine(runtime Runtime, normalizer Normalizer, capability speech.Capability) *Engine {
	return &Engine{
		runtime:          runtime,
		normalizer:       normalizer,
		backendAvailable: capability.Available,
	}
}

// Degraded reports whether transcripts are placeholders because no backend is available.
func (e *Engine) Degraded() bool {
	return !e.backendAvailable
}

// Transcribe loads the requested model (or keeps the current one), normalizes the
// audio and runs recognition. The normalized scratch file is always removed.
func (e *Engine) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if _, err := os.Stat(req.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.New(apperror.NotFound, "input file not found").WithContext("path", req.Path)
		}
		return nil, apperror.Wrap(err, apperror.TranscriptionFailure, "cannot read input file")
	}

	lang, err := resolveLanguage(req.Language)
	if err != nil {
		return nil, err
	}

	if !e.backendAvailable {
		modelID, err := e.runtime.Resolve(req.ModelID)
		if err != nil {
			return nil, err
		}
		return e.placeholder(req.Path, modelID), nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.runtime.EnsureLoaded(ctx, req.ModelID); err != nil {
		return nil, err
	}
	handle, modelID := e.runtime.Handle()
	if handle == nil {
		return nil, apperror.New(apperror.ModelLoadFailure, "no model resident after load")
	}

	log.Info("Transcribing %s with %s (language %s)", req.Path, modelID, orAuto(lang))
	start := time.Now()

	audio := e.normalizer.Normalize(ctx, req.Path)
	if audio != req.Path {
		defer removeScratch(audio)
	}

	raw, err := handle.Transcribe(ctx, audio, speech.Options{
		Language:    lang,
		BeamSize:    beamSize,
		BestOf:      bestOf,
		Temperature: temperature,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.TranscriptionFailure, "transcription failed").WithContext("model", modelID)
	}

	result := assemble(raw, modelID)
	if result.Language == "" {
		result.Language = lang
	}
	if result.Language == "" {
		result.Language = subtitle.DetectLanguage(result.Text)
	}
	log.Info("Transcribed %s: %d segments, language %s, %.1fs audio in %s",
		req.Path, len(result.Segments), result.Language, result.Duration, time.Since(start).Round(time.Millisecond))
	return result, nil
}

// SelectModel makes id the resident model once no transcription is running.
func (e *Engine) SelectModel(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runtime.EnsureLoaded(ctx, id)
}

func assemble(raw *speech.Result, modelID string) *Result {
	result := &Result{
		Segments: make([]subtitle.Segment, 0, len(raw.Segments)),
		Language: raw.Language,
		Duration: raw.Duration,
		ModelID:  modelID,
	}
	texts := make([]string, 0, len(raw.Segments))
	for _, seg := range raw.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		result.Segments = append(result.Segments, subtitle.Segment{Start: seg.Start, End: seg.End, Text: text})
		texts = append(texts, text)
	}
	result.Text = strings.TrimSpace(strings.Join(texts, " "))
	if result.Duration <= 0 && len(result.Segments) > 0 {
		result.Duration = result.Segments[len(result.Segments)-1].End
	}
	return result
}

var placeholderSegments = []subtitle.Segment{
	{Start: 0, End: 3, Text: "这是一个测试字幕片段。"},
	{Start: 3, End: 6, Text: "这里是第二个字幕片段。"},
	{Start: 6, End: 9, Text: "最后一个测试片段。"},
}

func (e *Engine) placeholder(path, modelID string) *Result {
	log.Warn("No speech backend available, returning placeholder transcript for %s", path)

	result := assemble(&speech.Result{
		Segments: placeholderSegments,
		Language: "zh",
		Duration: 9,
	}, modelID)
	result.Degraded = true
	return result
}

func resolveLanguage(lang string) (string, error) {
	lang = strings.TrimSpace(lang)
	if lang == "" || strings.EqualFold(lang, LanguageAuto) {
		return "", nil
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "", apperror.Wrap(err, apperror.Validation, "invalid language").WithContext("language", lang)
	}
	base, _ := tag.Base()
	return base.String(), nil
}

func removeScratch(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Failed to remove scratch file %s: %v", path, err)
	}
}

func orAuto(lang string) string {
	if lang == "" {
		return LanguageAuto
	}
	return lang
}
