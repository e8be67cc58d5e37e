package service

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/video-note/internal/jobs"
	"github.com/MimeLyc/video-note/internal/persistence"
	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/internal/transcribe"
	"github.com/MimeLyc/video-note/pkg/file"
	"github.com/MimeLyc/video-note/pkg/log"
)

// Extract resolves the upload, transcribes it and writes the subtitle document.
func (s *Service) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	return s.extract(ctx, "", req)
}

// RunJob is the queue executor for extraction jobs.
func (s *Service) RunJob(ctx context.Context, job *jobs.TranscriptionJob) (*jobs.JobResult, error) {
	res, err := s.extract(ctx, job.ID, ExtractRequest{
		FileID:   job.Payload.FileID,
		ModelID:  job.Payload.ModelID,
		Language: job.Payload.Language,
		Format:   job.Payload.Format,
	})
	if err != nil {
		return nil, err
	}
	return &jobs.JobResult{
		SubtitleFile: res.SubtitleFile,
		Language:     res.Language,
		Duration:     res.Duration,
		SegmentCount: len(res.Segments),
		ModelID:      res.ModelID,
		Degraded:     res.Degraded,
	}, nil
}

// ExtractPath transcribes a local file that is not in the upload store. The result's
// FileID is the file's stem.
func (s *Service) ExtractPath(ctx context.Context, path string, req ExtractRequest) (*ExtractResult, error) {
	req.FileID = file.Stem(path)
	return s.extractFile(ctx, "", path, req)
}

func (s *Service) extract(ctx context.Context, jobID string, req ExtractRequest) (*ExtractResult, error) {
	path, err := s.uploads.Lookup(req.FileID)
	if err != nil {
		return nil, err
	}
	return s.extractFile(ctx, jobID, path, req)
}

func (s *Service) extractFile(ctx context.Context, jobID, path string, req ExtractRequest) (*ExtractResult, error) {
	format, err := s.subtitleFormat(req.Format)
	if err != nil {
		return nil, err
	}

	lang := strings.TrimSpace(req.Language)
	if lang == "" {
		lang = transcribe.LanguageAuto
	}

	res, err := s.transcriber.Transcribe(ctx, transcribe.Request{
		Path:     path,
		ModelID:  req.ModelID,
		Language: lang,
	})
	if err != nil {
		return nil, err
	}

	doc, err := s.subtitles.Write(file.Stem(path), res.Segments, format, s.now())
	if err != nil {
		return nil, err
	}
	log.Info("Wrote %s subtitle %s for %s", format, doc.Path, req.FileID)

	out := &ExtractResult{
		FileID:       req.FileID,
		Text:         res.Text,
		Segments:     res.Segments,
		Language:     res.Language,
		Duration:     res.Duration,
		ModelID:      res.ModelID,
		Format:       format,
		SubtitleFile: filepath.Base(doc.Path),
		SubtitlePath: doc.Path,
		Degraded:     res.Degraded,
	}
	s.record(ctx, jobID, out)
	return out, nil
}

// subtitleFormat validates an explicit format, else uses the configured one.
func (s *Service) subtitleFormat(requested string) (subtitle.Format, error) {
	if strings.TrimSpace(requested) != "" {
		return subtitle.ParseFormat(requested)
	}
	settings, err := s.settings.GetRuntimeSettings()
	if err != nil {
		log.Warn("Runtime settings unavailable, using %s: %v", subtitle.DefaultFormat, err)
		return subtitle.DefaultFormat, nil
	}
	return settings.SubtitleFormat(), nil
}

// record keeps history best effort; the subtitle is already written.
func (s *Service) record(ctx context.Context, jobID string, res *ExtractResult) {
	if s.history == nil {
		return
	}
	_, err := s.history.RecordTranscript(ctx, persistence.Transcript{
		JobID:        jobID,
		FileID:       res.FileID,
		ModelID:      res.ModelID,
		Language:     res.Language,
		Duration:     res.Duration,
		SegmentCount: len(res.Segments),
		SubtitleFile: res.SubtitleFile,
		Degraded:     res.Degraded,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		log.Warn("Failed to record transcript of %s: %v", res.FileID, err)
	}
}

// Transcripts lists recorded extractions, newest first.
func (s *Service) Transcripts(ctx context.Context, limit int) ([]persistence.Transcript, error) {
	if s.history == nil {
		return []persistence.Transcript{}, nil
	}
	return s.history.ListTranscripts(ctx, limit)
}
