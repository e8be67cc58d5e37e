package service

import (
	"context"
	"strings"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/internal/notes"
	"github.com/MimeLyc/video-note/pkg/file"
	"github.com/MimeLyc/video-note/pkg/log"
)

// GenerateNote asks the notewriter for a note and stores it as markdown.
func (s *Service) GenerateNote(ctx context.Context, req NoteRequest) (*notes.Note, error) {
	text := strings.TrimSpace(req.Text)
	source := req.SourceName
	if text == "" && req.SubtitleFile != "" {
		view, err := s.ReadSubtitle(req.SubtitleFile)
		if err != nil {
			return nil, err
		}
		text = view.Text
		if source == "" {
			source = req.SubtitleFile
		}
	}
	if text == "" {
		return nil, apperror.New(apperror.Validation, "text or subtitle_file is required")
	}

	instructions := strings.TrimSpace(req.Instructions)
	tag := req.Tag
	if instructions == "" && req.Prompt != "" {
		prompt, ok := s.prompts.Get(req.Prompt)
		if !ok {
			return nil, apperror.New(apperror.NotFound, "prompt not found").WithContext("prompt", req.Prompt)
		}
		instructions = prompt.Content
		if tag == "" {
			tag = prompt.Name
		}
	}

	content, err := s.notewriter.Generate(ctx, text, instructions)
	if err != nil {
		return nil, err
	}

	note, err := s.notes.Save(source, content, tag)
	if err != nil {
		return nil, err
	}
	log.Info("Saved note %s (%d chars of transcript)", note.Name, len([]rune(text)))
	return note, nil
}

func (s *Service) ListNotes() ([]file.Info, error) {
	return s.notes.List()
}

func (s *Service) ReadNote(name string) (*notes.Note, error) {
	return s.notes.Read(name)
}

func (s *Service) Prompts() ([]notes.Prompt, error) {
	return s.prompts.List()
}
