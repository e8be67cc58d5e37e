package service

import (
	"github.com/MimeLyc/video-note/internal/model"
	"github.com/MimeLyc/video-note/internal/subtitle"
)

// ExtractRequest asks for a subtitle from an uploaded file.
type ExtractRequest struct {
	FileID   string `json:"file_id" binding:"required"`
	ModelID  string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`
	// Format overrides the configured subtitle format for this request.
	Format string `json:"format,omitempty"`
}

type ExtractResult struct {
	FileID       string             `json:"file_id"`
	Text         string             `json:"text"`
	Segments     []subtitle.Segment `json:"segments"`
	Language     string             `json:"language"`
	Duration     float64            `json:"duration"`
	ModelID      string             `json:"model_used"`
	Format       subtitle.Format    `json:"format"`
	SubtitleFile string             `json:"subtitle_file"`
	SubtitlePath string             `json:"subtitle_path"`
	Degraded     bool               `json:"degraded,omitempty"`
}

// NoteRequest generates a note from Text, or from a stored subtitle when Text is empty.
type NoteRequest struct {
	Text         string `json:"text,omitempty"`
	SubtitleFile string `json:"subtitle_file,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	// Prompt names a stored prompt used when Instructions is empty.
	Prompt     string `json:"prompt,omitempty"`
	Tag        string `json:"tag,omitempty"`
	SourceName string `json:"source_name,omitempty"`
}

// ModelInfo is a registry entry annotated with the runtime state.
type ModelInfo struct {
	model.Descriptor
	Current bool `json:"current"`
	Loaded  bool `json:"loaded"`
}

type CurrentModel struct {
	ID     string `json:"model"`
	Loaded bool   `json:"loaded"`
}

// SubtitleView is a stored subtitle parsed back into segments.
type SubtitleView struct {
	Name     string             `json:"name"`
	Format   subtitle.Format    `json:"format"`
	Language string             `json:"language,omitempty"`
	Text     string             `json:"text"`
	Segments []subtitle.Segment `json:"segments"`
	Content  string             `json:"content"`
}
