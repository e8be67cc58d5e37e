package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the job will not run again.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

// JobPayload identifies the uploaded file and the extraction options.
type JobPayload struct {
	FileID   string `json:"file_id"`
	ModelID  string `json:"model_id,omitempty"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format,omitempty"`
}

// DedupeKey joins the fields that make two requests interchangeable.
func (p JobPayload) DedupeKey() string {
	return p.FileID + "|" + p.ModelID + "|" + p.Language + "|" + p.Format
}

type JobResult struct {
	SubtitleFile string  `json:"subtitle_file"`
	Language     string  `json:"language"`
	Duration     float64 `json:"duration"`
	SegmentCount int     `json:"segment_count"`
	ModelID      string  `json:"model_id"`
	Degraded     bool    `json:"degraded,omitempty"`
}

type TranscriptionJob struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	Result    *JobResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
