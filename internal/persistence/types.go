package persistence

import "time"

// Transcript is one completed extraction kept in the history table.
type Transcript struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id,omitempty"`
	FileID       string    `json:"file_id"`
	ModelID      string    `json:"model_id"`
	Language     string    `json:"language"`
	Duration     float64   `json:"duration"`
	SegmentCount int       `json:"segment_count"`
	SubtitleFile string    `json:"subtitle_file"`
	Degraded     bool      `json:"degraded"`
	CreatedAt    time.Time `json:"created_at"`
}
