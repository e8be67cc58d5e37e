package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/video-note/internal/jobs"
	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/pkg/log"
)

const defaultJobPreviewLimit = 50

type jobDetailResponse struct {
	Job           *jobs.TranscriptionJob `json:"job"`
	Preview       []jobPreviewSegment    `json:"preview"`
	PreviewOffset int                    `json:"preview_offset"`
	PreviewLimit  int                    `json:"preview_limit"`
	TotalSegments int                    `json:"total_segments"`
}

type jobPreviewSegment struct {
	Index int    `json:"index"`
	Start string `json:"start"`
	End   string `json:"end"`
	Text  string `json:"text"`
}

// handleJobDetail returns the job and, once it succeeded, a page of its subtitle.
func (s *Server) handleJobDetail(c *gin.Context) {
	job, ok := s.queue.Get(c.Param("id"))
	if !ok {
		writeErrorMessage(c, http.StatusNotFound, "job not found")
		return
	}

	offset := parsePositiveIntWithDefault(c.Query("offset"), 0)
	limit := parsePositiveIntWithDefault(c.Query("limit"), defaultJobPreviewLimit)
	resp := jobDetailResponse{
		Job:           job,
		Preview:       []jobPreviewSegment{},
		PreviewOffset: offset,
		PreviewLimit:  limit,
	}

	if job.Status == jobs.StatusSuccess && job.Result != nil {
		view, err := s.svc.ReadSubtitle(job.Result.SubtitleFile)
		if err != nil {
			// the subtitle may have been removed since; the job itself is still valid
			log.Warn("Subtitle of job %s unavailable: %v", job.ID, err)
		} else {
			resp.TotalSegments = len(view.Segments)
			resp.Preview = buildPreview(view.Segments, view.Format, offset, limit)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func buildPreview(segments []subtitle.Segment, f subtitle.Format, offset, limit int) []jobPreviewSegment {
	total := len(segments)
	if total == 0 || offset >= total {
		return []jobPreviewSegment{}
	}
	if limit <= 0 {
		limit = defaultJobPreviewLimit
	}

	end := min(total, offset+limit)
	ret := make([]jobPreviewSegment, 0, end-offset)
	for i := offset; i < end; i++ {
		ret = append(ret, jobPreviewSegment{
			Index: i + 1,
			Start: subtitle.FormatTimecode(segments[i].Start, f),
			End:   subtitle.FormatTimecode(segments[i].End, f),
			Text:  segments[i].Text,
		})
	}
	return ret
}

func parsePositiveIntWithDefault(raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// handleJobStream pushes the job list as server-sent events until the client leaves.
func (s *Server) handleJobStream(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func() bool {
		payload, err := json.Marshal(s.queue.List())
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		w.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
