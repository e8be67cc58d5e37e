package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/internal/jobs"
	"github.com/MimeLyc/video-note/internal/service"
	"github.com/MimeLyc/video-note/internal/subtitle"
)

func (s *Server) handleHealth(c *gin.Context) {
	current := s.svc.CurrentModel()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"degraded":     s.svc.Degraded(),
		"model":        current.ID,
		"model_loaded": current.Loaded,
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	if s.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeErrorMessage(c, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		writeErrorMessage(c, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}

	f, err := header.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	stored, err := s.svc.Uploads().Save(header.Filename, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (s *Server) handleDeleteFile(c *gin.Context) {
	if err := s.svc.Uploads().Delete(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) handleExtract(c *gin.Context) {
	var req service.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorMessage(c, http.StatusBadRequest, "invalid request: file_id is required")
		return
	}
	res, err := s.svc.Extract(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req service.ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorMessage(c, http.StatusBadRequest, "invalid request: file_id is required")
		return
	}
	if _, err := s.svc.Uploads().Lookup(req.FileID); err != nil {
		writeError(c, err)
		return
	}

	payload := jobs.JobPayload{
		FileID:   req.FileID,
		ModelID:  req.ModelID,
		Language: req.Language,
		Format:   req.Format,
	}
	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    "api",
		DedupeKey: payload.DedupeKey(),
		Payload:   payload,
	})
	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	c.JSON(code, gin.H{
		"created": created,
		"job":     job,
	})
}

func (s *Server) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.queue.List())
}

func (s *Server) handleListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":  s.svc.Models(),
		"current": s.svc.CurrentModel(),
	})
}

func (s *Server) handleCurrentModel(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.CurrentModel())
}

type selectModelRequest struct {
	Model string `json:"model" binding:"required"`
}

func (s *Server) handleSelectModel(c *gin.Context) {
	var req selectModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorMessage(c, http.StatusBadRequest, "invalid request: model is required")
		return
	}
	current, err := s.svc.SelectModel(c.Request.Context(), req.Model)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, current)
}

func (s *Server) handleGetSettings(c *gin.Context) {
	settings, err := s.svc.Settings()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updateSettingsRequest struct {
	CurrentModel         string `json:"current_model"`
	SubtitleOutputFormat string `json:"subtitle_output_format"`
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorMessage(c, http.StatusBadRequest, "invalid json body")
		return
	}
	// nothing is persisted unless both fields are accepted
	if req.SubtitleOutputFormat != "" {
		if _, err := subtitle.ParseFormat(req.SubtitleOutputFormat); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.CurrentModel != "" && req.CurrentModel != s.svc.CurrentModel().ID {
		if _, err := s.svc.SelectModel(c.Request.Context(), req.CurrentModel); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.SubtitleOutputFormat != "" {
		if _, err := s.svc.SetSubtitleFormat(req.SubtitleOutputFormat); err != nil {
			writeError(c, err)
			return
		}
	}
	s.handleGetSettings(c)
}

func (s *Server) handleListSubtitles(c *gin.Context) {
	files, err := s.svc.ListSubtitles()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) handleGetSubtitle(c *gin.Context) {
	view, err := s.svc.ReadSubtitle(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("download") != "" {
		c.Header("Content-Disposition", "attachment; filename=\""+view.Name+"\"")
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(view.Content))
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleCreateNote(c *gin.Context) {
	var req service.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorMessage(c, http.StatusBadRequest, "invalid json body")
		return
	}
	note, err := s.svc.GenerateNote(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (s *Server) handleListNotes(c *gin.Context) {
	files, err := s.svc.ListNotes()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) handleGetNote(c *gin.Context) {
	note, err := s.svc.ReadNote(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (s *Server) handleListPrompts(c *gin.Context) {
	prompts, err := s.svc.Prompts()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prompts)
}

func (s *Server) handleListTranscripts(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 50)
	transcripts, err := s.svc.Transcripts(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transcripts)
}

func (s *Server) handleSweep(c *gin.Context) {
	report, err := s.svc.Sweep()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// writeError maps typed failures to status codes; anything untyped is a 500.
func writeError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(apperror.TypeOf(err))
	body := gin.H{"error": apperror.Message(err)}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		body["type"] = appErr.Type.String()
	}
	c.AbortWithStatusJSON(status, body)
}

func writeErrorMessage(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
