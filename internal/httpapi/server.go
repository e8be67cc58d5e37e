package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/video-note/internal/jobs"
	"github.com/MimeLyc/video-note/internal/service"
	"github.com/MimeLyc/video-note/pkg/log"
)

type Server struct {
	svc   *service.Service
	queue *jobs.Queue

	maxUploadBytes int64
	uiStaticDir    string
	streamInterval time.Duration

	router *gin.Engine
	server *http.Server
}

type Option func(*Server)

// WithUI serves a single-page app from staticDir for non-API paths.
func WithUI(staticDir string) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
	}
}

// WithMaxUploadBytes limits upload request bodies. Zero means no limit.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.maxUploadBytes = n
	}
}

func NewServer(svc *service.Service, queue *jobs.Queue, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		log.Warn("Failed to set trusted proxies: %v", err)
	}
	router.Use(
		gin.RecoveryWithWriter(log.GetLogger().Zerolog()),
		gin.LoggerWithWriter(log.GetLogger().Zerolog(), "/api/health", "/api/jobs/stream"),
	)

	s := &Server{
		svc:            svc,
		queue:          queue,
		streamInterval: time.Second,
		router:         router,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("HTTP server listening on %s", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	api := s.router.Group("/api")
	api.GET("/health", s.handleHealth)

	api.POST("/upload", s.handleUpload)
	api.DELETE("/files/:id", s.handleDeleteFile)
	api.POST("/extract", s.handleExtract)

	api.POST("/jobs", s.handleCreateJob)
	api.GET("/jobs", s.handleListJobs)
	api.GET("/jobs/stream", s.handleJobStream)
	api.GET("/jobs/:id", s.handleJobDetail)

	api.GET("/models", s.handleListModels)
	api.GET("/models/current", s.handleCurrentModel)
	api.POST("/models/select", s.handleSelectModel)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handleUpdateSettings)

	api.GET("/subtitles", s.handleListSubtitles)
	api.GET("/subtitles/:name", s.handleGetSubtitle)

	api.POST("/notes", s.handleCreateNote)
	api.GET("/notes", s.handleListNotes)
	api.GET("/notes/:name", s.handleGetNote)
	api.GET("/prompts", s.handleListPrompts)

	api.GET("/transcripts", s.handleListTranscripts)
	api.POST("/sweep", s.handleSweep)

	s.router.NoRoute(s.handleStatic)
}

func (s *Server) handleStatic(c *gin.Context) {
	if s.uiStaticDir == "" || strings.HasPrefix(c.Request.URL.Path, "/api/") {
		writeErrorMessage(c, http.StatusNotFound, "not found")
		return
	}

	rel := strings.TrimPrefix(path.Clean(c.Request.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		c.File(indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, filepath.FromSlash(rel))
	if _, err := os.Stat(filePath); err != nil {
		// unknown asset paths fall back to the app shell
		c.File(indexPath)
		return
	}
	c.File(filePath)
}
