package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/internal/media"
	"github.com/MimeLyc/video-note/internal/model"
	"github.com/MimeLyc/video-note/internal/notes"
	"github.com/MimeLyc/video-note/internal/persistence"
	"github.com/MimeLyc/video-note/internal/service"
	"github.com/MimeLyc/video-note/internal/speech"
	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/internal/transcribe"
	"github.com/MimeLyc/video-note/internal/upload"
	"github.com/MimeLyc/video-note/pkg/log"
)

type globalFlags struct {
	configFile string
	dataDir    string
	logLevel   string
	envFile    string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
	logFile    *log.FileLogger

	mu  sync.Mutex
	app *app
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the dotenv file, the environment and the config file, in
// that order of precedence from lowest to highest, then sets up logging.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if path := strings.TrimSpace(c.flags.envFile); path != "" {
			if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				c.configErr = fmt.Errorf("load %s: %w", path, err)
				return
			}
		}

		fromFile, err := config.LoadFile(c.flags.configFile)
		if err != nil {
			c.configErr = err
			return
		}
		cfg, err := config.NewFromEnv(fromFile, config.WithDataDir(c.flags.dataDir))
		if err != nil {
			c.configErr = err
			return
		}
		if c.flags.logLevel != "" {
			cfg.Log.Level = c.flags.logLevel
		}
		if err := c.setupLogging(cfg.Log); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) setupLogging(cfg config.LogConfig) error {
	level := log.ParseLevel(cfg.Level)
	if cfg.File == "" {
		log.InitLogger(level)
		return nil
	}
	fl, err := log.NewFileLogger(cfg.File, level)
	if err != nil {
		return err
	}
	c.logFile = fl
	log.SetLogger(fl.Logger)
	return nil
}

// ensureApp wires the pipeline once per process.
func (c *commandContext) ensureApp(ctx context.Context) (*app, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *commandContext) close() {
	c.mu.Lock()
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
	c.mu.Unlock()
	if c.logFile != nil {
		_ = c.logFile.Close()
	}
}

type app struct {
	cfg     *config.Config
	svc     *service.Service
	runtime *model.Runtime
	history *persistence.SQLiteStore
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	for _, dir := range cfg.Storage.Dirs() {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	registry := model.NewRegistry(cfg.Storage.ModelDir, cfg.Whisper.HFCacheDir, model.WithBackend(cfg.Whisper.Backend))

	defaults := cfg.DefaultRuntimeSettings()
	current := config.ResolveRuntimeSettings(cfg.Storage.SettingsFile, defaults)
	if !registry.Supported(current.CurrentModel) {
		log.Warn("Saved model %q is not supported, using %s", current.CurrentModel, defaults.CurrentModel)
		current.CurrentModel = defaults.CurrentModel
	}
	settings, err := config.NewRuntimeSettingsStore(cfg.Storage.SettingsFile, current)
	if err != nil {
		return nil, err
	}

	normalizer := media.NewNormalizer(cfg.Storage.TempDir, media.Probe())
	capability := speech.Probe(ctx, cfg.Whisper)
	if !capability.Available {
		log.Warn("Speech backend %s unavailable (%s), transcripts will be placeholders", capability.Backend, capability.Reason)
	}

	runtime := model.NewRuntime(registry, speech.NewLoader(cfg.Whisper, normalizer), settings, current.CurrentModel)
	engine := transcribe.NewEngine(runtime, normalizer, capability)

	history, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	svc := service.New(service.Deps{
		Uploads:     upload.NewStore(cfg.Storage.UploadDir, cfg.Storage.TempDir),
		Subtitles:   subtitle.NewWriter(cfg.Storage.SubtitleDir),
		Transcriber: engine,
		Models:      registry,
		Runtime:     runtime,
		Settings:    settings,
		History:     history,
		Notewriter:  notes.New(cfg.Notes),
		Notes:       notes.NewStore(cfg.Storage.NotesDir),
		Prompts:     notes.NewPrompts(cfg.Storage.PromptDir),
		SweepAge:    cfg.Sweep.MaxAge,
	})

	return &app{
		cfg:     cfg,
		svc:     svc,
		runtime: runtime,
		history: history,
	}, nil
}

func (a *app) Close() {
	if err := a.runtime.Close(); err != nil {
		log.Warn("Failed to release model: %v", err)
	}
	if err := a.history.Close(); err != nil {
		log.Warn("Failed to close database: %v", err)
	}
}
