package model

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/internal/speech"
)

const (
	LanguageMultilingual = "multilingual"
	LanguageEnglish      = "english"
)

// Descriptor describes a known model and whether it can be loaded without a download.
type Descriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Language  string `json:"language"`
	Available bool   `json:"available"`
}

type entry struct {
	id   string
	name string
	size string
}

var knownModels = []entry{
	{id: "base", name: "Base (~74 MB)", size: "74 MB"},
	{id: "large-v3-turbo", name: "Large v3 Turbo (~1550 MB)", size: "1550 MB"},
}

// Registry joins the static model list with what is present on disk. It never touches the network.
type Registry struct {
	modelDir   string
	hfCacheDir string
	backend    string
	entries    []entry
}

type RegistryOption func(*Registry)

// WithBackend limits local models to the layout the given speech backend loads.
// The default is faster-whisper.
func WithBackend(backend string) RegistryOption {
	return func(r *Registry) {
		if backend != "" {
			r.backend = backend
		}
	}
}

func NewRegistry(modelDir, hfCacheDir string, opts ...RegistryOption) *Registry {
	r := &Registry{
		modelDir:   modelDir,
		hfCacheDir: hfCacheDir,
		backend:    config.BackendFasterWhisper,
		entries:    knownModels,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ModelDir is where missing models are downloaded to.
func (r *Registry) ModelDir() string {
	return r.modelDir
}

// List returns every known model with a freshly probed availability flag.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, r.describe(e))
	}
	return out
}

// Lookup returns the descriptor for id, or an UnsupportedModel error.
func (r *Registry) Lookup(id string) (Descriptor, error) {
	for _, e := range r.entries {
		if e.id == id {
			return r.describe(e), nil
		}
	}
	return Descriptor{}, apperror.New(apperror.UnsupportedModel, "unsupported model").WithContext("model", id)
}

// Supported reports whether id is in the static registry.
func (r *Registry) Supported(id string) bool {
	for _, e := range r.entries {
		if e.id == id {
			return true
		}
	}
	return false
}

// LocalPath returns a loadable on-disk location for id: a ggml file under whisper.cpp,
// otherwise the faster-whisper model directory when it holds config.json.
func (r *Registry) LocalPath(id string) (string, bool) {
	if r.modelDir == "" {
		return "", false
	}
	path := r.fasterWhisperDir(id)
	marker := filepath.Join(path, "config.json")
	if r.backend == config.BackendWhisperCpp {
		path = filepath.Join(r.modelDir, speech.GGMLFileName(id))
		marker = path
	}
	if !isFile(marker) {
		return "", false
	}
	return path, true
}

func (r *Registry) describe(e entry) Descriptor {
	return Descriptor{
		ID:        e.id,
		Name:      e.name,
		Size:      e.size,
		Language:  languageClass(e.id),
		Available: r.available(e.id),
	}
}

func (r *Registry) available(id string) bool {
	if _, ok := r.LocalPath(id); ok {
		return true
	}
	// the shared cache only holds faster-whisper checkpoints
	if r.backend == config.BackendWhisperCpp {
		return false
	}
	// a model dir without its metadata is a broken download, not a cache hit
	if r.modelDir != "" && isDir(r.fasterWhisperDir(id)) {
		return false
	}
	return r.cached(id)
}

func (r *Registry) cached(id string) bool {
	if r.hfCacheDir == "" {
		return false
	}
	entries, err := os.ReadDir(r.hfCacheDir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.Contains(strings.ToLower(entry.Name()), id) {
			return true
		}
	}
	return false
}

func (r *Registry) fasterWhisperDir(id string) string {
	return filepath.Join(r.modelDir, "faster-whisper-"+id)
}

func languageClass(id string) string {
	if strings.HasSuffix(id, ".en") {
		return LanguageEnglish
	}
	return LanguageMultilingual
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
