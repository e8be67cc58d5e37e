package model

import (
	"context"
	"sync"
	"time"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/internal/speech"
	"github.com/MimeLyc/video-note/pkg/log"
)

// SelectionStore persists the selected model so a restart resumes with it.
type SelectionStore interface {
	SaveCurrentModel(id string) error
}

// Runtime owns at most one resident speech model.
//
// EnsureLoaded calls are serialized internally. A switch closes the previous handle,
// so transcriptions using Handle must be serialized against switches by the caller;
// transcribe.Engine does this for both.
type Runtime struct {
	registry  *Registry
	loader    speech.Loader
	selection SelectionStore

	loadMu sync.Mutex

	mu       sync.RWMutex
	id       string
	handle   speech.Handle
	loadedID string
}

// NewRuntime creates a runtime whose current id is defaultID with nothing resident yet.
func NewRuntime(registry *Registry, loader speech.Loader, selection SelectionStore, defaultID string) *Runtime {
	return &Runtime{
		registry:  registry,
		loader:    loader,
		selection: selection,
		id:        defaultID,
	}
}

// EnsureLoaded makes id the resident model. It is a no-op when id is already resident.
// An empty id means the current id. On failure the previous model stays resident.
func (r *Runtime) EnsureLoaded(ctx context.Context, id string) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	r.mu.RLock()
	if id == "" {
		id = r.id
	}
	resident := r.handle != nil && r.loadedID == id
	r.mu.RUnlock()
	if resident {
		return nil
	}

	if _, err := r.registry.Lookup(id); err != nil {
		return err
	}

	req := speech.LoadRequest{ID: id, DownloadRoot: r.registry.ModelDir()}
	if path, ok := r.registry.LocalPath(id); ok {
		req.Path = path
		log.Info("Loading model %s from %s", id, path)
	} else {
		log.Info("Model %s not found locally, loading by id into %s", id, req.DownloadRoot)
	}

	start := time.Now()
	handle, err := r.loader.Load(ctx, req)
	if err != nil {
		log.Error("Failed to load model %s: %v", id, err)
		return apperror.Wrap(err, apperror.ModelLoadFailure, "failed to load model").WithContext("model", id)
	}

	r.mu.Lock()
	previous, previousID := r.handle, r.loadedID
	r.handle = handle
	r.loadedID = id
	r.id = id
	r.mu.Unlock()
	log.Info("Model %s loaded in %s", id, time.Since(start).Round(time.Millisecond))

	if previous != nil {
		if err := previous.Close(); err != nil {
			log.Warn("Failed to release model %s: %v", previousID, err)
		}
	}

	if r.selection != nil {
		if err := r.selection.SaveCurrentModel(id); err != nil {
			log.Warn("Model %s loaded but selection was not persisted: %v", id, err)
		}
	}
	return nil
}

// Resolve maps an empty id to the current one and rejects ids the registry does not know.
func (r *Runtime) Resolve(id string) (string, error) {
	if id == "" {
		r.mu.RLock()
		id = r.id
		r.mu.RUnlock()
	}
	if _, err := r.registry.Lookup(id); err != nil {
		return "", err
	}
	return id, nil
}

// Current returns the current model id and whether a model is actually resident.
func (r *Runtime) Current() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id, r.handle != nil
}

// Handle returns the resident model and its id, or nil when nothing is loaded.
func (r *Runtime) Handle() (speech.Handle, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handle, r.loadedID
}

// Close releases the resident model.
func (r *Runtime) Close() error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	r.mu.Lock()
	handle := r.handle
	r.handle = nil
	r.loadedID = ""
	r.mu.Unlock()

	if handle == nil {
		return nil
	}
	return handle.Close()
}
