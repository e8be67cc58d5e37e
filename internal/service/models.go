package service

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/video-note/internal/model"
	"github.com/MimeLyc/video-note/pkg/log"
)

// listing probes the filesystem; concurrent callers share one probe.
var listing singleflight.Group

// Models lists every known model with its availability and runtime state.
func (s *Service) Models() []ModelInfo {
	v, _, _ := listing.Do("models", func() (any, error) {
		return s.models.List(), nil
	})
	descriptors := v.([]model.Descriptor)

	current, loaded := s.runtime.Current()
	ret := make([]ModelInfo, 0, len(descriptors))
	for _, d := range descriptors {
		ret = append(ret, ModelInfo{
			Descriptor: d,
			Current:    d.ID == current,
			Loaded:     d.ID == current && loaded,
		})
	}
	return ret
}

func (s *Service) CurrentModel() CurrentModel {
	id, loaded := s.runtime.Current()
	return CurrentModel{ID: id, Loaded: loaded}
}

// SelectModel loads id, making it the current model. Loading an unavailable model may
// download it first.
func (s *Service) SelectModel(ctx context.Context, id string) (CurrentModel, error) {
	if _, err := s.models.Lookup(id); err != nil {
		return CurrentModel{}, err
	}
	if err := s.transcriber.SelectModel(ctx, id); err != nil {
		return CurrentModel{}, err
	}
	log.Info("Selected model %s", id)
	return s.CurrentModel(), nil
}
