package speech

import (
	"context"

	"github.com/MimeLyc/video-note/internal/subtitle"
)

// Options controls a single recognition run.
type Options struct {
	// Language is an ISO code; empty means auto-detect.
	Language    string
	BeamSize    int
	BestOf      int
	Temperature float64
	Threads     int
}

// Result is the raw output of a backend before the engine assembles text.
type Result struct {
	Segments []subtitle.Segment
	Language string
	Duration float64
}

// Handle is a resident speech model.
type Handle interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error)
	Close() error
}

// LoadRequest names a model and where it may be found or downloaded to.
type LoadRequest struct {
	ID string
	// Path is a local model location, empty when the model must be fetched.
	Path         string
	DownloadRoot string
}

// Loader turns a LoadRequest into a resident Handle. Loading blocks and may download.
type Loader interface {
	Load(ctx context.Context, req LoadRequest) (Handle, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, req LoadRequest) (Handle, error)

func (f LoaderFunc) Load(ctx context.Context, req LoadRequest) (Handle, error) {
	return f(ctx, req)
}

// PCMDecoder decodes an audio file to mono float32 samples at 16 kHz.
type PCMDecoder interface {
	DecodePCM(ctx context.Context, path string) ([]float32, error)
}
