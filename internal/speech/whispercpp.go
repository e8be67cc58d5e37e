//go:build whispercpp

package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/pkg/log"
)

const whisperCppCompiled = true

// WhisperCppLoader loads ggml models in process through the whisper.cpp bindings.
type WhisperCppLoader struct {
	downloader *Downloader
	decoder    PCMDecoder
	threads    int
}

func NewWhisperCppLoader(decoder PCMDecoder, threads int) *WhisperCppLoader {
	return &WhisperCppLoader{
		downloader: NewDownloader(),
		decoder:    decoder,
		threads:    threads,
	}
}

func (l *WhisperCppLoader) Load(ctx context.Context, req LoadRequest) (Handle, error) {
	path := req.Path
	if !strings.HasSuffix(path, ".bin") {
		var err error
		path, err = l.downloader.EnsureModel(ctx, req.DownloadRoot, req.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch ggml model %s: %w", req.ID, err)
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}
	log.Info("Loaded whisper.cpp model %s", path)
	return &whisperCppHandle{model: model, decoder: l.decoder, threads: l.threads}, nil
}

type whisperCppHandle struct {
	model   whisper.Model
	decoder PCMDecoder
	threads int
}

func (h *whisperCppHandle) Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	if h.model == nil {
		return nil, errors.New("whisper model closed")
	}
	samples, err := h.decoder.DecodePCM(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.New("empty audio samples")
	}

	wctx, err := h.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create whisper context: %w", err)
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = h.threads
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	lang := opts.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return nil, err
	}
	if opts.BeamSize > 0 {
		wctx.SetBeamSize(opts.BeamSize)
	}
	wctx.SetTemperature(float32(opts.Temperature))

	encoderCb := func() bool {
		return ctx.Err() == nil
	}
	if err := wctx.Process(samples, encoderCb, nil, nil); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Duration: float64(len(samples)) / float64(whisper.SampleRate),
	}
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		result.Segments = append(result.Segments, subtitle.Segment{
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
			Text:  seg.Text,
		})
	}
	result.Language = wctx.DetectedLanguage()
	if result.Language == "" && lang != "auto" {
		result.Language = lang
	}
	return result, nil
}

func (h *whisperCppHandle) Close() error {
	if h.model == nil {
		return nil
	}
	err := h.model.Close()
	h.model = nil
	return err
}
