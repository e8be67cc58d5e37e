//go:build !whispercpp

package speech

import (
	"context"
	"errors"
)

const whisperCppCompiled = false

var errWhisperCppUnavailable = errors.New("whisper.cpp backend not compiled in (build with -tags whispercpp)")

// WhisperCppLoader is unavailable in builds without the whispercpp tag.
type WhisperCppLoader struct{}

func NewWhisperCppLoader(PCMDecoder, int) *WhisperCppLoader {
	return &WhisperCppLoader{}
}

func (*WhisperCppLoader) Load(context.Context, LoadRequest) (Handle, error) {
	return nil, errWhisperCppUnavailable
}
