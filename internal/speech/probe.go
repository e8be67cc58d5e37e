package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/pkg/log"
)

const probeTimeout = 30 * time.Second

// Capability says whether the configured recognition backend can run here.
type Capability struct {
	Backend   string `json:"backend"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Probe checks the configured backend once. An unavailable backend puts the engine in placeholder mode.
func Probe(ctx context.Context, cfg config.WhisperConfig) Capability {
	capability := Capability{Backend: cfg.Backend}
	switch cfg.Backend {
	case config.BackendWhisperCpp:
		if whisperCppCompiled {
			capability.Available = true
		} else {
			capability.Reason = "binary built without the whispercpp tag"
		}
	case config.BackendFasterWhisper:
		if err := probePython(ctx, cfg.PythonBin); err != nil {
			capability.Reason = err.Error()
		} else {
			capability.Available = true
		}
	default:
		capability.Reason = fmt.Sprintf("unknown backend %q", cfg.Backend)
	}

	if capability.Available {
		log.Info("Speech backend %s available", capability.Backend)
	} else {
		log.Warn("Speech backend %s unavailable (%s), transcripts will be placeholders", capability.Backend, capability.Reason)
	}
	return capability
}

func probePython(ctx context.Context, python string) error {
	bin, err := exec.LookPath(python)
	if err != nil {
		return fmt.Errorf("python interpreter %q not found", python)
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin, "-c", "import faster_whisper").CombinedOutput()
	if err != nil {
		return fmt.Errorf("faster_whisper not importable: %s", lastLine(string(out)))
	}
	return nil
}

// NewLoader returns the loader for the configured backend.
func NewLoader(cfg config.WhisperConfig, decoder PCMDecoder) Loader {
	if cfg.Backend == config.BackendWhisperCpp {
		return NewWhisperCppLoader(decoder, cfg.Threads)
	}
	return NewFasterWhisperLoader(cfg)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
