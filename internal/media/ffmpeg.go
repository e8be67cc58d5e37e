package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/video-note/pkg/log"
)

const (
	// SampleRate is the rate speech models expect.
	SampleRate = 16000

	// filterChain band-passes speech frequencies, removes noise and levels loudness.
	filterChain = "highpass=f=200,lowpass=f=3000,anlmdn=s=0.00001,loudnorm=I=-16:TP=-1.5:LRA=11"

	scratchPrefix = "preprocessed_audio_"
)

// Capabilities records which external audio tools exist. Resolved once at startup.
type Capabilities struct {
	FFmpeg  bool `json:"ffmpeg"`
	FFprobe bool `json:"ffprobe"`
}

// Probe looks up ffmpeg and ffprobe on PATH.
func Probe() Capabilities {
	ff := newFfmpeg()
	_, ffmpegErr := exec.LookPath(ff.ffmpegCmd)
	_, ffprobeErr := exec.LookPath(ff.ffprobeCmd)
	caps := Capabilities{FFmpeg: ffmpegErr == nil, FFprobe: ffprobeErr == nil}
	if !caps.FFmpeg {
		log.Warn("ffmpeg not found on PATH, audio normalization disabled")
	}
	return caps
}

type ffmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
}

func newFfmpeg() ffmpeg {
	return ffmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
	}
}

// Normalizer converts arbitrary media into mono 16 kHz MP3 scratch files.
type Normalizer struct {
	ff      ffmpeg
	tempDir string
	caps    Capabilities
	now     func() time.Time
}

func NewNormalizer(tempDir string, caps Capabilities) *Normalizer {
	return &Normalizer{
		ff:      newFfmpeg(),
		tempDir: tempDir,
		caps:    caps,
		now:     time.Now,
	}
}

// Available reports whether Normalize can do more than pass through.
func (n *Normalizer) Available() bool {
	return n.caps.FFmpeg
}

// Normalize returns the path of a new normalized scratch file, or input itself when
// normalization is unavailable or fails. It never returns an error.
func (n *Normalizer) Normalize(ctx context.Context, input string) string {
	if !n.caps.FFmpeg {
		log.Debug("Skipping audio normalization for %s: ffmpeg unavailable", input)
		return input
	}

	output, err := n.reserveScratch()
	if err != nil {
		log.Warn("Skipping audio normalization for %s: %v", input, err)
		return input
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, n.ff.ffmpegCmd, n.ff.normalizeArgs(input, output)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		n.discard(output)
		log.Warn("Audio normalization failed for %s, using original: %v: %s", input, err, lastLine(stderr.String()))
		return input
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		n.discard(output)
		log.Warn("Audio normalization produced no output for %s, using original", input)
		return input
	}

	log.Info("Normalized audio %s -> %s (%d bytes, %s)", input, output, info.Size(), time.Since(start).Round(time.Millisecond))
	return output
}

// Duration reads the container duration in seconds with ffprobe.
func (n *Normalizer) Duration(ctx context.Context, path string) (float64, error) {
	cmdPath, err := exec.LookPath(n.ff.ffprobeCmd)
	if err != nil {
		return 0, err
	}
	output, err := exec.CommandContext(ctx, cmdPath, n.ff.probeFormatArgs(path)...).Output()
	if err != nil {
		return 0, fmt.Errorf("run ffprobe: %w", err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe reported no duration for %s", path)
	}
	return strconv.ParseFloat(probe.Format.Duration, 64)
}

// DecodePCM decodes path to mono float32 samples at SampleRate.
func (n *Normalizer) DecodePCM(ctx context.Context, path string) ([]float32, error) {
	if !n.caps.FFmpeg {
		return nil, errors.New("ffmpeg unavailable: cannot decode audio")
	}
	cmd := exec.CommandContext(ctx, n.ff.ffmpegCmd, n.ff.decodeArgs(path)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("decode audio: %w: %s", err, lastLine(stderr.String()))
	}

	raw := stdout.Bytes()
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples, nil
}

// reserveScratch creates an empty, uniquely named scratch file so concurrent calls never share a path.
func (n *Normalizer) reserveScratch() (string, error) {
	if err := os.MkdirAll(n.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	at := n.now()
	for attempt := 0; attempt < 1000; attempt++ {
		path := filepath.Join(n.tempDir, scratchName(at.Add(time.Duration(attempt)*time.Microsecond)))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		_ = f.Close()
		return path, nil
	}
	return "", errors.New("no free scratch file name")
}

func (n *Normalizer) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Failed to remove scratch file %s: %v", path, err)
	}
}

// scratchName is preprocessed_audio_{YYYYmmdd_HHMMSS_micro}.mp3.
func scratchName(at time.Time) string {
	return fmt.Sprintf("%s%s_%06d.mp3", scratchPrefix, at.Format("20060102_150405"), at.Nanosecond()/1000)
}

func (f ffmpeg) normalizeArgs(input, output string) []string {
	return []string{
		"-hide_banner",
		"-i", input,
		"-vn",
		"-acodec", "mp3",
		"-ab", "128k",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", "1",
		"-af", filterChain,
		"-y",
		output,
	}
}

func (ffmpeg) probeFormatArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}
}

func (ffmpeg) decodeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(SampleRate),
		"-",
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
