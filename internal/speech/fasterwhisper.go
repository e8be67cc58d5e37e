package speech

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/video-note/internal/config"
	"github.com/MimeLyc/video-note/internal/subtitle"
	"github.com/MimeLyc/video-note/pkg/log"
)

//go:embed assets/worker.py
var workerScript []byte

const (
	maxWorkerLine   = 64 << 20
	workerStopGrace = 5 * time.Second
)

// FasterWhisperLoader starts one Python worker process per loaded model.
type FasterWhisperLoader struct {
	python      string
	device      string
	computeType string
	threads     int
}

func NewFasterWhisperLoader(cfg config.WhisperConfig) *FasterWhisperLoader {
	python := cfg.PythonBin
	if python == "" {
		python = "python3"
	}
	return &FasterWhisperLoader{
		python:      python,
		device:      cfg.Device,
		computeType: cfg.ComputeType,
		threads:     cfg.Threads,
	}
}

type workerEvent struct {
	Event string `json:"event"`
	Model string `json:"model"`
	Error string `json:"error"`
}

type workerRequest struct {
	ID          int     `json:"id"`
	Audio       string  `json:"audio"`
	Language    string  `json:"language,omitempty"`
	BeamSize    int     `json:"beam_size"`
	BestOf      int     `json:"best_of"`
	Temperature float64 `json:"temperature"`
}

type workerResponse struct {
	ID       int     `json:"id"`
	Error    string  `json:"error"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Load starts the worker and waits for it to report the model resident.
func (l *FasterWhisperLoader) Load(ctx context.Context, req LoadRequest) (Handle, error) {
	script, err := os.CreateTemp("", "videonote-whisper-*.py")
	if err != nil {
		return nil, fmt.Errorf("write worker script: %w", err)
	}
	scriptPath := script.Name()
	_, err = script.Write(workerScript)
	if closeErr := script.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(scriptPath)
		return nil, fmt.Errorf("write worker script: %w", err)
	}

	model := req.ID
	if req.Path != "" {
		model = req.Path
	}
	args := []string{"-u", scriptPath, "--model", model}
	if req.DownloadRoot != "" {
		if err := os.MkdirAll(req.DownloadRoot, 0o755); err != nil {
			_ = os.Remove(scriptPath)
			return nil, fmt.Errorf("create model dir: %w", err)
		}
		args = append(args, "--download-root", req.DownloadRoot)
	}
	if l.device != "" {
		args = append(args, "--device", l.device)
	}
	if l.computeType != "" {
		args = append(args, "--compute-type", l.computeType)
	}
	if l.threads > 0 {
		args = append(args, "--threads", strconv.Itoa(l.threads))
	}

	h, err := startWorker(l.python, args, scriptPath)
	if err != nil {
		_ = os.Remove(scriptPath)
		return nil, err
	}

	log.Info("Starting faster-whisper worker for %s (pid %d)", model, h.cmd.Process.Pid)
	line, err := h.readLine(ctx)
	if err != nil {
		_ = h.kill()
		return nil, fmt.Errorf("faster-whisper worker did not start: %w%s", err, h.stderrSuffix())
	}
	var event workerEvent
	if err := json.Unmarshal(line, &event); err != nil {
		_ = h.kill()
		return nil, fmt.Errorf("parse worker handshake: %w", err)
	}
	if event.Event != "ready" {
		_ = h.kill()
		return nil, fmt.Errorf("load model %s: %s", req.ID, event.Error)
	}
	return h, nil
}

type workerHandle struct {
	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Scanner
	scriptPath string
	nextID     int
	broken     error

	waitOnce sync.Once
	waitErr  error

	stderrMu   sync.Mutex
	stderrLast string
	stderrDone chan struct{}
}

func startWorker(python string, args []string, scriptPath string) (*workerHandle, error) {
	cmd := exec.Command(python, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start faster-whisper worker: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxWorkerLine)
	h := &workerHandle{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     scanner,
		scriptPath: scriptPath,
		stderrDone: make(chan struct{}),
	}
	go h.drainStderr(stderr)
	return h, nil
}

func (h *workerHandle) drainStderr(r io.Reader) {
	defer close(h.stderrDone)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		log.Debug("faster-whisper: %s", text)
		h.stderrMu.Lock()
		h.stderrLast = text
		h.stderrMu.Unlock()
	}
}

func (h *workerHandle) stderrSuffix() string {
	h.stderrMu.Lock()
	defer h.stderrMu.Unlock()
	if h.stderrLast == "" {
		return ""
	}
	return ": " + h.stderrLast
}

// readLine waits for one stdout line; cancelling ctx kills the worker since the line can no longer be matched.
func (h *workerHandle) readLine(ctx context.Context) ([]byte, error) {
	type lineResult struct {
		line []byte
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		if h.stdout.Scan() {
			ch <- lineResult{line: append([]byte(nil), h.stdout.Bytes()...)}
			return
		}
		err := h.stdout.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		ch <- lineResult{err: err}
	}()

	select {
	case <-ctx.Done():
		_ = h.kill()
		return nil, ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}

func (h *workerHandle) Transcribe(ctx context.Context, audioPath string, opts Options) (*Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.broken != nil {
		return nil, fmt.Errorf("faster-whisper worker unusable: %w", h.broken)
	}

	h.nextID++
	req := workerRequest{
		ID:          h.nextID,
		Audio:       audioPath,
		Language:    opts.Language,
		BeamSize:    opts.BeamSize,
		BestOf:      opts.BestOf,
		Temperature: opts.Temperature,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := h.stdin.Write(append(payload, '\n')); err != nil {
		h.broken = err
		return nil, fmt.Errorf("send to faster-whisper worker: %w", err)
	}

	line, err := h.readLine(ctx)
	if err != nil {
		h.broken = err
		return nil, fmt.Errorf("read from faster-whisper worker: %w%s", err, h.stderrSuffix())
	}
	var resp workerResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		h.broken = err
		return nil, fmt.Errorf("parse worker response: %w", err)
	}
	if resp.ID != req.ID {
		h.broken = fmt.Errorf("response id %d does not match request %d", resp.ID, req.ID)
		return nil, h.broken
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}

	result := &Result{
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: make([]subtitle.Segment, 0, len(resp.Segments)),
	}
	for _, s := range resp.Segments {
		result.Segments = append(result.Segments, subtitle.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return result, nil
}

// Close asks the worker to exit by closing stdin, killing it after a grace period.
func (h *workerHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.broken == nil {
		h.broken = errors.New("closed")
	}
	_ = h.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- h.wait() }()
	var err error
	select {
	case err = <-done:
	case <-time.After(workerStopGrace):
		_ = h.cmd.Process.Kill()
		err = <-done
	}
	<-h.stderrDone
	_ = os.Remove(h.scriptPath)

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func (h *workerHandle) kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	err := h.cmd.Process.Kill()
	go func() {
		_ = h.wait()
		_ = os.Remove(h.scriptPath)
	}()
	return err
}

// wait reaps the process exactly once; Wait also closes the pipes.
func (h *workerHandle) wait() error {
	h.waitOnce.Do(func() {
		h.waitErr = h.cmd.Wait()
	})
	return h.waitErr
}
