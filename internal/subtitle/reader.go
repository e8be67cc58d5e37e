package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/video-note/internal/apperror"
)

// DefaultReader reads SRT and VTT files.
type DefaultReader struct{}

func NewReader() Reader {
	return &DefaultReader{}
}

func (r *DefaultReader) Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.New(apperror.NotFound, "subtitle file does not exist").
				WithContext("path", path)
		}
		return nil, fmt.Errorf("read subtitle file: %w", err)
	}

	f := FormatSRT
	if strings.EqualFold(filepath.Ext(path), ".vtt") {
		f = FormatVTT
	}
	return ReadBytes(data, f, path)
}

// ReadBytes parses a subtitle document. A leading WEBVTT header wins over the format hint.
func ReadBytes(data []byte, hint Format, path string) (*File, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	format := hint
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte(vttHeader)) {
		format = FormatVTT
	}

	var lines []Line
	var block []string
	flush := func() error {
		defer func() { block = block[:0] }()
		line, ok, err := parseBlock(block, format)
		if err != nil || !ok {
			return err
		}
		line.Index = len(lines) + 1
		lines = append(lines, line)
		return nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(text) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read subtitle: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return &File{
		Lines:    lines,
		Language: detectLanguage(lines),
		Format:   format,
		Path:     path,
	}, nil
}

// parseBlock turns one blank-line separated block into a cue. Header, NOTE and STYLE
// blocks and blocks without a timing line are skipped.
func parseBlock(block []string, format Format) (Line, bool, error) {
	if len(block) == 0 {
		return Line{}, false, nil
	}
	first := strings.TrimSpace(block[0])
	if format == FormatVTT && (strings.HasPrefix(first, vttHeader) ||
		strings.HasPrefix(first, "NOTE") || strings.HasPrefix(first, "STYLE") ||
		strings.HasPrefix(first, "REGION")) {
		return Line{}, false, nil
	}

	timing := -1
	for i, l := range block {
		if strings.Contains(l, "-->") {
			timing = i
			break
		}
	}
	if timing < 0 || timing > 1 {
		return Line{}, false, nil
	}
	if timing == 1 && format == FormatSRT {
		if _, err := strconv.Atoi(first); err != nil {
			return Line{}, false, nil
		}
	}

	start, end, err := parseTiming(block[timing])
	if err != nil {
		return Line{}, false, err
	}

	textLines := make([]string, 0, len(block)-timing-1)
	for _, l := range block[timing+1:] {
		textLines = append(textLines, strings.TrimSpace(l))
	}
	return Line{
		StartTime: start,
		EndTime:   end,
		Text:      strings.Join(textLines, "\n"),
	}, true, nil
}

func parseTiming(line string) (start, end time.Duration, err error) {
	parts := strings.SplitN(line, "-->", 2)
	startTC := strings.TrimSpace(parts[0])
	// VTT cue settings follow the end time
	endFields := strings.Fields(parts[1])
	if len(endFields) == 0 {
		return 0, 0, fmt.Errorf("invalid time format: %s", line)
	}
	if start, err = parseDuration(startTC); err != nil {
		return 0, 0, fmt.Errorf("failed to parse time: %w", err)
	}
	if end, err = parseDuration(endFields[0]); err != nil {
		return 0, 0, fmt.Errorf("failed to parse time: %w", err)
	}
	return start, end, nil
}
