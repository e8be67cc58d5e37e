package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/pkg/file"
)

const vttHeader = "WEBVTT"

// FileTimestampLayout is the capture timestamp embedded in output file names.
const FileTimestampLayout = "20060102_150405"

// Render writes segments in the given format to w.
func Render(w io.Writer, segments []Segment, f Format) error {
	bw := bufio.NewWriter(w)
	switch f {
	case FormatVTT:
		fmt.Fprintf(bw, "%s\n\n", vttHeader)
		for _, seg := range segments {
			fmt.Fprintf(bw, "%s --> %s\n", FormatTimecode(seg.Start, f), FormatTimecode(seg.End, f))
			fmt.Fprintf(bw, "%s\n\n", seg.Text)
		}
	case FormatSRT:
		for i, seg := range segments {
			fmt.Fprintf(bw, "%d\n", i+1)
			fmt.Fprintf(bw, "%s --> %s\n", FormatTimecode(seg.Start, f), FormatTimecode(seg.End, f))
			fmt.Fprintf(bw, "%s\n\n", seg.Text)
		}
	default:
		return apperror.Newf(apperror.FormatFailure, "unsupported subtitle format %q", f)
	}
	return bw.Flush()
}

// RenderString renders segments into a string.
func RenderString(segments []Segment, f Format) (string, error) {
	var sb strings.Builder
	if err := Render(&sb, segments, f); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Writer persists rendered documents into one output directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Dir() string {
	return w.dir
}

// Write renders segments to {stem}_{YYYYmmdd_HHMMSS}.{ext}. An existing file with the
// same name is never overwritten; a numeric suffix is added instead.
func (w *Writer) Write(stem string, segments []Segment, f Format, at time.Time) (*Document, error) {
	body, err := RenderString(segments, f)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, apperror.Wrap(err, apperror.FormatFailure, "create subtitle directory")
	}

	if stem == "" {
		stem = "subtitle"
	}
	base := fmt.Sprintf("%s_%s", stem, at.Format(FileTimestampLayout))
	out, path, err := file.CreateUnique(w.dir, base, "."+f.Ext())
	if err != nil {
		return nil, apperror.Wrap(err, apperror.FormatFailure, "create subtitle file").
			WithContext("name", base)
	}
	if _, err := io.WriteString(out, body); err != nil {
		_ = out.Close()
		return nil, apperror.Wrap(err, apperror.FormatFailure, "write subtitle file").
			WithContext("path", path)
	}
	if err := out.Close(); err != nil {
		return nil, apperror.Wrap(err, apperror.FormatFailure, "close subtitle file").
			WithContext("path", path)
	}
	return &Document{Format: f, Body: body, Path: path}, nil
}
