package subtitle

import (
	"strings"
	"time"

	"github.com/MimeLyc/video-note/internal/apperror"
	"golang.org/x/text/language"
)

// Segment is one timed span of recognized speech. Times are seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Format is a subtitle document format.
type Format string

const (
	// FormatVTT is cue-based WebVTT without numbering.
	FormatVTT Format = "vtt"
	// FormatSRT is numbered SubRip with comma millisecond separators.
	FormatSRT Format = "srt"

	DefaultFormat = FormatVTT
)

// SupportedFormats is the allow-list for configured output formats.
var SupportedFormats = []Format{FormatSRT, FormatVTT}

// ParseFormat validates s against SupportedFormats.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range SupportedFormats {
		if f == supported {
			return f, nil
		}
	}
	return "", apperror.Newf(apperror.FormatFailure, "unsupported subtitle format %q", s).
		WithContext("supported", SupportedFormats)
}

// FormatOrDefault returns DefaultFormat for empty or unsupported values.
func FormatOrDefault(s string) Format {
	f, err := ParseFormat(s)
	if err != nil {
		return DefaultFormat
	}
	return f
}

func (f Format) Ext() string {
	return string(f)
}

func (f Format) String() string {
	return string(f)
}

// Document is a rendered subtitle file.
type Document struct {
	Format Format `json:"format"`
	Body   string `json:"-"`
	Path   string `json:"path"`
}

// Reader is the interface for reading subtitle files
type Reader interface {
	Read(path string) (*File, error)
}

// Line is a single parsed cue.
type Line struct {
	Index     int           // 1-based cue position
	StartTime time.Duration // start time
	EndTime   time.Duration // end time
	Text      string        // cue text, lines joined with \n
}

// File is a parsed subtitle document.
type File struct {
	Lines    []Line
	Language language.Tag
	Format   Format
	Path     string
}

// Segments converts parsed lines back to segments.
func (f *File) Segments() []Segment {
	ret := make([]Segment, 0, len(f.Lines))
	for _, line := range f.Lines {
		ret = append(ret, Segment{
			Start: line.StartTime.Seconds(),
			End:   line.EndTime.Seconds(),
			Text:  line.Text,
		})
	}
	return ret
}

// Text joins cue text with spaces, the same way transcripts are joined.
func (f *File) Text() string {
	parts := make([]string, 0, len(f.Lines))
	for _, line := range f.Lines {
		if t := strings.TrimSpace(strings.ReplaceAll(line.Text, "\n", " ")); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
