package notes

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/pkg/file"
	"github.com/MimeLyc/video-note/pkg/log"
)

const (
	noteExt         = ".md"
	timestampLayout = "20060102_150405"
)

var tagHeader = regexp.MustCompile(`^<!-- PROMPT_TAG: (.*?) -->\n\n`)

// Note is a stored markdown note.
type Note struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Tag     string `json:"prompt_tag,omitempty"`
	Content string `json:"content"`
}

// Store keeps generated notes as markdown files in one directory.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes content to {source stem}_{timestamp}.md, or notes_{timestamp}.md without a
// source. A non-empty tag is recorded in a leading HTML comment.
func (s *Store) Save(sourceName, content, tag string) (*Note, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}

	stem := "notes"
	if sourceName != "" {
		if st := file.Stem(sourceName); st != "" {
			stem = st
		}
	}
	body := content
	if tag = strings.TrimSpace(tag); tag != "" {
		body = fmt.Sprintf("<!-- PROMPT_TAG: %s -->\n\n", tag) + content
	}

	out, path, err := file.CreateUnique(s.dir, stem+"_"+s.now().Format(timestampLayout), noteExt)
	if err != nil {
		return nil, fmt.Errorf("create note file: %w", err)
	}
	_, err = io.WriteString(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write note file: %w", err)
	}

	log.Info("Saved note %s", path)
	return &Note{Name: filepath.Base(path), Path: path, Tag: tag, Content: content}, nil
}

// List returns stored notes newest first.
func (s *Store) List() ([]file.Info, error) {
	return file.ListFiles(s.dir, noteExt)
}

// Read loads a note by file name, splitting off its tag header.
func (s *Store) Read(name string) (*Note, error) {
	path, ok := file.SafeJoin(s.dir, name)
	if !ok || !strings.EqualFold(filepath.Ext(name), noteExt) {
		return nil, apperror.New(apperror.Validation, "invalid note name").WithContext("name", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.New(apperror.NotFound, "note not found").WithContext("name", name)
		}
		return nil, err
	}

	note := &Note{Name: name, Path: path, Content: string(data)}
	if m := tagHeader.FindStringSubmatch(note.Content); m != nil {
		note.Tag = m[1]
		note.Content = note.Content[len(m[0]):]
	}
	return note, nil
}
