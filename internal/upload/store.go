package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/pkg/file"
	"github.com/MimeLyc/video-note/pkg/log"
)

const (
	maxNameLength   = 100
	defaultStem     = "uploaded_file"
	timestampLayout = "20060102_150405"
)

// AllowedExtensions lists the media types accepted for upload.
var AllowedExtensions = []string{
	".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm",
	".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a",
}

// TempFile is a stored upload. ID is the stored name without its extension.
type TempFile struct {
	ID           string    `json:"file_id"`
	OriginalName string    `json:"original_name"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeText     string    `json:"size_formatted"`
	CreatedAt    time.Time `json:"created_at"`
}

// SweepReport summarizes an age-based cleanup.
type SweepReport struct {
	Deleted    int    `json:"deleted_count"`
	FreedBytes int64  `json:"freed_bytes"`
	Freed      string `json:"freed_space"`
}

// Store keeps uploads under dir as {sanitizedStem}_{timestamp}{ext}.
type Store struct {
	dir        string
	scratchDir string
	correlator *Correlator
	now        func() time.Time
}

// NewStore creates a store over uploadDir. scratchDir is swept alongside it.
func NewStore(uploadDir, scratchDir string) *Store {
	return &Store{
		dir:        uploadDir,
		scratchDir: scratchDir,
		correlator: NewCorrelator(uploadDir),
		now:        time.Now,
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes r under a sanitized, timestamped name and returns the stored file.
func (s *Store) Save(name string, r io.Reader) (*TempFile, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !IsAllowed(ext) {
		return nil, apperror.New(apperror.Validation, "unsupported file format").WithContext("extension", ext)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	stem := SanitizeStem(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	at := s.now()
	base := stem + "_" + at.Format(timestampLayout)

	f, path, err := file.CreateUnique(s.dir, base, ext)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if size == 0 {
		_ = os.Remove(path)
		return nil, apperror.New(apperror.Validation, "uploaded file is empty").WithContext("name", name)
	}

	stored := filepath.Base(path)
	log.Info("Stored upload %s as %s (%s)", name, stored, humanize.Bytes(uint64(size)))
	return &TempFile{
		ID:           file.Stem(stored),
		OriginalName: name,
		Name:         stored,
		Path:         path,
		Size:         size,
		SizeText:     humanize.Bytes(uint64(size)),
		CreatedAt:    at,
	}, nil
}

// Lookup resolves id to a path, or returns NotFound.
func (s *Store) Lookup(id string) (string, error) {
	path, ok := s.correlator.Resolve(id)
	if !ok {
		return "", apperror.New(apperror.NotFound, "file not found").WithContext("file_id", id)
	}
	return path, nil
}

// Delete removes the upload id refers to.
func (s *Store) Delete(id string) error {
	path, err := s.Lookup(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperror.New(apperror.NotFound, "file not found").WithContext("file_id", id)
		}
		return fmt.Errorf("delete upload: %w", err)
	}
	log.Info("Deleted upload %s", path)
	return nil
}

// Sweep removes uploads and scratch files older than maxAge. It is best effort:
// files that cannot be removed are logged and skipped.
func (s *Store) Sweep(maxAge time.Duration) (SweepReport, error) {
	cutoff := s.now().Add(-maxAge)
	var report SweepReport
	for _, dir := range []string{s.dir, s.scratchDir} {
		if dir == "" {
			continue
		}
		old, err := file.FindOlderThan(dir, cutoff)
		if err != nil {
			return report, fmt.Errorf("scan %s: %w", dir, err)
		}
		for _, path := range old {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if err := os.Remove(path); err != nil {
				log.Warn("Sweep could not remove %s: %v", path, err)
				continue
			}
			report.Deleted++
			report.FreedBytes += info.Size()
		}
	}
	report.Freed = humanize.Bytes(uint64(report.FreedBytes))
	if report.Deleted > 0 {
		log.Info("Sweep removed %d files older than %s, freed %s", report.Deleted, maxAge, report.Freed)
	}
	return report, nil
}

// IsAllowed reports whether ext (with leading dot) is an accepted media extension.
func IsAllowed(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// SanitizeStem keeps ASCII letters, digits and "-_.()", turns spaces into
// underscores and caps the length. An empty result becomes "uploaded_file".
func SanitizeStem(stem string) string {
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune("-_.()", r):
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > maxNameLength {
		out = out[:maxNameLength]
	}
	if out == "" {
		return defaultStem
	}
	return out
}
