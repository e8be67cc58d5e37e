package upload

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/MimeLyc/video-note/pkg/file"
	"github.com/MimeLyc/video-note/pkg/log"
)

// Correlator maps a file id (the stored name without extension) back to its path.
type Correlator struct {
	dir string
}

func NewCorrelator(dir string) *Correlator {
	return &Correlator{dir: dir}
}

// Resolve returns the file whose stem equals id. When none does, it falls back to
// the first file, in name order, whose stem starts with id. The fallback keeps ids
// from older naming schemes working and may pick the wrong file under a shared prefix.
func (c *Correlator) Resolve(id string) (string, bool) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", false
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		log.Warn("Cannot scan upload dir %s: %v", c.dir, err)
		return "", false
	}

	var prefixMatch string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		stem := file.Stem(entry.Name())
		if stem == id {
			return filepath.Join(c.dir, entry.Name()), true
		}
		if prefixMatch == "" && strings.HasPrefix(stem, id) {
			prefixMatch = entry.Name()
		}
	}

	if prefixMatch != "" {
		log.Warn("No exact match for file id %s, using prefix match %s", id, prefixMatch)
		return filepath.Join(c.dir, prefixMatch), true
	}
	return "", false
}
