package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const maxUniqueAttempts = 100

// CreateUnique exclusively creates dir/base+ext, falling back to base-1, base-2, ...
// when the name is taken. It never truncates an existing file.
func CreateUnique(dir, base, ext string) (*os.File, string, error) {
	for attempt := 0; attempt < maxUniqueAttempts; attempt++ {
		name := base
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d", base, attempt)
		}
		path := filepath.Join(dir, name+ext)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("no free file name for %s%s in %s", base, ext, dir)
}
