package notes

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultPromptName is listed first when present.
const DefaultPromptName = "default_note_prompt"

// Prompt is a reusable instruction template stored as a .txt file.
type Prompt struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Prompts reads instruction templates from a directory.
type Prompts struct {
	dir string
}

func NewPrompts(dir string) *Prompts {
	return &Prompts{dir: dir}
}

// List returns every *.txt prompt sorted by name, with the default prompt first.
// A missing directory yields no prompts.
func (p *Prompts) List() ([]Prompt, error) {
	paths, err := filepath.Glob(filepath.Join(p.dir, "*.txt"))
	if err != nil {
		return nil, err
	}

	prompts := make([]Prompt, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		prompts = append(prompts, Prompt{
			Name:    strings.TrimSuffix(filepath.Base(path), ".txt"),
			Content: strings.TrimSpace(string(data)),
		})
	}

	sort.SliceStable(prompts, func(i, j int) bool {
		if (prompts[i].Name == DefaultPromptName) != (prompts[j].Name == DefaultPromptName) {
			return prompts[i].Name == DefaultPromptName
		}
		return prompts[i].Name < prompts[j].Name
	})
	return prompts, nil
}

// Get returns one prompt by name.
func (p *Prompts) Get(name string) (*Prompt, bool) {
	if name == "" || name != filepath.Base(name) {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(p.dir, name+".txt"))
	if err != nil {
		return nil, false
	}
	return &Prompt{Name: name, Content: strings.TrimSpace(string(data))}, true
}
