package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"digital_microwave/internal/models"
	"digital_microwave/internal/validate"

	"github.com/spf13/afero"
)

// TemplateFile keeps the library as a JSON array in a single file.
type TemplateFile struct {
	fs  afero.Fs
	dir string
}

// Ensure implementation of TemplateRepo interface at compile time.
var _ TemplateRepo = (*TemplateFile)(nil)

const (
	templatesFilePerm = 0o644
	templatesDirPerm  = 0o755
)

// NewTemplateFile resolves file names against dir on fs. A nil fs means
// the OS filesystem.
func NewTemplateFile(fs afero.Fs, dir string) *TemplateFile {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &TemplateFile{fs: fs, dir: dir}
}

// ResolvePath joins fileName onto the base directory unless it is absolute.
func (r *TemplateFile) ResolvePath(fileName string) (string, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return "", errors.New("resolve path: empty file name")
	}
	if filepath.IsAbs(fileName) {
		return filepath.Clean(fileName), nil
	}
	return filepath.Join(r.dir, fileName), nil
}

// LoadTemplates reads the file at path. A missing file is an empty library.
func (r *TemplateFile) LoadTemplates(path string) ([]models.Template, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read templates %q: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var templates []models.Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse templates %q: %w", path, err)
	}
	for i, t := range templates {
		if err := validate.Template(t); err != nil {
			return nil, fmt.Errorf("template %d in %q: %w", i, path, err)
		}
	}
	return templates, nil
}

// SaveTemplates writes templates to a temp file and renames it over path.
func (r *TemplateFile) SaveTemplates(path string, templates []models.Template) error {
	if templates == nil {
		templates = []models.Template{}
	}
	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := r.fs.MkdirAll(dir, templatesDirPerm); err != nil {
			return fmt.Errorf("create dir %q: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, templatesFilePerm); err != nil {
		return fmt.Errorf("write templates %q: %w", tmp, err)
	}
	if err := r.fs.Rename(tmp, path); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("replace templates %q: %w", path, err)
	}
	return nil
}

// TryResolveInputAsPath reports whether raw names an existing regular file.
// Inline JSON documents are never treated as paths.
func (r *TemplateFile) TryResolveInputAsPath(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return "", false
	}
	info, err := r.fs.Stat(raw)
	if err != nil || info.IsDir() {
		return "", false
	}
	return filepath.Clean(raw), true
}

func (r *TemplateFile) ReadText(path string) (string, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", path, err)
	}
	return string(data), nil
}
