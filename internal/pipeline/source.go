package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Source supplies extracted document text by reference. File storage, access
// logging, and chain of custody belong to the external storage collaborator;
// the pipeline only reads what extraction already produced.
type Source interface {
	ExtractedText(ctx context.Context, ref string) (string, error)
}

// FileSource reads extracted text from plain files under a root directory.
// The reference is a path relative to the root.
type FileSource struct {
	root string
}

// NewFileSource creates a source rooted at dir. An empty dir means paths are
// used as given.
func NewFileSource(dir string) *FileSource {
	return &FileSource{root: dir}
}

// ExtractedText reads and validates the referenced file.
func (s *FileSource) ExtractedText(_ context.Context, ref string) (string, error) {
	path := ref
	if s.root != "" {
		path = filepath.Join(s.root, ref)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%s: extracted text is empty", path)
	}
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("%s: extracted text is not valid UTF-8", path)
	}
	return text, nil
}
