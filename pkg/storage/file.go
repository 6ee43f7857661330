package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const filePerm = 0o600

// File stores every blob in a single fixed file. The blob name is ignored, so
// one File backend should only ever serve one repository key.
type File struct {
	path string
}

// NewFile constructs a File backend writing to path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Read returns the file contents, ok=false when the file does not exist.
func (f *File) Read(_ context.Context, _ string) (string, bool, error) {
	return readFile(f.path)
}

// Write atomically replaces the file contents.
func (f *File) Write(_ context.Context, _ string, content string) error {
	return writeFileAtomic(f.path, content)
}

func readFile(path string) (string, bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return string(raw), true, nil
}

// writeFileAtomic writes content to a sibling temp file and renames it over
// path, so readers observe either the old or the new blob.
func writeFileAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("storage: chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("storage: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("storage: replace %s: %w", path, err)
	}
	return nil
}
