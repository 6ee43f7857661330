package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const dirPerm = 0o755

// ErrInvalidName indicates a blob name that would escape the storage root.
var ErrInvalidName = errors.New("storage: invalid blob name")

// Directory stores one file per blob name under a root folder. The folder is
// created on first write.
type Directory struct {
	root string
}

// NewDirectory constructs a Directory backend rooted at root.
func NewDirectory(root string) *Directory {
	return &Directory{root: root}
}

// NewRoaming roots a Directory backend at folder inside the user's XDG config
// home (~/.config on Linux, ~/Library/Application Support on macOS,
// %LOCALAPPDATA% on Windows).
func NewRoaming(folder string) *Directory {
	return NewDirectory(filepath.Join(xdg.ConfigHome, folder))
}

// NewPortable roots a Directory backend next to the running executable.
func NewPortable() (*Directory, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("storage: locate executable: %w", err)
	}
	return NewDirectory(filepath.Dir(exe)), nil
}

// Root returns the backing folder.
func (d *Directory) Root() string {
	return d.root
}

// Read returns the blob stored under name.
func (d *Directory) Read(_ context.Context, name string) (string, bool, error) {
	path, err := d.path(name)
	if err != nil {
		return "", false, err
	}
	return readFile(path)
}

// Write replaces the blob stored under name, creating the root if needed.
func (d *Directory) Write(_ context.Context, name, content string) error {
	path, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.root, dirPerm); err != nil {
		return fmt.Errorf("storage: create %s: %w", d.root, err)
	}
	return writeFileAtomic(path, content)
}

func (d *Directory) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.root, name), nil
}
