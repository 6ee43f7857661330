package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc receives the blob name of a file changed on disk.
type ChangeFunc func(name string)

// Watch reports blobs created, written or renamed under the root folder until
// ctx is cancelled. Temp files used by atomic writes are filtered out. The
// root is created if it does not exist. Watch blocks; run it in a goroutine.
func (d *Directory) Watch(ctx context.Context, fn ChangeFunc) error {
	if fn == nil {
		return fmt.Errorf("storage: watch callback is required")
	}
	if err := os.MkdirAll(d.root, dirPerm); err != nil {
		return fmt.Errorf("storage: create %s: %w", d.root, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("storage: watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.root); err != nil {
		return fmt.Errorf("storage: watch %s: %w", d.root, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp") {
				continue
			}
			fn(name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("storage: watch %s: %w", d.root, err)
		}
	}
}
