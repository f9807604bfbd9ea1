package netwatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// FileSignal reports connectivity from the contents of a status file:
// "online" or "offline", surrounding whitespace ignored. A missing file is
// offline. Other contents, including the empty file seen mid-write, are
// ignored.
//
// The parent directory is watched rather than the file, so replacing the
// file with a rename is also picked up.
type FileSignal struct {
	path   string
	logger *slog.Logger
}

// NewFileSignal creates a FileSignal for path. A nil logger uses
// slog.Default().
func NewFileSignal(path string, logger *slog.Logger) *FileSignal {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSignal{path: filepath.Clean(path), logger: logger}
}

// Run starts watching. The returned channel receives the current state
// first, then each change, and is closed when ctx is done or the watcher
// fails.
func (f *FileSignal) Run(ctx context.Context) (<-chan bool, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	out := make(chan bool)
	go func() {
		defer close(out)
		defer watcher.Close()

		var last *bool
		emit := func() bool {
			online, ok := f.read()
			if !ok || (last != nil && *last == online) {
				return true
			}
			select {
			case out <- online:
				last = &online
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != f.path {
					continue
				}
				if !emit() {
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("status file watch error", "path", f.path, "error", err)
			}
		}
	}()
	return out, nil
}

// read returns the state in the file. ok is false when the contents are
// not a recognized state.
func (f *FileSignal) read() (online bool, ok bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("status file unreadable", "path", f.path, "error", err)
		}
		return false, true
	}
	switch strings.ToLower(strings.TrimSpace(string(data))) {
	case "online":
		return true, true
	case "offline":
		return false, true
	case "":
		return false, false
	default:
		f.logger.Warn("status file has unknown contents", "path", f.path)
		return false, false
	}
}
