package storage

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Filesystem is the default Adapter, backing a collection file per path
// on the local disk. Writes are atomic: they land in a temp file in the
// same directory, then get renamed over the target.
type Filesystem struct {
	Root string
}

// NewFilesystem creates a filesystem adapter rooted at dir. Relative
// paths passed to its methods are resolved against dir.
func NewFilesystem(dir string) *Filesystem {
	return &Filesystem{Root: dir}
}

func (f *Filesystem) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.Root, path)
}

func (f *Filesystem) Read(path string) (string, error) {
	full := f.resolve(path)
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &Error{Operation: OpRead, Path: path, Cause: ErrNotFound}
		}
		return "", &Error{Operation: OpRead, Path: path, Cause: err}
	}
	return string(data), nil
}

func (f *Filesystem) Write(path string, text string) error {
	full := f.resolve(path)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Operation: OpWrite, Path: path, Cause: err}
	}
	tmp, err := os.CreateTemp(dir, ".proseql-tmp-*")
	if err != nil {
		return &Error{Operation: OpWrite, Path: path, Cause: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &Error{Operation: OpWrite, Path: path, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &Error{Operation: OpWrite, Path: path, Cause: err}
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return &Error{Operation: OpWrite, Path: path, Cause: err}
	}
	return nil
}

func (f *Filesystem) Append(path string, text string) error {
	full := f.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &Error{Operation: OpAppend, Path: path, Cause: err}
	}
	file, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &Error{Operation: OpAppend, Path: path, Cause: err}
	}
	defer file.Close()
	if _, err := file.WriteString(text); err != nil {
		return &Error{Operation: OpAppend, Path: path, Cause: err}
	}
	return nil
}

func (f *Filesystem) Exists(path string) (bool, error) {
	_, err := os.Stat(f.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &Error{Operation: OpExists, Path: path, Cause: err}
}

func (f *Filesystem) Remove(path string) error {
	if err := os.Remove(f.resolve(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &Error{Operation: OpRemove, Path: path, Cause: err}
	}
	return nil
}

func (f *Filesystem) EnsureDir(path string) error {
	if err := os.MkdirAll(f.resolve(path), 0o755); err != nil {
		return &Error{Operation: OpEnsureDir, Path: path, Cause: err}
	}
	return nil
}

// Watch uses fsnotify to invoke onChange whenever path's file is written.
// Grounded on the fsnotify dependency carried by AKJUS-bsc-erigon and
// cuemby-warren's go.mod files.
func (f *Filesystem) Watch(path string, onChange func()) (Unsubscribe, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &Error{Operation: OpWatch, Path: path, Cause: err}
	}
	full := f.resolve(path)
	// Watch the containing directory: editors and our own atomic-rename
	// writes both surface as events on the directory, not a stable
	// inode for the file itself.
	if err := watcher.Add(filepath.Dir(full)); err != nil {
		watcher.Close()
		return nil, &Error{Operation: OpWatch, Path: path, Cause: err}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) == filepath.Clean(full) {
					onChange()
				}
			case <-watcher.Errors:
				// Surfacing watcher errors would require a caller-supplied
				// error sink; the spec treats watch as best-effort.
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
