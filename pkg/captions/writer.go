package captions

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Writer appends records to a caption store. Only one Writer may hold a
// store at a time, across processes.
type Writer struct {
	f    *os.File
	lock *flock.Flock
}

// LockPath returns the lock file guarding the store at path.
func LockPath(path string) string {
	return path + ".lock"
}

// OpenWriter opens the store at path for appending, creating it and its
// parent directory if needed. It fails fast with ErrLocked if another writer
// holds the store.
func OpenWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating caption store directory: %w", err)
	}

	lock := flock.New(LockPath(path))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking caption store: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("opening caption store: %w", err)
	}

	w := &Writer{f: f, lock: lock}
	if err := w.terminateTornLine(); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// terminateTornLine ends a final line left without a newline by an
// interrupted write, so the next record starts on its own line.
func (w *Writer) terminateTornLine() error {
	info, err := w.f.Stat()
	if err != nil {
		return fmt.Errorf("stat caption store: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := w.f.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
		return fmt.Errorf("reading caption store tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}

	if _, err := w.f.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("terminating torn line: %w", err)
	}
	return w.f.Sync()
}

// Append writes one record and syncs it to disk before returning.
func (w *Writer) Append(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.Filename, err)
	}
	line = append(line, '\n')

	if _, err := w.f.Write(line); err != nil {
		return fmt.Errorf("writing record %s: %w", rec.Filename, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("syncing record %s: %w", rec.Filename, err)
	}
	return nil
}

// Close closes the store and releases the lock.
func (w *Writer) Close() error {
	err := w.f.Close()
	if unlockErr := w.lock.Unlock(); err == nil && unlockErr != nil {
		err = fmt.Errorf("unlocking caption store: %w", unlockErr)
	}
	return err
}
