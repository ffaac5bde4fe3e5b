package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// Upload is an in-flight write to "<name>.part". Exactly one of Commit or
// Abort must be called.
type Upload struct {
	store   *Store
	name    string
	tmpPath string
	file    afero.File
	written int64
	maxSize int64
	done    bool
}

// Name returns the final name the upload will be committed under.
func (u *Upload) Name() string {
	return u.name
}

// Written returns the number of bytes accepted so far.
func (u *Upload) Written() int64 {
	return u.written
}

// Write appends p to the temporary file. Writing past the size limit
// returns ErrTooLarge and nothing beyond the limit is written.
func (u *Upload) Write(p []byte) (int, error) {
	if u.done {
		return 0, ErrClosed
	}
	if u.maxSize > 0 && u.written+int64(len(p)) > u.maxSize {
		return 0, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, u.name, u.maxSize)
	}
	n, err := u.file.Write(p)
	u.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", u.tmpPath, err)
	}
	return n, nil
}

// Commit flushes the temporary file and renames it to the final name.
func (u *Upload) Commit() error {
	if u.done {
		return ErrClosed
	}
	u.done = true

	if err := u.file.Sync(); err != nil {
		_ = u.file.Close()
		u.removeTemp()
		return fmt.Errorf("sync %s: %w", u.tmpPath, err)
	}
	if err := u.file.Close(); err != nil {
		u.removeTemp()
		return fmt.Errorf("close %s: %w", u.tmpPath, err)
	}
	if err := u.store.fs.Rename(u.tmpPath, u.store.path(u.name)); err != nil {
		u.removeTemp()
		return fmt.Errorf("commit %s: %w", u.name, err)
	}
	return nil
}

// Abort discards the temporary file. It is safe to call after Commit.
func (u *Upload) Abort() error {
	if u.done {
		return nil
	}
	u.done = true
	_ = u.file.Close()
	return u.removeTemp()
}

func (u *Upload) removeTemp() error {
	err := u.store.fs.Remove(u.tmpPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", u.tmpPath, err)
	}
	return nil
}
