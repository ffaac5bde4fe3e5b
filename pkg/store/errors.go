package store

import "errors"

var (
	// ErrNotFound indicates the named file does not exist.
	ErrNotFound = errors.New("store: file not found")

	// ErrExists indicates an upload target is already taken.
	ErrExists = errors.New("store: file already exists")

	// ErrIsDir indicates the name refers to a directory.
	ErrIsDir = errors.New("store: is a directory")

	// ErrInvalidName indicates a name outside the flat namespace.
	ErrInvalidName = errors.New("store: file name not allowed")

	// ErrTooLarge indicates an upload exceeded the configured size limit.
	ErrTooLarge = errors.New("store: file exceeds size limit")

	// ErrClosed is returned by Upload methods after Commit or Abort.
	ErrClosed = errors.New("store: upload already finished")
)
