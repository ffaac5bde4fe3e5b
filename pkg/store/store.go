// Package store implements the flat file namespace served by distd.
//
// Files live directly under a single root directory; there is no hierarchy.
// Uploads are written to a "<name>.part" sibling and renamed into place on
// success, so a reader never observes a partially written file under its
// final name. Temporary siblings are hidden from listings and cannot be
// addressed directly.
//
// The store performs no locking of its own. Two uploads racing on the same
// new name can both pass the existence check; the later rename wins.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// PartSuffix is appended to the final name while an upload is in flight.
const PartSuffix = ".part"

// Entry describes one item in the store root.
type Entry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	IsDir   bool      `json:"is_dir"`
}

// Type returns "DIR" or "FILE".
func (e Entry) Type() string {
	if e.IsDir {
		return "DIR"
	}
	return "FILE"
}

func entryFromInfo(info fs.FileInfo) Entry {
	return Entry{
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}

// Store is a flat namespace rooted at a directory of an afero filesystem.
// It is safe for concurrent use to the extent the underlying filesystem is.
type Store struct {
	fs   afero.Fs
	root string
}

// New returns a Store rooted at root on fsys, creating the directory if
// needed.
func New(fsys afero.Fs, root string) (*Store, error) {
	if root == "" {
		root = "."
	}
	root = filepath.Clean(root)
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", root, err)
	}
	return &Store{fs: fsys, root: root}, nil
}

// NewOS returns a Store on the host filesystem.
func NewOS(root string) (*Store, error) {
	return New(afero.NewOsFs(), root)
}

// Root returns the root directory.
func (s *Store) Root() string {
	return s.root
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// ValidateName checks that name is a plain file name in the flat namespace.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasSuffix(name, PartSuffix):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, name)
}

// Stat returns the entry for name.
func (s *Store) Stat(name string) (Entry, error) {
	if err := ValidateName(name); err != nil {
		return Entry{}, err
	}
	info, err := s.fs.Stat(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Entry{}, fmt.Errorf("stat %s: %w", name, err)
	}
	return entryFromInfo(info), nil
}

// Exists reports whether anything is stored under name.
func (s *Store) Exists(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, s.path(name))
}

// List returns the root's entries sorted by name, omitting in-flight
// upload files.
func (s *Store) List() ([]Entry, error) {
	infos, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if strings.HasSuffix(info.Name(), PartSuffix) {
			continue
		}
		entries = append(entries, entryFromInfo(info))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Open opens a regular file for reading.
func (s *Store) Open(name string) (afero.File, Entry, error) {
	entry, err := s.Stat(name)
	if err != nil {
		return nil, Entry{}, err
	}
	if entry.IsDir {
		return nil, Entry{}, fmt.Errorf("%w: %s", ErrIsDir, name)
	}
	f, err := s.fs.Open(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, Entry{}, fmt.Errorf("open %s: %w", name, err)
	}
	return f, entry, nil
}

// Delete removes a regular file.
func (s *Store) Delete(name string) error {
	entry, err := s.Stat(name)
	if err != nil {
		return err
	}
	if entry.IsDir {
		return fmt.Errorf("%w: %s", ErrIsDir, name)
	}
	if err := s.fs.Remove(s.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Create starts an upload for name. It fails with ErrExists when the name is
// already taken. A maxSize of zero means unlimited.
func (s *Store) Create(name string, maxSize int64) (*Upload, error) {
	exists, err := s.Exists(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}

	tmp := s.path(name) + PartSuffix
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", tmp, err)
	}
	return &Upload{
		store:   s,
		name:    name,
		tmpPath: tmp,
		file:    f,
		maxSize: maxSize,
	}, nil
}
