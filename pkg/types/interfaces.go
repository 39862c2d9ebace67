package types

import (
	"io/fs"
)

// FS is the filesystem interface required for kitup operations.
// All filesystem mutation in the codebase goes through an FS so the
// placement and backup invariants stay auditable and testable.
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Symlink operations
	Symlink(oldname, newname string) error
	Readlink(name string) (string, error)

	// Other operations
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error

	// Lstat may fall back to Stat on backends without symlink support
	Lstat(name string) (fs.FileInfo, error)
}
