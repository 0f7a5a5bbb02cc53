// Package vfs defines the sandboxed filesystem abstraction the
// interpreter executes all file-related builtins against: no host
// filesystem access ever reaches a running script directly.
package vfs

import (
	"errors"
	"os"
	"time"
)

// ErrNotExist reports a missing path, mapped to the shell's usual
// "No such file or directory" message at the builtin layer.
var ErrNotExist = errors.New("vfs: no such file or directory")

// ErrExist reports a path that already exists where a creation operation
// required it not to.
var ErrExist = errors.New("vfs: file already exists")

// ErrNotDir reports a path component that exists but isn't a directory.
var ErrNotDir = errors.New("vfs: not a directory")

// ErrIsDir reports an operation that needs a regular file given a
// directory instead.
var ErrIsDir = errors.New("vfs: is a directory")

// ErrNotEmpty reports an rmdir/remove on a non-empty directory without a
// recursive flag.
var ErrNotEmpty = errors.New("vfs: directory not empty")

// FileInfo describes one filesystem entry, mirroring os.FileInfo's shape
// closely enough that builtins can format `ls -l`-style output the same
// way they would against a real filesystem.
type FileInfo struct {
	Name    string
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
	IsDir   bool
}

// FileSystem is every filesystem operation the interpreter's builtins
// need. Grounded on the method surface `original_source/src/fs/mod.rs`'s
// InMemoryFs implements (trait object behind Arc<dyn FileSystem> in the
// original), translated to Go's explicit-interface idiom.
type FileSystem interface {
	// ReadFile returns the full contents of the file at path.
	ReadFile(path string) ([]byte, error)
	// WriteFile creates or truncates the file at path with the given
	// contents and mode, creating missing parent directories.
	WriteFile(path string, data []byte, mode os.FileMode) error
	// AppendFile appends to an existing file, creating it if missing.
	AppendFile(path string, data []byte, mode os.FileMode) error

	// Mkdir creates a single directory; parent must already exist unless
	// all is true, in which case missing parents are created too.
	Mkdir(path string, mode os.FileMode, all bool) error
	// ReadDir lists the immediate children of a directory.
	ReadDir(path string) ([]FileInfo, error)

	// Stat returns metadata for path, following nothing (there are no
	// symlinks in this filesystem).
	Stat(path string) (FileInfo, error)

	// Remove deletes a file or, if recursive, a directory and its
	// contents; a non-recursive Remove on a non-empty directory fails
	// with ErrNotEmpty.
	Remove(path string, recursive bool) error
	// Rename moves oldPath to newPath, overwriting newPath if it exists.
	Rename(oldPath, newPath string) error

	// Glob expands a single shell pathname pattern (spec.md §4.3 item 7)
	// against the tree, returning matches in lexical order.
	Glob(pattern string) ([]string, error)

	// Getwd/Chdir implement the shell's notion of a current directory,
	// which every relative path is resolved against.
	Getwd() string
	Chdir(path string) error
}
