package vfs

import (
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cageshell/cageshell/syntax"
)

type entryKind uint8

const (
	kindFile entryKind = iota
	kindDir
)

type entry struct {
	kind    entryKind
	data    []byte
	mode    os.FileMode
	modTime time.Time
}

// MemFS is a pure in-memory FileSystem, the sandbox's default and only
// builtin implementation (spec.md §5 Non-goals excludes a real-disk
// backend). Grounded on
// `original_source/src/fs/in_memory_fs.rs`'s InMemoryFs: a flat
// path-to-entry map with explicit parent-directory bookkeeping, here
// protected by a plain sync.Mutex instead of tokio's async RwLock since
// this interpreter has no async runtime.
type MemFS struct {
	mu      sync.Mutex
	entries map[string]*entry
	cwd     string
}

// NewMemFS returns an empty filesystem containing only the root
// directory, cwd set to "/".
func NewMemFS() *MemFS {
	fs := &MemFS{
		entries: make(map[string]*entry),
		cwd:     "/",
	}
	fs.entries["/"] = &entry{kind: kindDir, mode: defaultDirPerm, modTime: fsNow()}
	return fs
}

// fsNow is overridable so tests can pin modification times; production
// code never needs to.
var fsNow = time.Now

func normalizePath(base, p string) string {
	if p == "" {
		p = "."
	}
	if !strings.HasPrefix(p, "/") {
		p = path.Join(base, p)
	}
	return path.Clean(p)
}

func parentOf(p string) string {
	if p == "/" {
		return "/"
	}
	dir := path.Dir(p)
	if dir == "" {
		return "/"
	}
	return dir
}

// ensureParents creates any missing ancestor directories of p, matching
// the teacher's ensure_parent_dirs helper in in_memory_fs.rs.
func (fs *MemFS) ensureParents(p string) error {
	parent := parentOf(p)
	if parent == "/" {
		if _, ok := fs.entries["/"]; !ok {
			fs.entries["/"] = &entry{kind: kindDir, mode: defaultDirPerm, modTime: fsNow()}
		}
		return nil
	}
	if e, ok := fs.entries[parent]; ok {
		if e.kind != kindDir {
			return ErrNotDir
		}
		return nil
	}
	if err := fs.ensureParents(parent); err != nil {
		return err
	}
	fs.entries[parent] = &entry{kind: kindDir, mode: defaultDirPerm, modTime: fsNow()}
	return nil
}

func (fs *MemFS) ReadFile(p string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	np := normalizePath(fs.cwd, p)
	e, ok := fs.entries[np]
	if !ok {
		return nil, ErrNotExist
	}
	if e.kind == kindDir {
		return nil, ErrIsDir
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

func (fs *MemFS) WriteFile(p string, data []byte, mode os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	np := normalizePath(fs.cwd, p)
	if existing, ok := fs.entries[np]; ok && existing.kind == kindDir {
		return ErrIsDir
	}
	if err := fs.ensureParents(np); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	fs.entries[np] = &entry{kind: kindFile, data: buf, mode: mode, modTime: fsNow()}
	return nil
}

func (fs *MemFS) AppendFile(p string, data []byte, mode os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	np := normalizePath(fs.cwd, p)
	e, ok := fs.entries[np]
	if ok {
		if e.kind == kindDir {
			return ErrIsDir
		}
		e.data = append(e.data, data...)
		e.modTime = fsNow()
		return nil
	}
	if err := fs.ensureParents(np); err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	fs.entries[np] = &entry{kind: kindFile, data: buf, mode: mode, modTime: fsNow()}
	return nil
}

func (fs *MemFS) Mkdir(p string, mode os.FileMode, all bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	np := normalizePath(fs.cwd, p)
	if e, ok := fs.entries[np]; ok {
		if e.kind == kindDir {
			if all {
				return nil
			}
			return ErrExist
		}
		return ErrExist
	}
	if all {
		if err := fs.ensureParents(np); err != nil {
			return err
		}
	} else {
		parent := parentOf(np)
		pe, ok := fs.entries[parent]
		if !ok || pe.kind != kindDir {
			return ErrNotExist
		}
	}
	fs.entries[np] = &entry{kind: kindDir, mode: mode, modTime: fsNow()}
	return nil
}

func (fs *MemFS) ReadDir(p string) ([]FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	np := normalizePath(fs.cwd, p)
	e, ok := fs.entries[np]
	if !ok {
		return nil, ErrNotExist
	}
	if e.kind != kindDir {
		return nil, ErrNotDir
	}
	prefix := np
	if prefix != "/" {
		prefix += "/"
	}
	var out []FileInfo
	seen := map[string]bool{}
	for name, child := range fs.entries {
		if name == np || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		if seen[rest] {
			continue
		}
		seen[rest] = true
		out = append(out, toFileInfo(rest, child))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func toFileInfo(name string, e *entry) FileInfo {
	mode := e.mode
	if e.kind == kindDir {
		mode |= os.ModeDir
	}
	return FileInfo{
		Name:    name,
		Size:    int64(len(e.data)),
		Mode:    mode,
		ModTime: e.modTime,
		IsDir:   e.kind == kindDir,
	}
}

func (fs *MemFS) Stat(p string) (FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	np := normalizePath(fs.cwd, p)
	e, ok := fs.entries[np]
	if !ok {
		return FileInfo{}, ErrNotExist
	}
	name := path.Base(np)
	if np == "/" {
		name = "/"
	}
	return toFileInfo(name, e), nil
}

func (fs *MemFS) Remove(p string, recursive bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	np := normalizePath(fs.cwd, p)
	e, ok := fs.entries[np]
	if !ok {
		return ErrNotExist
	}
	if e.kind == kindFile {
		delete(fs.entries, np)
		return nil
	}
	prefix := np
	if prefix != "/" {
		prefix += "/"
	}
	var children []string
	for name := range fs.entries {
		if name != np && strings.HasPrefix(name, prefix) {
			children = append(children, name)
		}
	}
	if len(children) > 0 && !recursive {
		return ErrNotEmpty
	}
	for _, c := range children {
		delete(fs.entries, c)
	}
	delete(fs.entries, np)
	return nil
}

func (fs *MemFS) Rename(oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	nOld := normalizePath(fs.cwd, oldPath)
	nNew := normalizePath(fs.cwd, newPath)
	e, ok := fs.entries[nOld]
	if !ok {
		return ErrNotExist
	}
	if err := fs.ensureParents(nNew); err != nil {
		return err
	}
	oldPrefix := nOld + "/"
	for name, child := range fs.entries {
		if name == nOld || strings.HasPrefix(name, oldPrefix) {
			rel := strings.TrimPrefix(name, nOld)
			delete(fs.entries, name)
			fs.entries[nNew+rel] = child
		}
	}
	return nil
}

func (fs *MemFS) Glob(pattern string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	np := normalizePath(fs.cwd, pattern)
	re, err := syntax.TranslatePattern(np, syntax.EntireString|syntax.FilenameMode)
	if err != nil {
		return nil, err
	}
	var out []string
	for name := range fs.entries {
		if re.MatchString(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (fs *MemFS) Getwd() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.cwd
}

func (fs *MemFS) Chdir(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	np := normalizePath(fs.cwd, p)
	e, ok := fs.entries[np]
	if !ok {
		return ErrNotExist
	}
	if e.kind != kindDir {
		return ErrNotDir
	}
	fs.cwd = np
	return nil
}

var _ FileSystem = (*MemFS)(nil)
