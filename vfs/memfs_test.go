package vfs

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestWriteReadRoundTrip(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()

	c.Assert(fs.WriteFile("/a/b/c.txt", []byte("hello"), 0o644), qt.IsNil)

	got, err := fs.ReadFile("/a/b/c.txt")
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "hello")

	// Parent directories are created implicitly.
	info, err := fs.Stat("/a/b")
	c.Assert(err, qt.IsNil)
	c.Assert(info.IsDir, qt.IsTrue)
}

func TestReadFileMissing(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	_, err := fs.ReadFile("/nope")
	c.Assert(err, qt.Equals, ErrNotExist)
}

func TestReadFileOnDir(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	c.Assert(fs.Mkdir("/d", 0o755, true), qt.IsNil)
	_, err := fs.ReadFile("/d")
	c.Assert(err, qt.Equals, ErrIsDir)
}

func TestAppendFile(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	c.Assert(fs.WriteFile("/f", []byte("a"), 0o644), qt.IsNil)
	c.Assert(fs.AppendFile("/f", []byte("b"), 0o644), qt.IsNil)

	got, err := fs.ReadFile("/f")
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "ab")
}

func TestAppendFileCreatesMissing(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	c.Assert(fs.AppendFile("/new", []byte("x"), 0o644), qt.IsNil)
	got, err := fs.ReadFile("/new")
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "x")
}

func TestRelativePathsResolveAgainstCwd(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	c.Assert(fs.Mkdir("/work", 0o755, true), qt.IsNil)
	c.Assert(fs.Chdir("/work"), qt.IsNil)
	c.Assert(fs.WriteFile("rel.txt", []byte("x"), 0o644), qt.IsNil)

	got, err := fs.ReadFile("/work/rel.txt")
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "x")
}

func TestChdirMissingFails(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	c.Assert(fs.Chdir("/nowhere"), qt.Not(qt.IsNil))
}

func TestMkdirNoParentWithoutAll(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	err := fs.Mkdir("/a/b", 0o755, false)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestRemoveNonEmptyDirRequiresRecursive(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	c.Assert(fs.WriteFile("/d/f", []byte("x"), 0o644), qt.IsNil)

	err := fs.Remove("/d", false)
	c.Assert(err, qt.Equals, ErrNotEmpty)

	c.Assert(fs.Remove("/d", true), qt.IsNil)
	_, err = fs.Stat("/d")
	c.Assert(err, qt.Equals, ErrNotExist)
}

func TestRenameOverwritesDestination(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	c.Assert(fs.WriteFile("/src", []byte("1"), 0o644), qt.IsNil)
	c.Assert(fs.WriteFile("/dst", []byte("2"), 0o644), qt.IsNil)

	c.Assert(fs.Rename("/src", "/dst"), qt.IsNil)
	got, err := fs.ReadFile("/dst")
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "1")

	_, err = fs.Stat("/src")
	c.Assert(err, qt.Equals, ErrNotExist)
}

func TestReadDirListsChildren(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	c.Assert(fs.WriteFile("/dir/a", nil, 0o644), qt.IsNil)
	c.Assert(fs.WriteFile("/dir/b", nil, 0o644), qt.IsNil)

	entries, err := fs.ReadDir("/dir")
	c.Assert(err, qt.IsNil)
	c.Assert(len(entries), qt.Equals, 2)
}

func TestGlobMatchesFiles(t *testing.T) {
	c := qt.New(t)
	fs := NewMemFS()
	c.Assert(fs.WriteFile("/g/a.txt", nil, 0o644), qt.IsNil)
	c.Assert(fs.WriteFile("/g/b.txt", nil, 0o644), qt.IsNil)
	c.Assert(fs.WriteFile("/g/c.log", nil, 0o644), qt.IsNil)

	matches, err := fs.Glob("/g/*.txt")
	c.Assert(err, qt.IsNil)
	c.Assert(len(matches), qt.Equals, 2)
}
