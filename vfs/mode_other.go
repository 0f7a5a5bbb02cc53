//go:build !unix

package vfs

import "os"

var (
	defaultFilePerm = os.FileMode(0o644)
	defaultDirPerm  = os.FileMode(0o755) | os.ModeDir
)
