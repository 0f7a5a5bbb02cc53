//go:build unix

package vfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// defaultFilePerm/defaultDirPerm are expressed via the POSIX permission
// bit constants rather than bare octal literals, matching how
// `interp/perm_other.go` reasons about user/group/other bits on unix
// builds.
var (
	defaultFilePerm = os.FileMode(unix.S_IRUSR | unix.S_IWUSR | unix.S_IRGRP | unix.S_IROTH)
	defaultDirPerm  = os.FileMode(unix.S_IRWXU|unix.S_IRGRP|unix.S_IXGRP|unix.S_IROTH|unix.S_IXOTH) | os.ModeDir
)
