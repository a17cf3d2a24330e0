//go:build linux || darwin

package storage

import (
	"path/filepath"
	"runtime"

	"golang.org/x/sys/unix"
)

func removableDrives() []string {
	roots := []string{"/media", "/mnt", "/run/media"}
	if runtime.GOOS == "darwin" {
		roots = []string{"/Volumes"}
	}
	return scanMounts(roots, isMountPoint)
}

// isMountPoint reports whether path sits on a different device than its
// parent directory.
func isMountPoint(path string) bool {
	var st, parent unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	if err := unix.Stat(filepath.Dir(path), &parent); err != nil {
		return false
	}
	return st.Dev != parent.Dev
}
