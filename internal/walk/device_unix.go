//go:build unix

package walk

import "golang.org/x/sys/unix"

// deviceID returns the device number of path without following symlinks.
func deviceID(path string) (uint64, bool) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, false
	}
	return uint64(st.Dev), true
}

// FileID returns the (device, inode) pair identifying path's data, used to
// recognise hard links to the same file.
func FileID(path string) (dev, ino uint64, ok bool) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, 0, false
	}
	return uint64(st.Dev), uint64(st.Ino), true
}
