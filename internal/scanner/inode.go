//go:build unix

package scanner

import "golang.org/x/sys/unix"

// inodeOf returns the inode of path, or 0 when it cannot be determined.
// Inodes dedupe hard-linked files so one file never becomes two chapters.
func inodeOf(path string) uint64 {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0
	}
	return st.Ino
}
