//go:build !unix

package scanner

// inodeOf has no meaning without inodes; hard-link deduplication is
// disabled on these platforms.
func inodeOf(string) uint64 { return 0 }
