package scanner

import "time"

// BookUnit is one candidate book discovered under a library root: a folder
// of audio files or a single standalone file.
type BookUnit struct {
	// Path identifies the unit and derives its stable book ID.
	Path string
	// Name is the display name, usually the folder or file base name.
	Name string
	// Author is the author folder name when the root policy has one.
	Author string
	// IsFile marks single-file books.
	IsFile bool
}

// FileCandidate is one audio file found inside a book unit.
type FileCandidate struct {
	Path    string
	Size    int64
	ModTime time.Time
	Inode   uint64
}

// ScanResult summarizes one completed scan.
type ScanResult struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Books       int
	Added       int
	Updated     int
	Unchanged   int
	Deactivated int
	Skipped     int
	Errors      int
}
