// Package audiometa extracts metadata and chapter marks from the audio
// container formats the catalog understands: MP4 (M4A/M4B), Matroska/WebM,
// Ogg Vorbis/Opus, and MP3 with ID3v2 tags.
package audiometa

import (
	"fmt"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// OutOfBoundsError is returned when a parser would read past the end of the
// file or the declared region it is parsing.
type OutOfBoundsError = binary.OutOfBoundsError

// UnsupportedFormatError is returned when a file is not one of the supported
// container formats. Callers treat it as "try nothing else", not as
// corruption.
type UnsupportedFormatError struct {
	Path   string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: unsupported format: %s", e.Path, e.Reason)
}

// CorruptedFileError is returned when a file's container structure is invalid:
// magic mismatches, declared sizes exceeding parent bounds, missing mandatory
// elements.
type CorruptedFileError struct {
	Path   string
	Offset int64
	Reason string
}

func (e *CorruptedFileError) Error() string {
	return fmt.Sprintf("%s: corrupted file at offset %d: %s", e.Path, e.Offset, e.Reason)
}
