// Package mp4 parses the ISO-BMFF box structure of M4A/M4B/MP4 files and
// extracts metadata and chapter marks. Chapters come from either the Nero
// chpl box or, when absent, from a QuickTime chapter text track referenced
// through a chap track reference.
package mp4

import (
	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

const (
	headerSize     = 8
	longHeaderSize = 16
)

// Atom is one box header: its fourcc, total size and position in the file.
type Atom struct {
	Type       string
	Size       int64
	Offset     int64
	HeaderSize int64
}

// DataOffset returns the offset of the box payload.
func (a *Atom) DataOffset() int64 { return a.Offset + a.HeaderSize }

// DataSize returns the payload size in bytes.
func (a *Atom) DataSize() int64 { return a.Size - a.HeaderSize }

// End returns the offset just past the box.
func (a *Atom) End() int64 { return a.Offset + a.Size }

// readAtomHeader reads a box header at the given offset. A 32-bit size of 1
// signals a 64-bit extended size immediately after the fourcc; a size of 0
// means the box extends to the end of the file.
func readAtomHeader(sr *binary.SafeReader, offset int64) (*Atom, error) {
	size32, err := binary.Read[uint32](sr, offset, "atom size")
	if err != nil {
		return nil, err
	}
	fourccBuf := make([]byte, 4)
	if err := sr.ReadAt(fourccBuf, offset+4, "atom type"); err != nil {
		return nil, err
	}

	atom := &Atom{
		Type:       string(fourccBuf),
		Size:       int64(size32),
		Offset:     offset,
		HeaderSize: headerSize,
	}

	switch size32 {
	case 0:
		atom.Size = sr.Size() - offset
	case 1:
		size64, err := binary.Read[uint64](sr, offset+headerSize, "extended atom size")
		if err != nil {
			return nil, err
		}
		atom.Size = int64(size64)
		atom.HeaderSize = longHeaderSize
	}

	if atom.Size < atom.HeaderSize {
		return nil, &audiometa.CorruptedFileError{
			Path:   sr.Path(),
			Offset: offset,
			Reason: "atom size smaller than its header",
		}
	}
	return atom, nil
}

// findAtom scans [start, end) for the first box of the given type.
func findAtom(sr *binary.SafeReader, start, end int64, fourcc string) (*Atom, error) {
	offset := start
	for offset+headerSize <= end {
		atom, err := readAtomHeader(sr, offset)
		if err != nil {
			return nil, err
		}
		if atom.End() > end {
			return nil, &audiometa.CorruptedFileError{
				Path:   sr.Path(),
				Offset: offset,
				Reason: "atom size exceeds parent bounds",
			}
		}
		if atom.Type == fourcc {
			return atom, nil
		}
		offset = atom.End()
	}
	return nil, &audiometa.CorruptedFileError{
		Path:   sr.Path(),
		Offset: start,
		Reason: "atom " + fourcc + " not found",
	}
}
