// Package matroska reads metadata, chapters and cover attachments from
// Matroska/WebM (EBML) containers.
package matroska

import (
	"math"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// EBML element IDs, with the length marker bit included.
const (
	idEBML             = 0x1A45DFA3
	idDocType          = 0x4282
	idSegment          = 0x18538067
	idInfo             = 0x1549A966
	idTitle            = 0x7BA9
	idTimestampScale   = 0x2AD7B1
	idDuration         = 0x4489
	idChapters         = 0x1043A770
	idEditionEntry     = 0x45B9
	idEditionHidden    = 0x45BD
	idEditionDefault   = 0x45DB
	idEditionOrdered   = 0x45DD
	idChapterAtom      = 0xB6
	idChapterTimeStart = 0x91
	idChapterHidden    = 0x98
	idChapterDisplay   = 0x80
	idChapString       = 0x85
	idChapLanguage     = 0x437C
	idTags             = 0x1254C367
	idTag              = 0x7373
	idSimpleTag        = 0x67C8
	idTagName          = 0x45A3
	idTagString        = 0x4487
	idAttachments      = 0x1941A469
	idAttachedFile     = 0x61A7
	idFileDescription  = 0x467E
	idFileName         = 0x466E
	idFileMimeType     = 0x4660
	idFileData         = 0x465C
)

// element is one EBML element: its id and the extent of its payload.
// A sizeUnknown payload (streamed Segment) runs to the end of the file.
type element struct {
	id         uint64
	dataOffset int64
	dataSize   int64
}

func (e *element) end() int64 { return e.dataOffset + e.dataSize }

// readElement reads the element header at the cursor and advances past it
// (not past the payload).
func readElement(c *binary.Cursor, sr *binary.SafeReader) (*element, error) {
	start := c.Pos()
	id, err := c.VarID("element id")
	if err != nil {
		return nil, err
	}
	size, err := c.VarUint("element size")
	if err != nil {
		return nil, err
	}

	el := &element{id: id, dataOffset: c.Pos()}
	if size == binary.VarUintUnknown {
		// Only the Segment is allowed to stream with an unknown size.
		if id != idSegment {
			return nil, &audiometa.CorruptedFileError{
				Path:   sr.Path(),
				Offset: start,
				Reason: "unknown size on a non-segment element",
			}
		}
		el.dataSize = sr.Size() - el.dataOffset
	} else {
		el.dataSize = int64(size)
	}
	if el.end() > sr.Size() {
		return nil, &audiometa.CorruptedFileError{
			Path:   sr.Path(),
			Offset: start,
			Reason: "element size exceeds file size",
		}
	}
	return el, nil
}

// forEachChild iterates the direct children of a master element. Returning
// false from fn stops the iteration.
func forEachChild(sr *binary.SafeReader, parent *element, fn func(child *element) (bool, error)) error {
	c := sr.Cursor(parent.dataOffset, parent.end())
	for c.Remaining() > 0 {
		child, err := readElement(c, sr)
		if err != nil {
			return err
		}
		if child.end() > parent.end() {
			return &audiometa.CorruptedFileError{
				Path:   sr.Path(),
				Offset: child.dataOffset,
				Reason: "child element exceeds parent bounds",
			}
		}
		cont, err := fn(child)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		c.Seek(child.end())
	}
	return nil
}

func readString(sr *binary.SafeReader, el *element) (string, error) {
	c := sr.Cursor(el.dataOffset, el.end())
	s, err := c.String(int(el.dataSize), "string element")
	if err != nil {
		return "", err
	}
	// Element payloads may be zero-padded.
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s, nil
}

func readUint(sr *binary.SafeReader, el *element) (uint64, error) {
	if el.dataSize > 8 {
		return 0, &audiometa.CorruptedFileError{
			Path:   sr.Path(),
			Offset: el.dataOffset,
			Reason: "unsigned integer element wider than 8 bytes",
		}
	}
	c := sr.Cursor(el.dataOffset, el.end())
	b, err := c.Bytes(int(el.dataSize), "uint element")
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, by := range b {
		v = v<<8 | uint64(by)
	}
	return v, nil
}

func readFloat(sr *binary.SafeReader, el *element) (float64, error) {
	c := sr.Cursor(el.dataOffset, el.end())
	switch el.dataSize {
	case 0:
		return 0, nil
	case 4:
		v, err := c.U32("float element")
		if err != nil {
			return 0, err
		}
		return float64(math.Float32frombits(v)), nil
	case 8:
		v, err := c.U64("float element")
		if err != nil {
			return 0, err
		}
		return math.Float64frombits(v), nil
	default:
		return 0, &audiometa.CorruptedFileError{
			Path:   sr.Path(),
			Offset: el.dataOffset,
			Reason: "float element must be 0, 4 or 8 bytes",
		}
	}
}

func readBytes(sr *binary.SafeReader, el *element) ([]byte, error) {
	c := sr.Cursor(el.dataOffset, el.end())
	return c.Bytes(int(el.dataSize), "binary element")
}
