package audiometa

import (
	"io"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// Format represents the detected container format.
type Format int

// Container formats the analyzer can dispatch to.
const (
	FormatUnknown Format = iota
	FormatMP4
	FormatMatroska
	FormatOgg
	FormatMP3
)

func (f Format) String() string {
	switch f {
	case FormatMP4:
		return "MP4"
	case FormatMatroska:
		return "Matroska"
	case FormatOgg:
		return "Ogg"
	case FormatMP3:
		return "MP3"
	default:
		return "Unknown"
	}
}

const ebmlMagic = uint32(0x1A45DFA3)

// DetectFormat sniffs the container format from the first bytes of the file.
// Extension is never consulted: dispatch is by magic numbers only.
func DetectFormat(r io.ReaderAt, size int64, path string) (Format, error) {
	if size < 8 {
		return FormatUnknown, &UnsupportedFormatError{
			Path:   path,
			Reason: "file too small to be an audio container",
		}
	}

	sr := binary.NewSafeReader(r, size, path)

	head, err := binary.Read[uint32](sr, 0, "magic")
	if err != nil {
		return FormatUnknown, &UnsupportedFormatError{Path: path, Reason: "failed to read file header"}
	}

	switch {
	case head == ebmlMagic:
		return FormatMatroska, nil
	case head == 0x4F676753: // "OggS"
		return FormatOgg, nil
	case head>>8 == 0x494433: // "ID3"
		return FormatMP3, nil
	}

	// MP4 family: second dword is the box fourcc "ftyp".
	fourcc, err := binary.Read[uint32](sr, 4, "box type")
	if err == nil && fourcc == 0x66747970 { // "ftyp"
		return FormatMP4, nil
	}

	// Bare MPEG audio stream without an ID3 tag: 11-bit frame sync.
	if head>>21 == 0x7FF {
		return FormatMP3, nil
	}

	return FormatUnknown, &UnsupportedFormatError{Path: path, Reason: "no known container signature"}
}
