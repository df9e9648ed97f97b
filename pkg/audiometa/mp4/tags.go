package mp4

import (
	"io"
	"strconv"
	"strings"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// In MP4, © is the single byte 0xA9, so "©nam" is "\xA9nam" in Go strings.
const (
	tagTitle         = "\xA9nam"
	tagArtist        = "\xA9ART"
	tagAlbum         = "\xA9alb"
	tagGenre         = "\xA9gen"
	tagComposer      = "\xA9wrt"
	tagMovementName  = "\xA9mvn"
	tagMovementIndex = "\xA9mvi"
	tagCustom        = "----"
)

// extractIlstMetadata walks moov/udta/meta/ilst and fills tag fields. Errors
// on individual tags are recorded as warnings; a well-formed neighbour tag
// still lands.
func extractIlstMetadata(sr *binary.SafeReader, moov *Atom, meta *audiometa.Metadata) {
	ilst, err := findIlst(sr, moov)
	if err != nil {
		return // No tags is not an error.
	}

	var composer string
	offset := ilst.DataOffset()
	for offset+headerSize <= ilst.End() {
		tag, err := readAtomHeader(sr, offset)
		if err != nil || tag.End() > ilst.End() {
			meta.AddWarning("malformed tag atom at offset %d", offset)
			return
		}

		switch tag.Type {
		case tagCustom:
			name, value, err := parseCustomAtom(sr, tag)
			if err == nil {
				applyCustomField(name, value, meta)
			}
		case tagMovementIndex:
			if b, err := dataAtomBytes(sr, tag); err == nil && len(b) > 0 && meta.Part == "" {
				meta.Part = strconv.Itoa(int(b[len(b)-1]))
			}
		default:
			value, err := dataAtomString(sr, tag)
			if err != nil {
				meta.AddWarning("failed to parse tag %q: %v", tag.Type, err)
				break
			}
			switch tag.Type {
			case tagTitle:
				meta.Title = value
			case tagArtist:
				meta.Artist = value
			case tagAlbum:
				meta.Album = value
			case tagGenre:
				meta.Genre = value
			case tagComposer:
				composer = value
			case tagMovementName:
				meta.Series = value
			}
		}

		offset = tag.End()
	}

	// Composer is the conventional narrator slot when no explicit tag exists.
	if meta.Narrator == "" && composer != "" {
		meta.Narrator = composer
	}
}

// ExtractCover returns the embedded cover image bytes from the covr atom, or
// nil when the file embeds none.
func ExtractCover(r io.ReaderAt, size int64, path string) ([]byte, error) {
	sr := binary.NewSafeReader(r, size, path)
	moov, err := findAtom(sr, 0, sr.Size(), "moov")
	if err != nil {
		return nil, nil
	}
	ilst, err := findIlst(sr, moov)
	if err != nil {
		return nil, nil
	}
	covr, err := findAtom(sr, ilst.DataOffset(), ilst.End(), "covr")
	if err != nil {
		return nil, nil
	}
	return dataAtomBytes(sr, covr)
}

func findIlst(sr *binary.SafeReader, moov *Atom) (*Atom, error) {
	udta, err := findAtom(sr, moov.DataOffset(), moov.End(), "udta")
	if err != nil {
		return nil, err
	}
	metaAtom, err := findAtom(sr, udta.DataOffset(), udta.End(), "meta")
	if err != nil {
		return nil, err
	}
	// meta is a full box: 4 bytes of version+flags precede its children.
	return findAtom(sr, metaAtom.DataOffset()+4, metaAtom.End(), "ilst")
}

// dataAtomBytes returns the raw value of the data atom inside a tag atom.
func dataAtomBytes(sr *binary.SafeReader, tag *Atom) ([]byte, error) {
	if tag.DataSize() <= 0 {
		return nil, nil
	}
	data, err := findAtom(sr, tag.DataOffset(), tag.End(), "data")
	if err != nil {
		return nil, nil
	}
	// Skip version (1) + flags (3) + reserved (4).
	valueOffset := data.DataOffset() + 8
	valueSize := data.End() - valueOffset
	if valueSize <= 0 {
		return nil, nil
	}
	buf := make([]byte, valueSize)
	if err := sr.ReadAt(buf, valueOffset, "tag value"); err != nil {
		return nil, err
	}
	return buf, nil
}

func dataAtomString(sr *binary.SafeReader, tag *Atom) (string, error) {
	b, err := dataAtomBytes(sr, tag)
	if err != nil {
		return "", err
	}
	value := strings.TrimRight(string(b), "\x00")
	return strings.TrimSpace(value), nil
}

// parseCustomAtom parses a ---- custom atom: mean (namespace), name (field
// name), data (value).
func parseCustomAtom(sr *binary.SafeReader, custom *Atom) (name, value string, err error) {
	offset := custom.DataOffset()
	for offset+headerSize <= custom.End() {
		child, err := readAtomHeader(sr, offset)
		if err != nil || child.End() > custom.End() {
			break
		}

		switch child.Type {
		case "name":
			// Skip version + flags.
			size := child.DataSize() - 4
			if size > 0 {
				buf := make([]byte, size)
				if err := sr.ReadAt(buf, child.DataOffset()+4, "custom field name"); err == nil {
					name = string(buf)
				}
			}
		case "data":
			v, err := dataAtomValue(sr, child)
			if err == nil {
				value = v
			}
		}

		offset = child.End()
	}
	return name, value, nil
}

// dataAtomValue reads the value of a data atom directly (the atom itself, not
// a tag wrapping one).
func dataAtomValue(sr *binary.SafeReader, data *Atom) (string, error) {
	valueOffset := data.DataOffset() + 8
	valueSize := data.End() - valueOffset
	if valueSize <= 0 {
		return "", nil
	}
	buf := make([]byte, valueSize)
	if err := sr.ReadAt(buf, valueOffset, "custom field value"); err != nil {
		return "", err
	}
	value := strings.TrimRight(string(buf), "\x00")
	return strings.TrimSpace(value), nil
}

func applyCustomField(name, value string, meta *audiometa.Metadata) {
	if value == "" {
		return
	}
	switch strings.ToLower(name) {
	case "narrator":
		meta.Narrator = value
	case "series":
		meta.Series = value
	case "series part", "seriespart", "part", "volume":
		meta.Part = value
	}
}

