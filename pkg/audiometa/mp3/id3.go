// Package mp3 reads ID3v2 tags, chapter frames and stream duration from
// MPEG audio files.
package mp3

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// tagHeader is the 10-byte ID3v2 preamble.
type tagHeader struct {
	majorVersion byte
	flags        byte
	size         int64 // tag body size, header excluded
}

// frame is one raw ID3v2 frame.
type frame struct {
	id   string
	body []byte
}

func synchsafe(b []byte) int64 {
	var v int64
	for _, by := range b {
		v = v<<7 | int64(by&0x7F)
	}
	return v
}

func readTagHeader(sr *binary.SafeReader) (*tagHeader, error) {
	c := sr.Cursor(0, sr.Size())
	raw, err := c.Bytes(10, "id3 header")
	if err != nil {
		return nil, err
	}
	if string(raw[:3]) != "ID3" {
		return nil, &audiometa.UnsupportedFormatError{Path: sr.Path(), Reason: "no id3v2 tag"}
	}
	h := &tagHeader{majorVersion: raw[3], flags: raw[5], size: synchsafe(raw[6:10])}
	if h.majorVersion < 2 || h.majorVersion > 4 {
		return nil, &audiometa.UnsupportedFormatError{
			Path:   sr.Path(),
			Reason: fmt.Sprintf("unsupported id3v2.%d tag", h.majorVersion),
		}
	}
	if 10+h.size > sr.Size() {
		return nil, &audiometa.CorruptedFileError{Path: sr.Path(), Reason: "id3 tag size exceeds file size"}
	}
	return h, nil
}

// frameSize interprets the frame size field, which is synchsafe only in
// ID3v2.4.
func frameSize(raw []byte, majorVersion byte) int64 {
	if majorVersion >= 4 {
		return synchsafe(raw)
	}
	var v int64
	for _, by := range raw {
		v = v<<8 | int64(by)
	}
	return v
}

// parseFrames walks the frames in body. Padding (a zero frame id) ends the
// walk.
func parseFrames(body []byte, majorVersion byte) []frame {
	var frames []frame
	pos := 0
	for pos+10 <= len(body) {
		id := string(body[pos : pos+4])
		if id[0] == 0 {
			break
		}
		size := frameSize(body[pos+4:pos+8], majorVersion)
		pos += 10
		if size <= 0 || pos+int(size) > len(body) {
			break
		}
		frames = append(frames, frame{id: id, body: body[pos : pos+int(size)]})
		pos += int(size)
	}
	return frames
}

// decodeText decodes an ID3 text payload led by its encoding byte.
func decodeText(body []byte) (string, error) {
	if len(body) == 0 {
		return "", nil
	}
	encodingByte, text := body[0], body[1:]
	var decoded []byte
	var err error
	switch encodingByte {
	case 0: // ISO-8859-1
		decoded, err = charmap.ISO8859_1.NewDecoder().Bytes(text)
	case 1: // UTF-16 with BOM
		decoded, err = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(text)
	case 2: // UTF-16BE
		decoded, err = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(text)
	case 3: // UTF-8
		decoded = text
	default:
		return "", fmt.Errorf("unknown text encoding %d", encodingByte)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(decoded), "\x00"), nil
}

// readTag loads the whole tag body into memory. Tags are small relative to
// the audio they describe.
func readTag(sr *binary.SafeReader) (*tagHeader, []byte, error) {
	h, err := readTagHeader(sr)
	if err != nil {
		return nil, nil, err
	}
	c := sr.Cursor(10, 10+h.size)
	body, err := c.Bytes(int(h.size), "id3 tag body")
	if err != nil {
		return nil, nil, err
	}
	const flagUnsynchronisation = 0x80
	if h.flags&flagUnsynchronisation != 0 {
		body = bytes.ReplaceAll(body, []byte{0xFF, 0x00}, []byte{0xFF})
	}
	return h, body, nil
}
