package mp3

import (
	"errors"
	"io"
	"sort"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	binreader "github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// Parse reads ID3v2 tags, CHAP chapters and an estimated duration from an
// MPEG audio file. Files with a bare audio stream and no tag still get a
// duration.
func Parse(r io.ReaderAt, size int64, path string) (*audiometa.Metadata, error) {
	format, err := audiometa.DetectFormat(r, size, path)
	if err != nil {
		return nil, err
	}
	if format != audiometa.FormatMP3 {
		return nil, &audiometa.UnsupportedFormatError{Path: path, Reason: "not an mpeg audio file"}
	}

	sr := binreader.NewSafeReader(r, size, path)
	meta := &audiometa.Metadata{Format: audiometa.FormatMP3, FileSize: size}

	var audioStart int64
	h, body, err := readTag(sr)
	switch {
	case err == nil:
		audioStart = 10 + h.size
		readFrames(h, body, meta)
	case isUnsupported(err):
		// No tag, just audio.
	default:
		return nil, err
	}

	meta.Duration = estimateDuration(sr, audioStart)
	return meta, nil
}

func isUnsupported(err error) bool {
	var ue *audiometa.UnsupportedFormatError
	return errors.As(err, &ue)
}

func readFrames(h *tagHeader, body []byte, meta *audiometa.Metadata) {
	var chapters []audiometa.Mark

	for _, f := range parseFrames(body, h.majorVersion) {
		switch f.id {
		case "TIT2", "TPE1", "TALB", "TCON":
			text, err := decodeText(f.body)
			if err != nil {
				meta.AddWarning("%s: %v", f.id, err)
				continue
			}
			switch f.id {
			case "TIT2":
				meta.Title = text
			case "TPE1":
				meta.Artist = text
			case "TALB":
				meta.Album = text
			case "TCON":
				meta.Genre = text
			}
		case "CHAP":
			mark, err := parseChapFrame(f, h.majorVersion)
			if err != nil {
				meta.AddWarning("%v", err)
				continue
			}
			chapters = append(chapters, mark)
		}
	}

	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Start < chapters[j].Start
	})
	meta.Chapters = audiometa.NormalizeMarks(chapters)
}
