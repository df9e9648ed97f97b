package mp4

import (
	"io"
	"time"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// Parse parses an MP4-family file and extracts metadata and chapter marks.
func Parse(r io.ReaderAt, size int64, path string) (*audiometa.Metadata, error) {
	format, err := audiometa.DetectFormat(r, size, path)
	if err != nil {
		return nil, err
	}
	if format != audiometa.FormatMP4 {
		return nil, &audiometa.UnsupportedFormatError{Path: path, Reason: "not an MP4-family file"}
	}

	sr := binary.NewSafeReader(r, size, path)
	meta := &audiometa.Metadata{
		Format:   audiometa.FormatMP4,
		FileSize: size,
	}

	moov, err := findAtom(sr, 0, size, "moov")
	if err != nil {
		// No moov, nothing to extract.
		return meta, nil
	}

	if d, err := readMovieDuration(sr, moov); err == nil {
		meta.Duration = d
	} else {
		meta.AddWarning("failed to read movie duration: %v", err)
	}

	extractIlstMetadata(sr, moov, meta)

	chapters, err := extractChapters(sr)
	if err != nil {
		// A malformed chapter structure aborts chapter extraction for this
		// file but keeps the rest of the metadata.
		meta.AddWarning("failed to extract chapters: %v", err)
	}
	meta.Chapters = audiometa.NormalizeMarks(chapters)

	return meta, nil
}

// extractChapters walks the box tree for chapter data. A chpl box wins; a
// chap track reference is the fallback.
func extractChapters(sr *binary.SafeReader) ([]audiometa.Mark, error) {
	out := &parseOutput{}
	if err := walkBoxes(sr, 0, sr.Size(), "", out); err != nil {
		return nil, err
	}
	switch {
	case len(out.chplChapters) > 0:
		return out.chplChapters, nil
	case out.chapterTrackID != 0:
		return extractChapterTrack(sr, out)
	default:
		return nil, nil
	}
}

// readMovieDuration reads the presentation duration from the mvhd box.
func readMovieDuration(sr *binary.SafeReader, moov *Atom) (time.Duration, error) {
	mvhd, err := findAtom(sr, moov.DataOffset(), moov.End(), "mvhd")
	if err != nil {
		return 0, err
	}
	c := sr.Cursor(mvhd.DataOffset(), mvhd.End())
	version, err := c.U8("mvhd version")
	if err != nil {
		return 0, err
	}
	c.Skip(3) // flags

	var timescale uint32
	var duration uint64
	if version == 1 {
		c.Skip(16) // creation + modification time
		if timescale, err = c.U32("mvhd timescale"); err != nil {
			return 0, err
		}
		if duration, err = c.U64("mvhd duration"); err != nil {
			return 0, err
		}
	} else {
		c.Skip(8)
		if timescale, err = c.U32("mvhd timescale"); err != nil {
			return 0, err
		}
		d32, err := c.U32("mvhd duration")
		if err != nil {
			return 0, err
		}
		duration = uint64(d32)
	}
	if timescale == 0 {
		return 0, &audiometa.CorruptedFileError{Path: sr.Path(), Offset: mvhd.Offset, Reason: "mvhd timescale is zero"}
	}
	return time.Duration(duration) * time.Second / time.Duration(timescale), nil
}
