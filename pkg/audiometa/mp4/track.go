package mp4

import (
	"time"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// extractChapterTrack reads chapter marks from the text track referenced by a
// chap track reference. Each chunk offset of the track locates one chapter
// sample; start times accumulate from per-sample durations over the track's
// timescale.
func extractChapterTrack(sr *binary.SafeReader, out *parseOutput) ([]audiometa.Mark, error) {
	track := out.trackByID(out.chapterTrackID)
	if track == nil {
		return nil, &audiometa.CorruptedFileError{
			Path:   sr.Path(),
			Offset: 0,
			Reason: "chap reference points at a missing track",
		}
	}
	if track.timescale == 0 || len(track.chunkOffsets) == 0 || len(track.durations) == 0 {
		return nil, &audiometa.CorruptedFileError{
			Path:   sr.Path(),
			Offset: 0,
			Reason: "chapter track has incomplete sample tables",
		}
	}

	marks := make([]audiometa.Mark, 0, len(track.chunkOffsets))
	var position uint64
	sampleIndex := 0

	for chunkIndex, offset := range track.chunkOffsets {
		name, err := readChapterSample(sr, offset, track.sampleFormat)
		if err != nil {
			return nil, err
		}

		marks = append(marks, audiometa.Mark{
			Start: time.Duration(position) * time.Second / time.Duration(track.timescale),
			Name:  name,
		})

		var chunkDuration uint64
		for n := samplesPerChunk(chunkIndex, track.stsc); n > 0; n-- {
			if sampleIndex < len(track.durations) {
				chunkDuration += uint64(track.durations[sampleIndex])
				sampleIndex++
			}
		}
		position += chunkDuration
	}

	return marks, nil
}

// samplesPerChunk resolves the stsc run-length table for a 0-based chunk
// index. Absent or non-covering tables default to one sample per chunk.
func samplesPerChunk(chunkIndex int, entries []stscEntry) int {
	chunkNumber := uint32(chunkIndex + 1)
	for i, entry := range entries {
		if chunkNumber < entry.firstChunk {
			continue
		}
		if i+1 >= len(entries) || chunkNumber < entries[i+1].firstChunk {
			return int(entry.samplesPerChunk)
		}
	}
	return 1
}

// readChapterSample decodes one chapter title sample. The sample encoding is
// selected by the track's declared stsd format: QuickTime text tracks
// ("text", "tx3g") store a 2-byte length-prefixed string, WebVTT tracks
// ("wvtt") store a vttc cue box with a payl payload.
func readChapterSample(sr *binary.SafeReader, offset int64, format string) (string, error) {
	if format == "wvtt" {
		return readVttCue(sr, offset)
	}
	c := sr.Cursor(offset, sr.Size())
	textLen, err := c.U16("chapter text length")
	if err != nil {
		return "", err
	}
	return c.String(int(textLen), "chapter text")
}

// readVttCue reads the payl payload of the vttc box at offset. A vtte box
// (empty cue) yields an empty title.
func readVttCue(sr *binary.SafeReader, offset int64) (string, error) {
	cue, err := readAtomHeader(sr, offset)
	if err != nil {
		return "", err
	}
	switch cue.Type {
	case "vtte":
		return "", nil
	case "vttc":
	default:
		return "", &audiometa.CorruptedFileError{
			Path:   sr.Path(),
			Offset: offset,
			Reason: "expected vttc cue box, got " + cue.Type,
		}
	}
	payl, err := findAtom(sr, cue.DataOffset(), cue.End(), "payl")
	if err != nil {
		return "", err
	}
	c := sr.Cursor(payl.DataOffset(), payl.End())
	return c.String(int(payl.DataSize()), "cue payload")
}
