package mp4

import (
	"strings"
	"time"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// stscEntry is one sample-to-chunk table row.
type stscEntry struct {
	firstChunk      uint32
	samplesPerChunk uint32
}

// trackTable accumulates the sample-table state of one trak box, enough to
// locate and time the samples of a chapter text track.
type trackTable struct {
	trackID      uint32
	timescale    uint32
	durations    []uint32 // per-sample, expanded from stts runs
	chunkOffsets []int64  // stco or co64
	stsc         []stscEntry
	sampleFormat string   // stsd entry fourcc: "text", "tx3g", "wvtt"
}

// parseOutput accumulates whatever each visited box contributed.
type parseOutput struct {
	chplChapters   []audiometa.Mark
	chapterTrackID uint32
	tracks         []*trackTable
}

func (o *parseOutput) currentTrack() *trackTable {
	if len(o.tracks) == 0 {
		return nil
	}
	return o.tracks[len(o.tracks)-1]
}

func (o *parseOutput) trackByID(id uint32) *trackTable {
	for _, t := range o.tracks {
		if t.trackID == id {
			return t
		}
	}
	return nil
}

// visitor parses the payload of one box, identified by its exact path.
type visitor func(c *binary.Cursor, out *parseOutput) error

// visitorPaths maps slash-joined box paths to their payload parsers. A box is
// only descended into when some visitor path has the current path as a
// prefix, so irrelevant trees (mdat in particular) are skipped by byte count.
var visitorPaths = map[string]visitor{
	"moov/udta/chpl":               visitChpl,
	"moov/trak":                    visitTrak,
	"moov/trak/tkhd":               visitTkhd,
	"moov/trak/tref/chap":          visitChap,
	"moov/trak/mdia/mdhd":          visitMdhd,
	"moov/trak/mdia/minf/stbl/stsd": visitStsd,
	"moov/trak/mdia/minf/stbl/stsc": visitStsc,
	"moov/trak/mdia/minf/stbl/stts": visitStts,
	"moov/trak/mdia/minf/stbl/stco": visitStco,
	"moov/trak/mdia/minf/stbl/co64": visitCo64,
}

func shouldDescend(path string) bool {
	prefix := path + "/"
	for p := range visitorPaths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// walkBoxes walks the box tree in [start, end), dispatching interesting boxes
// to their visitors. It stops early once a chpl box yielded chapters.
func walkBoxes(sr *binary.SafeReader, start, end int64, path string, out *parseOutput) error {
	offset := start
	for offset+headerSize <= end {
		atom, err := readAtomHeader(sr, offset)
		if err != nil {
			return err
		}
		if atom.End() > end {
			return &audiometa.CorruptedFileError{
				Path:   sr.Path(),
				Offset: offset,
				Reason: "atom size exceeds parent bounds",
			}
		}

		boxPath := atom.Type
		if path != "" {
			boxPath = path + "/" + atom.Type
		}

		if v, ok := visitorPaths[boxPath]; ok {
			c := sr.Cursor(atom.DataOffset(), atom.End())
			if err := v(c, out); err != nil {
				return err
			}
			// trak is a container as well as a marker for "new track".
			if atom.Type == "trak" {
				if err := walkBoxes(sr, atom.DataOffset(), atom.End(), boxPath, out); err != nil {
					return err
				}
			}
			if len(out.chplChapters) > 0 {
				return nil
			}
		} else if shouldDescend(boxPath) {
			if err := walkBoxes(sr, atom.DataOffset(), atom.End(), boxPath, out); err != nil {
				return err
			}
			if len(out.chplChapters) > 0 {
				return nil
			}
		}
		// Anything else is skipped by exact byte count via atom.End().

		offset = atom.End()
	}
	return nil
}

func visitTrak(_ *binary.Cursor, out *parseOutput) error {
	out.tracks = append(out.tracks, &trackTable{})
	return nil
}

func visitTkhd(c *binary.Cursor, out *parseOutput) error {
	t := out.currentTrack()
	if t == nil {
		return nil
	}
	version, err := c.U8("tkhd version")
	if err != nil {
		return err
	}
	c.Skip(3) // flags
	if version == 1 {
		c.Skip(16) // creation + modification time (64-bit)
	} else {
		c.Skip(8)
	}
	id, err := c.U32("tkhd track id")
	if err != nil {
		return err
	}
	t.trackID = id
	return nil
}

func visitMdhd(c *binary.Cursor, out *parseOutput) error {
	t := out.currentTrack()
	if t == nil {
		return nil
	}
	version, err := c.U8("mdhd version")
	if err != nil {
		return err
	}
	c.Skip(3)
	if version == 1 {
		c.Skip(16)
	} else {
		c.Skip(8)
	}
	timescale, err := c.U32("mdhd timescale")
	if err != nil {
		return err
	}
	t.timescale = timescale
	return nil
}

func visitChap(c *binary.Cursor, out *parseOutput) error {
	// A chap track reference lists the chapter track id(s); the first is the
	// text track carrying chapter titles.
	id, err := c.U32("chap track reference")
	if err != nil {
		return err
	}
	out.chapterTrackID = id
	return nil
}

func visitStsd(c *binary.Cursor, out *parseOutput) error {
	t := out.currentTrack()
	if t == nil {
		return nil
	}
	c.Skip(4) // version + flags
	count, err := c.U32("stsd entry count")
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	c.Skip(4) // first entry size
	format, err := c.String(4, "stsd entry format")
	if err != nil {
		return err
	}
	t.sampleFormat = format
	return nil
}

func visitStsc(c *binary.Cursor, out *parseOutput) error {
	t := out.currentTrack()
	if t == nil {
		return nil
	}
	c.Skip(4)
	count, err := c.U32("stsc entry count")
	if err != nil {
		return err
	}
	entries := make([]stscEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		first, err := c.U32("stsc first chunk")
		if err != nil {
			return err
		}
		samples, err := c.U32("stsc samples per chunk")
		if err != nil {
			return err
		}
		c.Skip(4) // sample description index
		entries = append(entries, stscEntry{firstChunk: first, samplesPerChunk: samples})
	}
	t.stsc = entries
	return nil
}

func visitStts(c *binary.Cursor, out *parseOutput) error {
	t := out.currentTrack()
	if t == nil {
		return nil
	}
	c.Skip(4)
	count, err := c.U32("stts entry count")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		sampleCount, err := c.U32("stts sample count")
		if err != nil {
			return err
		}
		delta, err := c.U32("stts sample delta")
		if err != nil {
			return err
		}
		// Chapter tracks have a handful of samples; a lying sample count must
		// not allocate unbounded memory.
		if int64(len(t.durations))+int64(sampleCount) > 1<<20 {
			return &audiometa.CorruptedFileError{
				Path:   c.Path(),
				Offset: c.Pos(),
				Reason: "stts sample count implausibly large",
			}
		}
		for j := uint32(0); j < sampleCount; j++ {
			t.durations = append(t.durations, delta)
		}
	}
	return nil
}

func visitStco(c *binary.Cursor, out *parseOutput) error {
	t := out.currentTrack()
	if t == nil {
		return nil
	}
	c.Skip(4)
	count, err := c.U32("stco entry count")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		off, err := c.U32("stco chunk offset")
		if err != nil {
			return err
		}
		t.chunkOffsets = append(t.chunkOffsets, int64(off))
	}
	return nil
}

func visitCo64(c *binary.Cursor, out *parseOutput) error {
	t := out.currentTrack()
	if t == nil {
		return nil
	}
	c.Skip(4)
	count, err := c.U32("co64 entry count")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		off, err := c.U64("co64 chunk offset")
		if err != nil {
			return err
		}
		t.chunkOffsets = append(t.chunkOffsets, int64(off))
	}
	return nil
}

// visitChpl parses the Nero chapter list box. Start times are in 100ns units.
func visitChpl(c *binary.Cursor, out *parseOutput) error {
	version, err := c.U8("chpl version")
	if err != nil {
		return err
	}
	c.Skip(3) // flags
	c.Skip(1) // reserved
	count, err := c.U32("chpl chapter count")
	if err != nil {
		return err
	}

	marks := make([]audiometa.Mark, 0, count)
	for i := uint32(0); i < count; i++ {
		var start100ns uint64
		if version == 0 {
			v, err := c.U32("chpl start time")
			if err != nil {
				return err
			}
			start100ns = uint64(v)
		} else {
			v, err := c.U64("chpl start time")
			if err != nil {
				return err
			}
			start100ns = v
		}
		titleLen, err := c.U8("chpl title length")
		if err != nil {
			return err
		}
		title, err := c.String(int(titleLen), "chpl title")
		if err != nil {
			return err
		}
		marks = append(marks, audiometa.Mark{
			Start: time.Duration(start100ns) * 100 * time.Nanosecond,
			Name:  title,
		})
	}
	out.chplChapters = marks
	return nil
}
