// Package ogg reads Vorbis metadata and chapter comments from Ogg containers.
package ogg

import (
	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

const capturePattern = 0x4F676753 // "OggS"

const (
	flagContinuedPacket = 0x01
	flagFirstPage       = 0x02
	flagLastPage        = 0x04
)

// page is one physical Ogg page. packetSizes is derived from the segment
// table; when continuedOut is set the final packet spills into the next page
// of the same logical stream.
type page struct {
	headerType      byte
	granulePosition int64
	serial          uint32
	sequence        uint32
	packets         [][]byte
	continuedIn     bool
	continuedOut    bool
	offset          int64
	nextOffset      int64
}

// computePacketSizes folds an Ogg segment table into packet sizes. Lacing
// values accumulate until one below 255 terminates the packet; a trailing 255
// means the last packet continues on the next page.
func computePacketSizes(segmentTable []byte) (sizes []int, continuedOut bool) {
	current := 0
	for _, lacing := range segmentTable {
		current += int(lacing)
		if lacing < 255 {
			sizes = append(sizes, current)
			current = 0
		}
	}
	if len(segmentTable) > 0 && segmentTable[len(segmentTable)-1] == 255 {
		sizes = append(sizes, current)
		continuedOut = true
	}
	return sizes, continuedOut
}

// readPage parses the page starting at offset. The caller advances using
// page.nextOffset.
func readPage(sr *binary.SafeReader, offset int64) (*page, error) {
	c := sr.Cursor(offset, sr.Size())
	magic, err := c.U32("ogg capture pattern")
	if err != nil {
		return nil, err
	}
	if magic != capturePattern {
		return nil, &audiometa.CorruptedFileError{
			Path:   sr.Path(),
			Offset: offset,
			Reason: "missing OggS capture pattern",
		}
	}
	version, err := c.U8("ogg version")
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, &audiometa.UnsupportedFormatError{Path: sr.Path(), Reason: "unsupported ogg version"}
	}

	p := &page{offset: offset}
	if p.headerType, err = c.U8("ogg header type"); err != nil {
		return nil, err
	}
	granule, err := c.U64LE("ogg granule position")
	if err != nil {
		return nil, err
	}
	p.granulePosition = int64(granule)
	if p.serial, err = c.U32LE("ogg serial"); err != nil {
		return nil, err
	}
	if p.sequence, err = c.U32LE("ogg page sequence"); err != nil {
		return nil, err
	}
	if _, err = c.U32LE("ogg checksum"); err != nil {
		return nil, err
	}
	segmentCount, err := c.U8("ogg segment count")
	if err != nil {
		return nil, err
	}
	segmentTable, err := c.Bytes(int(segmentCount), "ogg segment table")
	if err != nil {
		return nil, err
	}

	sizes, continuedOut := computePacketSizes(segmentTable)
	p.continuedIn = p.headerType&flagContinuedPacket != 0
	p.continuedOut = continuedOut
	for _, size := range sizes {
		data, err := c.Bytes(size, "ogg packet data")
		if err != nil {
			return nil, err
		}
		p.packets = append(p.packets, data)
	}
	p.nextOffset = c.Pos()
	return p, nil
}
