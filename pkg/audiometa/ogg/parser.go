package ogg

import (
	"io"
	"time"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// Parse reads tags, chapters and duration from the first Vorbis stream of an
// Ogg file.
func Parse(r io.ReaderAt, size int64, path string) (*audiometa.Metadata, error) {
	format, err := audiometa.DetectFormat(r, size, path)
	if err != nil {
		return nil, err
	}
	if format != audiometa.FormatOgg {
		return nil, &audiometa.UnsupportedFormatError{Path: path, Reason: "not an ogg container"}
	}

	sr := binary.NewSafeReader(r, size, path)
	demux := newDemuxer(sr)
	stream, err := demux.firstStream()
	if err != nil {
		if err == io.EOF {
			return nil, &audiometa.CorruptedFileError{Path: path, Reason: "no logical stream"}
		}
		return nil, err
	}

	idPacket, err := stream.nextPacket()
	if err != nil {
		return nil, &audiometa.CorruptedFileError{Path: path, Reason: "missing identification packet"}
	}
	ident, err := parseIdentification(idPacket, path)
	if err != nil {
		return nil, err
	}
	commentPacket, err := stream.nextPacket()
	if err != nil {
		return nil, &audiometa.CorruptedFileError{Path: path, Reason: "missing comment packet"}
	}
	cm, err := parseComments(commentPacket, path)
	if err != nil {
		return nil, err
	}

	meta := &audiometa.Metadata{
		Format:   audiometa.FormatOgg,
		FileSize: size,
		Title:    cm.first("TITLE"),
		Artist:   cm.first("ARTIST"),
		Album:    cm.first("ALBUM"),
		Genre:    cm.first("GENRE"),
	}
	marks, warnings := cm.chapters()
	meta.Chapters = audiometa.NormalizeMarks(marks)
	for _, w := range warnings {
		meta.AddWarning("%s", w)
	}

	granule, err := stream.lastGranule()
	if err != nil {
		meta.AddWarning("duration unavailable: %v", err)
	} else if ident.sampleRate > 0 && granule > 0 {
		meta.Duration = time.Duration(granule) * time.Second / time.Duration(ident.sampleRate)
	}
	return meta, nil
}
