package ogg

import (
	"io"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// demuxer pulls pages from the file on demand and hands them to the logical
// streams that asked for them.
type demuxer struct {
	sr      *binary.SafeReader
	offset  int64
	streams map[uint32]*logicalStream
}

func newDemuxer(sr *binary.SafeReader) *demuxer {
	return &demuxer{sr: sr, streams: make(map[uint32]*logicalStream)}
}

// pull reads the next physical page and routes it. Returns io.EOF at the end
// of the file.
func (d *demuxer) pull() error {
	if d.offset >= d.sr.Size() {
		return io.EOF
	}
	p, err := readPage(d.sr, d.offset)
	if err != nil {
		return err
	}
	d.offset = p.nextOffset
	s, ok := d.streams[p.serial]
	if !ok {
		s = &logicalStream{serial: p.serial, demux: d}
		d.streams[p.serial] = s
	}
	s.accept(p)
	return nil
}

// firstStream pulls pages until the first logical stream announces itself.
func (d *demuxer) firstStream() (*logicalStream, error) {
	for {
		if err := d.pull(); err != nil {
			return nil, err
		}
		for _, s := range d.streams {
			if s.began {
				return s, nil
			}
		}
	}
}

// logicalStream reassembles the packet sequence of one serial number.
// Packets spanning page boundaries are concatenated as pages arrive.
type logicalStream struct {
	serial  uint32
	demux   *demuxer
	began   bool
	ended   bool
	packets [][]byte
	partial []byte
	granule int64
}

func (s *logicalStream) accept(p *page) {
	if p.headerType&flagFirstPage != 0 {
		s.began = true
	}
	if p.headerType&flagLastPage != 0 {
		s.ended = true
	}
	if p.granulePosition >= 0 {
		s.granule = p.granulePosition
	}
	for i, data := range p.packets {
		if i == 0 && p.continuedIn {
			s.partial = append(s.partial, data...)
			if len(p.packets) == 1 && p.continuedOut {
				continue
			}
			s.packets = append(s.packets, s.partial)
			s.partial = nil
			continue
		}
		if i == len(p.packets)-1 && p.continuedOut {
			s.partial = append(s.partial, data...)
			continue
		}
		s.packets = append(s.packets, data)
	}
}

// nextPacket returns the next complete packet, pulling pages from the file
// as needed. Returns io.EOF when the stream is exhausted.
func (s *logicalStream) nextPacket() ([]byte, error) {
	for len(s.packets) == 0 {
		if s.ended {
			return nil, io.EOF
		}
		if err := s.demux.pull(); err != nil {
			return nil, err
		}
	}
	p := s.packets[0]
	s.packets = s.packets[1:]
	return p, nil
}

// lastGranule drains the remaining pages of the stream and reports the final
// granule position, which for Vorbis is the total sample count.
func (s *logicalStream) lastGranule() (int64, error) {
	for !s.ended {
		if err := s.demux.pull(); err != nil {
			if err == io.EOF {
				break
			}
			return 0, err
		}
	}
	return s.granule, nil
}
