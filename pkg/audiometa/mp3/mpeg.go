package mp3

import (
	"encoding/binary"
	"time"

	binreader "github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// MPEG-1 Layer III bitrates in kbit/s, indexed by the frame header field.
var bitratesV1L3 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

// MPEG-2/2.5 Layer III bitrates.
var bitratesV2L3 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}

var sampleRatesV1 = [4]int{44100, 48000, 32000, 0}

// frameInfo describes the first MPEG audio frame after the tag.
type frameInfo struct {
	bitrate    int // bits per second
	sampleRate int
	samples    int // samples per frame
	offset     int64
}

// findFirstFrame scans forward from offset for a valid MPEG frame sync.
func findFirstFrame(sr *binreader.SafeReader, offset int64) (*frameInfo, bool) {
	const window = 64 * 1024
	end := offset + window
	if end > sr.Size() {
		end = sr.Size()
	}
	if end-offset < 4 {
		return nil, false
	}
	buf := make([]byte, end-offset)
	if err := sr.ReadAt(buf, offset, "mpeg frame scan"); err != nil {
		return nil, false
	}
	for i := 0; i+4 <= len(buf); i++ {
		fi, ok := parseFrameHeader(buf[i : i+4])
		if ok {
			fi.offset = offset + int64(i)
			return fi, true
		}
	}
	return nil, false
}

func parseFrameHeader(b []byte) (*frameInfo, bool) {
	header := binary.BigEndian.Uint32(b)
	if header>>21&0x7FF != 0x7FF {
		return nil, false
	}
	versionBits := header >> 19 & 0x3
	layerBits := header >> 17 & 0x3
	bitrateIndex := header >> 12 & 0xF
	sampleRateIndex := header >> 10 & 0x3
	if versionBits == 1 || layerBits != 1 { // reserved version, or not layer III
		return nil, false
	}
	if bitrateIndex == 0 || bitrateIndex == 15 || sampleRateIndex == 3 {
		return nil, false
	}

	fi := &frameInfo{}
	switch versionBits {
	case 3: // MPEG-1
		fi.bitrate = bitratesV1L3[bitrateIndex] * 1000
		fi.sampleRate = sampleRatesV1[sampleRateIndex]
		fi.samples = 1152
	case 2: // MPEG-2
		fi.bitrate = bitratesV2L3[bitrateIndex] * 1000
		fi.sampleRate = sampleRatesV1[sampleRateIndex] / 2
		fi.samples = 576
	case 0: // MPEG-2.5
		fi.bitrate = bitratesV2L3[bitrateIndex] * 1000
		fi.sampleRate = sampleRatesV1[sampleRateIndex] / 4
		fi.samples = 576
	}
	if fi.bitrate == 0 || fi.sampleRate == 0 {
		return nil, false
	}
	return fi, true
}

// estimateDuration derives the stream duration from the first frame. A Xing
// or Info header gives an exact frame count for variable bitrate files;
// otherwise the first frame's bitrate is assumed constant.
func estimateDuration(sr *binreader.SafeReader, audioStart int64) time.Duration {
	fi, ok := findFirstFrame(sr, audioStart)
	if !ok {
		return 0
	}
	if frames, ok := readXingFrameCount(sr, fi); ok {
		return time.Duration(frames) * time.Duration(fi.samples) * time.Second / time.Duration(fi.sampleRate)
	}
	audioBytes := sr.Size() - fi.offset
	return time.Duration(audioBytes) * 8 * time.Second / time.Duration(fi.bitrate)
}

func readXingFrameCount(sr *binreader.SafeReader, fi *frameInfo) (uint32, bool) {
	// The Xing header sits inside the first frame, past the side info.
	buf := make([]byte, 256)
	end := fi.offset + int64(len(buf))
	if end > sr.Size() {
		buf = buf[:sr.Size()-fi.offset]
	}
	if err := sr.ReadAt(buf, fi.offset, "xing header scan"); err != nil {
		return 0, false
	}
	for i := 4; i+12 <= len(buf); i++ {
		tag := string(buf[i : i+4])
		if tag != "Xing" && tag != "Info" {
			continue
		}
		flags := binary.BigEndian.Uint32(buf[i+4 : i+8])
		const flagFrames = 0x1
		if flags&flagFrames == 0 {
			return 0, false
		}
		return binary.BigEndian.Uint32(buf[i+8 : i+12]), true
	}
	return 0, false
}
