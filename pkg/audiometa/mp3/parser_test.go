package mp3

import (
	"bytes"
	"testing"
	"time"
)

// buildTaggedFile assembles an ID3v2.4 tag followed by a 128 kbit/s MPEG-1
// audio stream of the given byte length.
func buildTaggedFile(audioBytes int, frames ...[]byte) []byte {
	var body []byte
	for _, f := range frames {
		body = append(body, f...)
	}

	size := len(body)
	file := []byte("ID3")
	file = append(file, 4, 0, 0) // v2.4, no flags
	file = append(file,
		byte(size>>21&0x7F), byte(size>>14&0x7F), byte(size>>7&0x7F), byte(size&0x7F))
	file = append(file, body...)

	audio := make([]byte, audioBytes)
	copy(audio, []byte{0xFF, 0xFB, 0x90, 0x00})
	return append(file, audio...)
}

func TestParseTagsAndChapters(t *testing.T) {
	file := buildTaggedFile(16000,
		buildFrame("TIT2", append([]byte{3}, "Part One"...), 4),
		buildFrame("TALB", append([]byte{3}, "A Book"...), 4),
		buildFrame("TPE1", append([]byte{3}, "An Author"...), 4),
		buildFrame("CHAP", buildChapBody("chp1", 0, "Opening", 4), 4),
		buildFrame("CHAP", buildChapBody("chp0", 60_000, "Next", 4), 4),
	)

	meta, err := Parse(bytes.NewReader(file), int64(len(file)), "book.mp3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if meta.Title != "Part One" || meta.Album != "A Book" || meta.Artist != "An Author" {
		t.Errorf("tags = %q / %q / %q", meta.Title, meta.Album, meta.Artist)
	}
	if len(meta.Chapters) != 2 {
		t.Fatalf("got %d chapters, want 2: %v", len(meta.Chapters), meta.Chapters)
	}
	// chapters sort by start time, not frame order
	if meta.Chapters[0].Name != "Opening" || meta.Chapters[1].Start != time.Minute {
		t.Errorf("chapters = %v", meta.Chapters)
	}
	// 16000 bytes at 128 kbit/s
	if meta.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", meta.Duration)
	}
}

func TestParseBareStream(t *testing.T) {
	audio := make([]byte, 32000)
	copy(audio, []byte{0xFF, 0xFB, 0x90, 0x00})

	meta, err := Parse(bytes.NewReader(audio), int64(len(audio)), "bare.mp3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if meta.Title != "" || len(meta.Chapters) != 0 {
		t.Errorf("unexpected metadata from a bare stream: %+v", meta)
	}
	if meta.Duration != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", meta.Duration)
	}
}

func TestParseXingFrameCount(t *testing.T) {
	// A Xing header overrides the CBR estimate with an exact frame count.
	audio := make([]byte, 8000)
	copy(audio, []byte{0xFF, 0xFB, 0x90, 0x00})
	xing := append([]byte("Xing"), 0, 0, 0, 0x1, 0, 0, 0x01, 0x2C) // 300 frames
	copy(audio[36:], xing)

	meta, err := Parse(bytes.NewReader(audio), int64(len(audio)), "vbr.mp3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// 300 frames x 1152 samples at 44100 Hz
	want := time.Duration(300) * 1152 * time.Second / 44100
	if meta.Duration != want {
		t.Errorf("Duration = %v, want %v", meta.Duration, want)
	}
}

func TestParseFrameHeaderRejectsNonsense(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"no sync", []byte{0x12, 0x34, 0x56, 0x78}},
		{"reserved version", []byte{0xFF, 0xEB, 0x90, 0x00}},
		{"layer I", []byte{0xFF, 0xFF, 0x90, 0x00}},
		{"free bitrate", []byte{0xFF, 0xFB, 0x00, 0x00}},
		{"bad sample rate", []byte{0xFF, 0xFB, 0x9C, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := parseFrameHeader(tt.data); ok {
				t.Error("expected rejection")
			}
		})
	}
}
