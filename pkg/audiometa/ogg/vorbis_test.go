package ogg

import (
	"encoding/binary"
	"testing"
	"time"
)

// buildCommentPacket serializes a Vorbis comment header from key=value
// entries, in order.
func buildCommentPacket(vendor string, entries ...string) []byte {
	packet := []byte{packetTypeComment}
	packet = append(packet, "vorbis"...)
	packet = binary.LittleEndian.AppendUint32(packet, uint32(len(vendor)))
	packet = append(packet, vendor...)
	packet = binary.LittleEndian.AppendUint32(packet, uint32(len(entries)))
	for _, e := range entries {
		packet = binary.LittleEndian.AppendUint32(packet, uint32(len(e)))
		packet = append(packet, e...)
	}
	return packet
}

func TestParseComments(t *testing.T) {
	packet := buildCommentPacket("test vendor",
		"TITLE=A Book",
		"artist=Someone",
		"CHAPTER001=00:00:00.000",
	)
	cm, err := parseComments(packet, "test.ogg")
	if err != nil {
		t.Fatalf("parseComments: %v", err)
	}
	if cm.vendor != "test vendor" {
		t.Errorf("vendor = %q", cm.vendor)
	}
	if got := cm.first("TITLE"); got != "A Book" {
		t.Errorf("TITLE = %q", got)
	}
	// keys are case-insensitive per the Vorbis comment spec
	if got := cm.first("ARTIST"); got != "Someone" {
		t.Errorf("ARTIST = %q", got)
	}
}

func TestParseCommentsTruncated(t *testing.T) {
	packet := buildCommentPacket("vendor", "TITLE=A Book")
	_, err := parseComments(packet[:len(packet)-4], "test.ogg")
	if err == nil {
		t.Fatal("expected an error for a truncated comment header")
	}
}

func TestCommentChapters(t *testing.T) {
	packet := buildCommentPacket("v",
		"CHAPTER001=00:00:00.000",
		"CHAPTER001NAME=Opening",
		"CHAPTER002=00:04:30.500",
		"CHAPTER002NAME=The Road",
		"CHAPTER003=01:00:00.000", // no NAME counterpart
		"CHAPTER004NAME=Orphan",   // no time counterpart
		"CHAPTER005=garbage",
		"CHAPTER005NAME=Bad Time",
	)
	cm, err := parseComments(packet, "test.ogg")
	if err != nil {
		t.Fatalf("parseComments: %v", err)
	}

	marks, warnings := cm.chapters()
	if len(marks) != 2 {
		t.Fatalf("got %d marks, want 2: %v", len(marks), marks)
	}
	if marks[0].Name != "Opening" || marks[0].Start != 0 {
		t.Errorf("marks[0] = %+v", marks[0])
	}
	wantStart := 4*time.Minute + 30*time.Second + 500*time.Millisecond
	if marks[1].Name != "The Road" || marks[1].Start != wantStart {
		t.Errorf("marks[1] = %+v, want start %v", marks[1], wantStart)
	}
	// chapters 3, 4 and 5 are all dropped; 5 warns twice, once for the
	// unparsable time and once for the incomplete pair it leaves behind
	if len(warnings) != 4 {
		t.Errorf("got %d warnings, want 4: %v", len(warnings), warnings)
	}
}

func TestParseChapterTime(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:00.000", 0, false},
		{"00:04:30.500", 4*time.Minute + 30*time.Second + 500*time.Millisecond, false},
		{"123:00:00.000", 123 * time.Hour, false},
		{"00:60:00.000", 0, true},
		{"00:00:61.000", 0, true},
		{"00:00:00.50", 0, true},
		{"00:00:00", 0, true},
		{"1:02", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseChapterTime(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseChapterTime(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseChapterTime(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseChapterTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseIdentification(t *testing.T) {
	packet := []byte{packetTypeIdentification}
	packet = append(packet, "vorbis"...)
	packet = binary.LittleEndian.AppendUint32(packet, 0) // version
	packet = append(packet, 2)                           // channels
	packet = binary.LittleEndian.AppendUint32(packet, 44100)

	ident, err := parseIdentification(packet, "test.ogg")
	if err != nil {
		t.Fatalf("parseIdentification: %v", err)
	}
	if ident.channels != 2 || ident.sampleRate != 44100 {
		t.Errorf("ident = %+v", ident)
	}
}

func TestParseIdentificationRejectsWrongPacket(t *testing.T) {
	packet := buildCommentPacket("v")
	if _, err := parseIdentification(packet, "test.ogg"); err == nil {
		t.Fatal("expected an error for a non-identification packet")
	}
}
