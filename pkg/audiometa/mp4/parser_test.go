package mp4

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	safebin "github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

func newTestReader(raw []byte) *safebin.SafeReader {
	return safebin.NewSafeReader(bytes.NewReader(raw), int64(len(raw)), "fixture.m4b")
}

// box serializes one ISO-BMFF box.
func box(fourcc string, payload ...[]byte) []byte {
	var body []byte
	for _, p := range payload {
		body = append(body, p...)
	}
	out := binary.BigEndian.AppendUint32(nil, uint32(8+len(body)))
	out = append(out, fourcc...)
	return append(out, body...)
}

func u32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

func ftypBox() []byte { return box("ftyp", []byte("M4B \x00\x00\x00\x00")) }

// mvhdBox builds a version-0 movie header.
func mvhdBox(timescale, duration uint32) []byte {
	payload := make([]byte, 12) // version + flags + creation + modification
	payload = append(payload, u32(timescale)...)
	payload = append(payload, u32(duration)...)
	return box("mvhd", payload)
}

// chplBox builds a version-0 Nero chapter list. Starts are in 100ns units.
func chplBox(chapters ...struct {
	start100ns uint32
	title      string
}) []byte {
	payload := []byte{0, 0, 0, 0, 0} // version + flags + reserved
	payload = append(payload, u32(uint32(len(chapters)))...)
	for _, ch := range chapters {
		payload = append(payload, u32(ch.start100ns)...)
		payload = append(payload, byte(len(ch.title)))
		payload = append(payload, ch.title...)
	}
	return box("chpl", payload)
}

func chplEntry(start100ns uint32, title string) struct {
	start100ns uint32
	title      string
} {
	return struct {
		start100ns uint32
		title      string
	}{start100ns, title}
}

// dataBox wraps a tag value in a data atom: version, flags and reserved
// precede the value.
func dataBox(value []byte) []byte {
	payload := make([]byte, 8)
	payload = append(payload, value...)
	return box("data", payload)
}

func customTag(name, value string) []byte {
	return box("----",
		box("mean", append(make([]byte, 4), "com.apple.iTunes"...)),
		box("name", append(make([]byte, 4), name...)),
		dataBox([]byte(value)),
	)
}

func metaBox(ilst []byte) []byte {
	return box("meta", make([]byte, 4), ilst)
}

func TestParseChplAndTags(t *testing.T) {
	ilst := box("ilst",
		box("\xA9nam", dataBox([]byte("A Book"))),
		box("\xA9ART", dataBox([]byte("An Author"))),
		box("\xA9alb", dataBox([]byte("The Album"))),
		box("\xA9wrt", dataBox([]byte("Sam Reader"))),
		customTag("SERIES", "The Saga"),
		customTag("SERIES PART", "3"),
	)
	udta := box("udta",
		chplBox(
			chplEntry(0, "Opening"),
			chplEntry(600_000_000, "The Road"), // 60s
		),
		metaBox(ilst),
	)
	file := append(ftypBox(), box("moov", mvhdBox(1000, 90_000), udta)...)

	meta, err := Parse(bytes.NewReader(file), int64(len(file)), "book.m4b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if meta.Title != "A Book" || meta.Artist != "An Author" || meta.Album != "The Album" {
		t.Errorf("tags = %q / %q / %q", meta.Title, meta.Artist, meta.Album)
	}
	// the composer slot carries the narrator
	if meta.Narrator != "Sam Reader" {
		t.Errorf("Narrator = %q", meta.Narrator)
	}
	if meta.Series != "The Saga" || meta.Part != "3" {
		t.Errorf("Series = %q, Part = %q", meta.Series, meta.Part)
	}
	if meta.Duration != 90*time.Second {
		t.Errorf("Duration = %v, want 90s", meta.Duration)
	}
	if len(meta.Chapters) != 2 {
		t.Fatalf("got %d chapters, want 2: %v", len(meta.Chapters), meta.Chapters)
	}
	if meta.Chapters[0].Name != "Opening" {
		t.Errorf("Chapters[0] = %+v", meta.Chapters[0])
	}
	if meta.Chapters[1].Start != 60*time.Second || meta.Chapters[1].Name != "The Road" {
		t.Errorf("Chapters[1] = %+v", meta.Chapters[1])
	}
}

func TestParseChapterTrack(t *testing.T) {
	const timescale = 1000

	// chapter title samples live in an mdat right after ftyp
	sample := func(title string) []byte {
		out := []byte{byte(len(title) >> 8), byte(len(title))}
		return append(out, title...)
	}
	samples := [][]byte{sample("One"), sample("Two")}
	ftyp := ftypBox()
	sampleOffsets := make([]uint32, len(samples))
	var mdatPayload []byte
	for i, s := range samples {
		sampleOffsets[i] = uint32(len(ftyp) + 8 + len(mdatPayload))
		mdatPayload = append(mdatPayload, s...)
	}
	mdat := box("mdat", mdatPayload)

	tkhd := func(trackID uint32) []byte {
		payload := make([]byte, 12)
		payload = append(payload, u32(trackID)...)
		return box("tkhd", payload)
	}
	mdhd := func() []byte {
		payload := make([]byte, 12)
		payload = append(payload, u32(timescale)...)
		payload = append(payload, u32(0)...)
		return box("mdhd", payload)
	}
	stsd := box("stsd", make([]byte, 4), u32(1), u32(16), []byte("text"))
	stts := box("stts", make([]byte, 4), u32(2),
		u32(1), u32(60*timescale),
		u32(1), u32(30*timescale),
	)
	stco := box("stco", make([]byte, 4), u32(2), u32(sampleOffsets[0]), u32(sampleOffsets[1]))

	audioTrak := box("trak",
		tkhd(1),
		box("tref", box("chap", u32(2))),
	)
	textTrak := box("trak",
		tkhd(2),
		box("mdia", mdhd(), box("minf", box("stbl", stsd, stts, stco))),
	)
	moov := box("moov", mvhdBox(1000, 95_000), audioTrak, textTrak)
	file := append(append(ftyp, mdat...), moov...)

	meta, err := Parse(bytes.NewReader(file), int64(len(file)), "chaptered.m4b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(meta.Chapters) != 2 {
		t.Fatalf("got %d chapters, want 2: %v (warnings: %v)", len(meta.Chapters), meta.Chapters, meta.Warnings)
	}
	if meta.Chapters[0].Name != "One" || meta.Chapters[0].Start != 0 {
		t.Errorf("Chapters[0] = %+v", meta.Chapters[0])
	}
	if meta.Chapters[1].Name != "Two" || meta.Chapters[1].Start != 60*time.Second {
		t.Errorf("Chapters[1] = %+v", meta.Chapters[1])
	}
}

func TestParseNoMoov(t *testing.T) {
	file := append(ftypBox(), box("mdat", []byte("audio"))...)
	meta, err := Parse(bytes.NewReader(file), int64(len(file)), "stub.m4a")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if meta.Duration != 0 || len(meta.Chapters) != 0 {
		t.Errorf("unexpected metadata without moov: %+v", meta)
	}
}

func TestExtractCover(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}
	ilst := box("ilst", box("covr", dataBox(image)))
	file := append(ftypBox(), box("moov", mvhdBox(1000, 1000), box("udta", metaBox(ilst)))...)

	got, err := ExtractCover(bytes.NewReader(file), int64(len(file)), "book.m4b")
	if err != nil {
		t.Fatalf("ExtractCover: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Errorf("cover = %x, want %x", got, image)
	}
}

func TestExtractCoverAbsent(t *testing.T) {
	file := append(ftypBox(), box("moov", mvhdBox(1000, 1000))...)
	got, err := ExtractCover(bytes.NewReader(file), int64(len(file)), "plain.m4a")
	if err != nil {
		t.Fatalf("ExtractCover: %v", err)
	}
	if got != nil {
		t.Errorf("cover = %x, want none", got)
	}
}

func TestReadAtomHeaderExtendedSize(t *testing.T) {
	payload := []byte("0123456789")
	raw := u32(1)
	raw = append(raw, "mdat"...)
	raw = binary.BigEndian.AppendUint64(raw, uint64(16+len(payload)))
	raw = append(raw, payload...)

	sr := newTestReader(raw)
	atom, err := readAtomHeader(sr, 0)
	if err != nil {
		t.Fatalf("readAtomHeader: %v", err)
	}
	if atom.HeaderSize != longHeaderSize {
		t.Errorf("HeaderSize = %d, want %d", atom.HeaderSize, longHeaderSize)
	}
	if atom.DataSize() != int64(len(payload)) {
		t.Errorf("DataSize = %d, want %d", atom.DataSize(), len(payload))
	}
}

func TestReadAtomHeaderRejectsTinySize(t *testing.T) {
	raw := u32(4)
	raw = append(raw, "free"...)
	if _, err := readAtomHeader(newTestReader(raw), 0); err == nil {
		t.Fatal("expected an error for an atom smaller than its header")
	}
}

func TestFindAtomMissing(t *testing.T) {
	file := append(ftypBox(), box("free", nil)...)
	if _, err := findAtom(newTestReader(file), 0, int64(len(file)), "moov"); err == nil {
		t.Fatal("expected an error when the atom is absent")
	}
}
