package matroska

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// MediaInfo is what a Matroska file tells us about itself.
type MediaInfo struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
	Chapters []audiometa.Mark
	Warnings []string
}

// chapterName is one ChapterDisplay: a string plus the languages it applies to.
type chapterName struct {
	name      string
	languages []string
}

// chapter is a parsed ChapterAtom. Children keep document order.
type chapter struct {
	start    time.Duration
	hidden   bool
	names    []chapterName
	children []*chapter
}

// ReadMediaInfo parses the EBML header, segment info, chapters and tags of a
// Matroska file. preferredLanguages pick chapter names when a file carries
// several translations; ISO 639-2 codes as written in the file work here.
func ReadMediaInfo(r io.ReaderAt, size int64, path string, preferredLanguages []string) (*MediaInfo, error) {
	sr := binary.NewSafeReader(r, size, path)
	if err := checkHeader(sr); err != nil {
		return nil, err
	}
	segment, err := findSegment(sr)
	if err != nil {
		return nil, err
	}

	info := &MediaInfo{}
	var chapters []*chapter
	err = forEachChild(sr, segment, func(child *element) (bool, error) {
		switch child.id {
		case idInfo:
			if err := readSegmentInfo(sr, child, info); err != nil {
				return false, err
			}
		case idChapters:
			ch, err := readChapters(sr, child)
			if err != nil {
				info.Warnings = append(info.Warnings, fmt.Sprintf("chapters unreadable: %v", err))
			} else {
				chapters = ch
			}
		case idTags:
			if err := readTags(sr, child, info); err != nil {
				info.Warnings = append(info.Warnings, fmt.Sprintf("tags unreadable: %v", err))
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	info.Chapters = flattenChapters(chapters, preferredLanguages)
	return info, nil
}

func checkHeader(sr *binary.SafeReader) error {
	c := sr.Cursor(0, sr.Size())
	header, err := readElement(c, sr)
	if err != nil {
		return err
	}
	if header.id != idEBML {
		return &audiometa.UnsupportedFormatError{Path: sr.Path(), Reason: "not an EBML file"}
	}
	docType := ""
	err = forEachChild(sr, header, func(child *element) (bool, error) {
		if child.id == idDocType {
			s, err := readString(sr, child)
			if err != nil {
				return false, err
			}
			docType = s
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if docType != "matroska" && docType != "webm" {
		return &audiometa.UnsupportedFormatError{
			Path:   sr.Path(),
			Reason: fmt.Sprintf("unsupported EBML doctype %q", docType),
		}
	}
	return nil
}

func findSegment(sr *binary.SafeReader) (*element, error) {
	c := sr.Cursor(0, sr.Size())
	for c.Remaining() > 0 {
		el, err := readElement(c, sr)
		if err != nil {
			return nil, err
		}
		if el.id == idSegment {
			return el, nil
		}
		c.Seek(el.end())
	}
	return nil, &audiometa.CorruptedFileError{Path: sr.Path(), Reason: "no segment element"}
}

func readSegmentInfo(sr *binary.SafeReader, el *element, info *MediaInfo) error {
	timestampScale := uint64(1_000_000) // default: timestamps in milliseconds
	var rawDuration float64
	err := forEachChild(sr, el, func(child *element) (bool, error) {
		switch child.id {
		case idTitle:
			s, err := readString(sr, child)
			if err != nil {
				return false, err
			}
			// Tags take priority over the segment title.
			if info.Title == "" {
				info.Title = s
			}
		case idTimestampScale:
			v, err := readUint(sr, child)
			if err != nil {
				return false, err
			}
			if v > 0 {
				timestampScale = v
			}
		case idDuration:
			v, err := readFloat(sr, child)
			if err != nil {
				return false, err
			}
			rawDuration = v
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if rawDuration > 0 {
		info.Duration = time.Duration(rawDuration * float64(timestampScale))
	}
	return nil
}

// readChapters picks one edition: the first usable one flagged default, or
// the first usable one with any chapters. Editions that yielded no chapters
// never block a later non-empty edition. Ordered editions have playback
// semantics chapter marks cannot represent, so they are skipped.
func readChapters(sr *binary.SafeReader, el *element) ([]*chapter, error) {
	var picked []*chapter
	err := forEachChild(sr, el, func(child *element) (bool, error) {
		if child.id != idEditionEntry {
			return true, nil
		}
		edition, isDefault, usable, err := readEdition(sr, child)
		if err != nil {
			return false, err
		}
		if !usable || len(edition) == 0 {
			return true, nil
		}
		if isDefault {
			picked = edition
			return false, nil
		}
		if picked == nil {
			picked = edition
		}
		return true, nil
	})
	return picked, err
}

func readEdition(sr *binary.SafeReader, el *element) (chapters []*chapter, isDefault, usable bool, err error) {
	usable = true
	err = forEachChild(sr, el, func(child *element) (bool, error) {
		switch child.id {
		case idEditionHidden:
			v, err := readUint(sr, child)
			if err != nil {
				return false, err
			}
			if v != 0 {
				usable = false
			}
		case idEditionOrdered:
			v, err := readUint(sr, child)
			if err != nil {
				return false, err
			}
			if v != 0 {
				usable = false
			}
		case idEditionDefault:
			v, err := readUint(sr, child)
			if err != nil {
				return false, err
			}
			isDefault = v != 0
		case idChapterAtom:
			ch, err := readChapterAtom(sr, child)
			if err != nil {
				return false, err
			}
			chapters = append(chapters, ch)
		}
		return true, nil
	})
	return chapters, isDefault, usable, err
}

func readChapterAtom(sr *binary.SafeReader, el *element) (*chapter, error) {
	ch := &chapter{}
	err := forEachChild(sr, el, func(child *element) (bool, error) {
		switch child.id {
		case idChapterTimeStart:
			v, err := readUint(sr, child)
			if err != nil {
				return false, err
			}
			ch.start = time.Duration(v) // nanoseconds
		case idChapterHidden:
			v, err := readUint(sr, child)
			if err != nil {
				return false, err
			}
			ch.hidden = v != 0
		case idChapterDisplay:
			name, err := readDisplay(sr, child)
			if err != nil {
				return false, err
			}
			ch.names = append(ch.names, name)
		case idChapterAtom:
			nested, err := readChapterAtom(sr, child)
			if err != nil {
				return false, err
			}
			ch.children = append(ch.children, nested)
		}
		return true, nil
	})
	return ch, err
}

func readDisplay(sr *binary.SafeReader, el *element) (chapterName, error) {
	var cn chapterName
	err := forEachChild(sr, el, func(child *element) (bool, error) {
		switch child.id {
		case idChapString:
			s, err := readString(sr, child)
			if err != nil {
				return false, err
			}
			cn.name = s
		case idChapLanguage:
			s, err := readString(sr, child)
			if err != nil {
				return false, err
			}
			cn.languages = append(cn.languages, s)
		}
		return true, nil
	})
	return cn, err
}

func readTags(sr *binary.SafeReader, el *element, info *MediaInfo) error {
	return forEachChild(sr, el, func(tag *element) (bool, error) {
		if tag.id != idTag {
			return true, nil
		}
		err := forEachChild(sr, tag, func(st *element) (bool, error) {
			if st.id != idSimpleTag {
				return true, nil
			}
			name, value, err := readSimpleTag(sr, st)
			if err != nil {
				return false, err
			}
			switch strings.ToUpper(name) {
			case "TITLE":
				info.Title = value
			case "ALBUM":
				info.Album = value
			case "ARTIST", "PERFORMER":
				info.Artist = value
			}
			return true, nil
		})
		return err == nil, err
	})
}

func readSimpleTag(sr *binary.SafeReader, el *element) (name, value string, err error) {
	err = forEachChild(sr, el, func(child *element) (bool, error) {
		switch child.id {
		case idTagName:
			s, err := readString(sr, child)
			if err != nil {
				return false, err
			}
			name = s
		case idTagString:
			s, err := readString(sr, child)
			if err != nil {
				return false, err
			}
			value = s
		}
		return true, nil
	})
	return name, value, err
}

// flattenChapters turns the chapter tree into a flat list in document order,
// skipping hidden atoms. A nested atom sharing its parent's start time gets
// nudged forward so every mark keeps a distinct position.
func flattenChapters(chapters []*chapter, preferredLanguages []string) []audiometa.Mark {
	var marks []audiometa.Mark
	var walk func(chs []*chapter, depth time.Duration)
	walk = func(chs []*chapter, depth time.Duration) {
		for i, ch := range chs {
			if ch.hidden {
				continue
			}
			start := ch.start
			if i == 0 {
				start += depth
			}
			// placeholder numbering is per sibling level, not global
			marks = append(marks, audiometa.Mark{
				Start: start,
				Name:  resolveName(ch.names, preferredLanguages, i+1),
			})
			walk(ch.children, depth+time.Millisecond)
		}
	}
	walk(chapters, 0)
	return marks
}

// resolveName picks the display string for the first preferred language that
// any name claims, then falls back to the first name, then to a numbered
// placeholder.
func resolveName(names []chapterName, preferredLanguages []string, position int) string {
	for _, pref := range preferredLanguages {
		for _, n := range names {
			if n.name == "" {
				continue
			}
			for _, lang := range n.languages {
				if languageMatches(pref, lang) {
					return n.name
				}
			}
		}
	}
	for _, n := range names {
		if n.name != "" {
			return n.name
		}
	}
	return fmt.Sprintf("Chapter %d", position)
}

// languageMatches compares two language codes, tolerating the mix of ISO
// 639-1, 639-2/B and 639-2/T codes found in the wild ("de", "ger" and "deu"
// all name German).
func languageMatches(a, b string) bool {
	if a == b {
		return true
	}
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	baseA, confA := ta.Base()
	baseB, confB := tb.Base()
	if confA == language.No || confB == language.No {
		return false
	}
	return baseA == baseB
}
