package ogg

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
)

const (
	packetTypeIdentification = 1
	packetTypeComment        = 3
)

// identification is the Vorbis id header: the bits we care about.
type identification struct {
	channels   uint8
	sampleRate uint32
}

func parseIdentification(packet []byte, path string) (*identification, error) {
	if len(packet) < 16 || packet[0] != packetTypeIdentification || string(packet[1:7]) != "vorbis" {
		return nil, &audiometa.UnsupportedFormatError{Path: path, Reason: "first packet is not a vorbis identification header"}
	}
	version := binary.LittleEndian.Uint32(packet[7:11])
	if version != 0 {
		return nil, &audiometa.UnsupportedFormatError{Path: path, Reason: "unsupported vorbis version"}
	}
	return &identification{
		channels:   packet[11],
		sampleRate: binary.LittleEndian.Uint32(packet[12:16]),
	}, nil
}

// comments is a parsed Vorbis comment header: the vendor string and the
// KEY=value entries with keys uppercased.
type comments struct {
	vendor string
	fields map[string][]string
	order  []string
}

func parseComments(packet []byte, path string) (*comments, error) {
	corrupt := func(reason string) error {
		return &audiometa.CorruptedFileError{Path: path, Reason: reason}
	}
	if len(packet) < 7 || packet[0] != packetTypeComment || string(packet[1:7]) != "vorbis" {
		return nil, corrupt("second packet is not a vorbis comment header")
	}
	pos := 7
	readU32 := func() (uint32, error) {
		if pos+4 > len(packet) {
			return 0, corrupt("truncated vorbis comment header")
		}
		v := binary.LittleEndian.Uint32(packet[pos : pos+4])
		pos += 4
		return v, nil
	}
	readString := func() (string, error) {
		n, err := readU32()
		if err != nil {
			return "", err
		}
		if pos+int(n) > len(packet) {
			return "", corrupt("vorbis comment string exceeds packet")
		}
		s := string(packet[pos : pos+int(n)])
		pos += int(n)
		return s, nil
	}

	cm := &comments{fields: make(map[string][]string)}
	var err error
	if cm.vendor, err = readString(); err != nil {
		return nil, err
	}
	count, err := readU32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		entry, err := readString()
		if err != nil {
			return nil, err
		}
		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		key = strings.ToUpper(key)
		if _, seen := cm.fields[key]; !seen {
			cm.order = append(cm.order, key)
		}
		cm.fields[key] = append(cm.fields[key], value)
	}
	return cm, nil
}

func (c *comments) first(key string) string {
	if vs := c.fields[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// chapters pairs CHAPTERnnn time comments with their CHAPTERnnnNAME
// counterparts. Entries missing either half, or with an unparsable time, are
// dropped and reported as warnings.
func (c *comments) chapters() (marks []audiometa.Mark, warnings []string) {
	type entry struct {
		start   time.Duration
		hasTime bool
		name    string
		hasName bool
	}
	byNumber := make(map[int]*entry)
	var numbers []int
	get := func(n int) *entry {
		e, ok := byNumber[n]
		if !ok {
			e = &entry{}
			byNumber[n] = e
			numbers = append(numbers, n)
		}
		return e
	}

	for _, key := range c.order {
		rest, ok := strings.CutPrefix(key, "CHAPTER")
		if !ok {
			continue
		}
		rest, isName := strings.CutSuffix(rest, "NAME")
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		value := c.first(key)
		e := get(n)
		if isName {
			e.name, e.hasName = value, true
			continue
		}
		start, err := parseChapterTime(value)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("chapter %d: %v", n, err))
			continue
		}
		e.start, e.hasTime = start, true
	}

	for _, n := range numbers {
		e := byNumber[n]
		if !e.hasTime || !e.hasName {
			warnings = append(warnings, fmt.Sprintf("chapter %d: incomplete comment pair", n))
			continue
		}
		marks = append(marks, audiometa.Mark{Start: e.start, Name: e.name})
	}
	return marks, warnings
}

// parseChapterTime parses HH:MM:SS.mmm with any number of hour digits.
func parseChapterTime(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed chapter time %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("malformed chapter time %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("malformed chapter time %q", s)
	}
	sec, milli, found := strings.Cut(parts[2], ".")
	if !found || len(milli) != 3 {
		return 0, fmt.Errorf("malformed chapter time %q", s)
	}
	seconds, err := strconv.Atoi(sec)
	if err != nil || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("malformed chapter time %q", s)
	}
	millis, err := strconv.Atoi(milli)
	if err != nil || millis < 0 {
		return 0, fmt.Errorf("malformed chapter time %q", s)
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}
