package mp3

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
)

// parseChapFrame reads one CHAP frame: a null-terminated element id, four
// 32-bit time and offset fields, then embedded subframes carrying the title.
func parseChapFrame(f frame, majorVersion byte) (audiometa.Mark, error) {
	body := f.body
	idEnd := -1
	for i, b := range body {
		if b == 0 {
			idEnd = i
			break
		}
	}
	if idEnd < 0 || len(body) < idEnd+1+16 {
		return audiometa.Mark{}, fmt.Errorf("truncated CHAP frame")
	}
	startMillis := binary.BigEndian.Uint32(body[idEnd+1 : idEnd+5])
	// end time, start offset and end offset are not needed for marks
	sub := body[idEnd+17:]

	mark := audiometa.Mark{Start: time.Duration(startMillis) * time.Millisecond}
	for _, subframe := range parseFrames(sub, majorVersion) {
		if subframe.id != "TIT2" {
			continue
		}
		title, err := decodeText(subframe.body)
		if err != nil {
			return audiometa.Mark{}, fmt.Errorf("CHAP title: %w", err)
		}
		mark.Name = title
		break
	}
	return mark, nil
}
