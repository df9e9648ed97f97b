package matroska

import (
	"io"
	"strings"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa/internal/binary"
)

// Attachment is an embedded file carried in the Attachments element.
type Attachment struct {
	Name        string
	Description string
	MimeType    string
	Data        []byte
}

// ExtractCover returns the image attachment most likely to be the cover art,
// or nil when the file carries no image attachments. When several images are
// present the best-named one wins; ties keep the first in document order.
func ExtractCover(r io.ReaderAt, size int64, path string) (*Attachment, error) {
	sr := binary.NewSafeReader(r, size, path)
	if err := checkHeader(sr); err != nil {
		return nil, err
	}
	segment, err := findSegment(sr)
	if err != nil {
		return nil, err
	}

	var best *Attachment
	bestScore := -1
	err = forEachChild(sr, segment, func(child *element) (bool, error) {
		if child.id != idAttachments {
			return true, nil
		}
		err := forEachChild(sr, child, func(file *element) (bool, error) {
			if file.id != idAttachedFile {
				return true, nil
			}
			att, err := readAttachedFile(sr, file)
			if err != nil {
				return false, err
			}
			if !strings.HasPrefix(att.MimeType, "image/") {
				return true, nil
			}
			if score := coverScore(att); score > bestScore {
				best, bestScore = att, score
			}
			return true, nil
		})
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return best, nil
}

func readAttachedFile(sr *binary.SafeReader, el *element) (*Attachment, error) {
	att := &Attachment{}
	err := forEachChild(sr, el, func(child *element) (bool, error) {
		switch child.id {
		case idFileName:
			s, err := readString(sr, child)
			if err != nil {
				return false, err
			}
			att.Name = s
		case idFileDescription:
			s, err := readString(sr, child)
			if err != nil {
				return false, err
			}
			att.Description = s
		case idFileMimeType:
			s, err := readString(sr, child)
			if err != nil {
				return false, err
			}
			att.MimeType = s
		case idFileData:
			b, err := readBytes(sr, child)
			if err != nil {
				return false, err
			}
			att.Data = b
		}
		return true, nil
	})
	return att, err
}

// coverScore ranks attachments by how cover-like they are. Both the file
// name and the description carry keywords; the better of the two wins, so a
// generically named scan with a "front cover" description still ranks first.
func coverScore(att *Attachment) int {
	return max(keywordScore(att.Name), keywordScore(att.Description))
}

func keywordScore(s string) int {
	n := strings.ToLower(s)
	switch {
	case strings.Contains(n, "front"):
		return 10
	case strings.Contains(n, "cover"):
		return 9
	case strings.Contains(n, "folder"), strings.Contains(n, "album"):
		return 8
	case strings.Contains(n, "artwork"), strings.Contains(n, "thumb"):
		return 6
	case n != "":
		return 2
	default:
		return 1
	}
}
