package covers

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/matroska"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/mp4"
)

// Extractor pulls embedded cover art out of audio files. Matroska
// attachments and the MP4 covr atom are the two sources; files without
// embedded art are simply left cover-less.
type Extractor struct {
	storage *Storage
	logger  *slog.Logger
}

// NewExtractor creates a cover extractor writing into storage.
func NewExtractor(storage *Storage, logger *slog.Logger) *Extractor {
	return &Extractor{storage: storage, logger: logger}
}

// ExtractAndStore reads embedded cover art from the audio file and stores it
// for the book. Returns the stored cover path, or "" when the file embeds no
// art. Extraction failures are logged, not fatal: a book without a cover is
// still a book.
func (e *Extractor) ExtractAndStore(ctx context.Context, audioPath, bookID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := e.extract(audioPath)
	if err != nil {
		e.logger.Warn("cover extraction failed", "path", audioPath, "error", err)
		return "", nil
	}
	if len(data) == 0 {
		e.logger.Debug("no embedded cover", "path", audioPath)
		return "", nil
	}

	data = NormalizeCover(data)
	if err := e.storage.Save(bookID, data); err != nil {
		return "", fmt.Errorf("save cover: %w", err)
	}
	e.logger.Debug("cover stored", "book_id", bookID, "size", len(data))
	return e.storage.Path(bookID), nil
}

// CoverFor extracts and stores the book's cover and computes its BlurHash
// placeholder. Both are "" when the file embeds no art; a failed BlurHash
// still returns the cover path.
func (e *Extractor) CoverFor(ctx context.Context, audioPath, bookID string) (coverPath, blurHash string, err error) {
	coverPath, err = e.ExtractAndStore(ctx, audioPath, bookID)
	if err != nil || coverPath == "" {
		return "", "", err
	}
	data, err := e.storage.Get(bookID)
	if err != nil {
		return coverPath, "", nil
	}
	hash, err := ComputeBlurHash(data)
	if err != nil {
		e.logger.Debug("blurhash failed", "book_id", bookID, "error", err)
		return coverPath, "", nil
	}
	return coverPath, hash, nil
}

func (e *Extractor) extract(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	format, err := audiometa.DetectFormat(f, size, path)
	if err != nil {
		return nil, nil
	}

	switch format {
	case audiometa.FormatMatroska:
		att, err := matroska.ExtractCover(f, size, path)
		if err != nil {
			return nil, err
		}
		if att == nil {
			return nil, nil
		}
		return att.Data, nil
	case audiometa.FormatMP4:
		return mp4.ExtractCover(f, size, path)
	default:
		return nil, nil
	}
}
