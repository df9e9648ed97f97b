package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/matroska"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/mp3"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/mp4"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa/ogg"
)

// Analyzer extracts metadata from audio files. It is the single place where
// an unreadable file turns into "ignored by the scan" instead of an error:
// Analyze returns nil metadata, not an error, for anything unparsable.
type Analyzer struct {
	logger             *slog.Logger
	preferredLanguages []string
}

// NewAnalyzer creates a new analyzer. preferredLanguages pick chapter names
// in multi-language Matroska files.
func NewAnalyzer(logger *slog.Logger, preferredLanguages []string) *Analyzer {
	return &Analyzer{logger: logger, preferredLanguages: preferredLanguages}
}

// Analyze sniffs the container and dispatches to the matching format parser.
// Returns nil when the file is not a known audio container, fails to parse,
// or probes a non-positive duration.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*audiometa.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		a.logger.Warn("cannot open file", "path", path, "error", err)
		return nil, nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		a.logger.Warn("cannot stat file", "path", path, "error", err)
		return nil, nil
	}
	size := info.Size()

	format, err := audiometa.DetectFormat(f, size, path)
	if err != nil || format == audiometa.FormatUnknown {
		a.logger.Debug("unknown container", "path", path)
		return nil, nil
	}

	var meta *audiometa.Metadata
	switch format {
	case audiometa.FormatMP4:
		meta, err = mp4.Parse(f, size, path)
	case audiometa.FormatMatroska:
		meta, err = a.parseMatroska(f, size, path)
	case audiometa.FormatOgg:
		meta, err = ogg.Parse(f, size, path)
	case audiometa.FormatMP3:
		meta, err = mp3.Parse(f, size, path)
	}
	if err != nil {
		a.logger.Warn("failed to parse file", "path", path, "format", format.String(), "error", err)
		return nil, nil
	}
	if meta == nil || meta.Duration <= 0 {
		a.logger.Debug("no usable duration", "path", path)
		return nil, nil
	}

	if meta.Title == "" {
		base := filepath.Base(path)
		meta.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	for _, warning := range meta.Warnings {
		a.logger.Debug("parse warning", "path", path, "warning", warning)
	}
	return meta, nil
}

func (a *Analyzer) parseMatroska(f *os.File, size int64, path string) (*audiometa.Metadata, error) {
	info, err := matroska.ReadMediaInfo(f, size, path, a.preferredLanguages)
	if err != nil {
		return nil, err
	}
	return &audiometa.Metadata{
		Title:    info.Title,
		Artist:   info.Artist,
		Album:    info.Album,
		Duration: info.Duration,
		FileSize: size,
		Format:   audiometa.FormatMatroska,
		Chapters: audiometa.NormalizeMarks(info.Chapters),
		Warnings: info.Warnings,
	}, nil
}
