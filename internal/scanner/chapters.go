package scanner

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/audiofolio/audiofolio-server/internal/domain"
	"github.com/audiofolio/audiofolio-server/internal/id"
	"github.com/audiofolio/audiofolio-server/pkg/audiometa"
)

// ChapterCache is the persisted chapter lookup the parser runs against.
// *store.Store satisfies it.
type ChapterCache interface {
	GetOrPutChapter(ctx context.Context, id string, lastModified time.Time, compute func() (*domain.Chapter, error)) (*domain.Chapter, error)
}

// ChapterParser turns a book unit's audio files into a normalized chapter
// list. Files whose modification time matches the cached chapter record are
// reused without re-analysis.
type ChapterParser struct {
	logger   *slog.Logger
	analyzer *Analyzer
	cache    ChapterCache
	workers  int
}

// NewChapterParser creates a chapter parser. workers bounds the per-unit
// analysis pool; 0 means one per CPU.
func NewChapterParser(logger *slog.Logger, analyzer *Analyzer, cache ChapterCache, workers int) *ChapterParser {
	return &ChapterParser{logger: logger, analyzer: analyzer, cache: cache, workers: workers}
}

// ParsedBook is the result of parsing one unit: its chapters in natural file
// order plus the author pulled from freshly analyzed metadata, when any file
// carried one.
type ParsedBook struct {
	Chapters []domain.Chapter
	Author   string
}

// ParseChapters analyzes every audio file of the unit, in parallel, keeping
// the natural file order in the result. Unparsable files are dropped.
func (p *ChapterParser) ParseChapters(ctx context.Context, unit BookUnit, files []FileCandidate) (*ParsedBook, error) {
	if len(files) == 0 {
		return &ParsedBook{}, nil
	}

	workers := p.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	type result struct {
		chapter *domain.Chapter
		author  string
		index   int
		err     error
	}
	jobs := make(chan int, len(files))
	results := make(chan result, len(files))

	for w := 0; w < workers; w++ {
		go func() {
			for i := range jobs {
				select {
				case <-ctx.Done():
					results <- result{index: i, err: ctx.Err()}
					continue
				default:
				}
				chapter, author, err := p.parseFile(ctx, files[i])
				results <- result{chapter: chapter, author: author, index: i, err: err}
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)

	chapters := make([]*domain.Chapter, len(files))
	authors := make([]string, len(files))
	var firstErr error
	for n := 0; n < len(files); n++ {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		chapters[r.index] = r.chapter
		authors[r.index] = r.author
	}
	if firstErr != nil {
		return nil, firstErr
	}

	parsed := &ParsedBook{}
	for i, ch := range chapters {
		if ch == nil {
			continue
		}
		parsed.Chapters = append(parsed.Chapters, *ch)
		if parsed.Author == "" && authors[i] != "" {
			parsed.Author = authors[i]
		}
	}
	return parsed, nil
}

// parseFile resolves one file through the cache. A cache hit skips analysis
// entirely; a miss or a changed modification time re-analyzes and replaces
// the record.
func (p *ChapterParser) parseFile(ctx context.Context, file FileCandidate) (*domain.Chapter, string, error) {
	chapterID := id.ForPath("ch", file.Path)

	var author string
	chapter, err := p.cache.GetOrPutChapter(ctx, chapterID, file.ModTime, func() (*domain.Chapter, error) {
		meta, err := p.analyzer.Analyze(ctx, file.Path)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return nil, nil
		}
		author = meta.Artist
		return &domain.Chapter{
			ID:               chapterID,
			Name:             meta.Title,
			DurationMs:       meta.Duration.Milliseconds(),
			FileLastModified: file.ModTime,
			Marks:            toMarkData(meta.Chapters),
		}, nil
	})
	if err != nil {
		return nil, "", err
	}
	return chapter, author, nil
}

func toMarkData(marks []audiometa.Mark) []domain.MarkData {
	if len(marks) == 0 {
		return nil
	}
	out := make([]domain.MarkData, len(marks))
	for i, m := range marks {
		out[i] = domain.MarkData{StartMs: m.Start.Milliseconds(), Name: m.Name}
	}
	return out
}
