// Package scanner walks library roots, analyzes audio files and reconciles
// the results into the persisted catalog.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiofolio/audiofolio-server/internal/domain"
	"github.com/audiofolio/audiofolio-server/internal/errors"
	"github.com/audiofolio/audiofolio-server/internal/id"
)

// Catalog is the persisted book store the scanner reconciles against.
// *store.Store satisfies it.
type Catalog interface {
	GetBook(ctx context.Context, id string) (*domain.BookContent, error)
	PutBook(ctx context.Context, book *domain.BookContent) error
	SetAllInactiveExcept(ctx context.Context, keep []string) error
	DeleteBookmarksForChapters(ctx context.Context, bookID string, gone map[string]struct{}) error
}

// CoverProvider extracts and stores a book's embedded cover art.
// *covers.Extractor satisfies it.
type CoverProvider interface {
	CoverFor(ctx context.Context, audioPath, bookID string) (coverPath, blurHash string, err error)
}

// MediaScanner reconciles the configured library roots into the catalog.
// Exactly one scan runs at a time: Scan joins an in-flight run, Rescan
// cancels it and starts over.
type MediaScanner struct {
	logger  *slog.Logger
	walker  *Walker
	parser  *ChapterParser
	catalog Catalog
	covers  CoverProvider
	roots   []domain.RootFolder

	mu      sync.Mutex
	current *scanRun
}

type scanRun struct {
	done   chan struct{}
	cancel context.CancelFunc
	result *ScanResult
	err    error
}

// NewMediaScanner creates a media scanner over the given roots. covers may
// be nil to skip cover extraction.
func NewMediaScanner(logger *slog.Logger, walker *Walker, parser *ChapterParser, catalog Catalog, covers CoverProvider, roots []domain.RootFolder) *MediaScanner {
	return &MediaScanner{
		logger:  logger,
		walker:  walker,
		parser:  parser,
		catalog: catalog,
		covers:  covers,
		roots:   roots,
	}
}

// Scan runs a full scan, or joins the scan already in flight. Idempotent:
// scanning an unchanged tree twice produces zero catalog writes the second
// time.
func (s *MediaScanner) Scan(ctx context.Context) (*ScanResult, error) {
	return s.wait(ctx, s.startOrJoin(false))
}

// Rescan cancels any scan in flight and starts a fresh one.
func (s *MediaScanner) Rescan(ctx context.Context) (*ScanResult, error) {
	return s.wait(ctx, s.startOrJoin(true))
}

func (s *MediaScanner) startOrJoin(restart bool) *scanRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		select {
		case <-s.current.done:
			// finished, fall through and start fresh
		default:
			if !restart {
				return s.current
			}
			s.current.cancel()
			<-s.current.done
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &scanRun{done: make(chan struct{}), cancel: cancel}
	s.current = run

	go func() {
		defer close(run.done)
		defer cancel()
		run.result, run.err = s.scan(runCtx)
	}()
	return run
}

func (s *MediaScanner) wait(ctx context.Context, run *scanRun) (*ScanResult, error) {
	select {
	case <-run.done:
		return run.result, run.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// scan is one full reconciliation pass. Aborting between units leaves every
// book committed so far valid.
func (s *MediaScanner) scan(ctx context.Context) (*ScanResult, error) {
	result := &ScanResult{StartedAt: time.Now()}
	s.logger.Info("scan started", "roots", len(s.roots))

	var units []BookUnit
	var rootErrs []error
	for _, root := range s.roots {
		found, err := s.walker.EnumerateUnits(ctx, root)
		if err != nil {
			if ctx.Err() != nil {
				return result, errors.ErrScanCanceled.WithCause(ctx.Err())
			}
			s.logger.Error("cannot enumerate root", "path", root.Path, "error", err)
			rootErrs = append(rootErrs, fmt.Errorf("root %s: %w", root.Path, err))
			continue
		}
		units = append(units, found...)
	}

	// Soft-delete active books whose unit vanished. Skipped when a root was
	// inaccessible: an unplugged drive must not deactivate its books.
	if len(rootErrs) == 0 {
		keep := make([]string, len(units))
		for i, unit := range units {
			keep[i] = id.ForPath("book", unit.Path)
		}
		if err := s.catalog.SetAllInactiveExcept(ctx, keep); err != nil {
			return result, err
		}
	}

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			result.CompletedAt = time.Now()
			return result, errors.ErrScanCanceled.WithCause(err)
		}
		if err := s.scanUnit(ctx, unit, result); err != nil {
			if ctx.Err() != nil {
				result.CompletedAt = time.Now()
				return result, errors.ErrScanCanceled.WithCause(ctx.Err())
			}
			s.logger.Error("unit failed", "path", unit.Path, "error", err)
			result.Errors++
		}
	}

	result.CompletedAt = time.Now()
	s.logger.Info("scan finished",
		"books", result.Books,
		"added", result.Added,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"skipped", result.Skipped,
		"errors", result.Errors,
		"duration", result.CompletedAt.Sub(result.StartedAt),
	)
	return result, errors.Join(rootErrs...)
}

// scanUnit parses one unit's chapters and reconciles its book record.
func (s *MediaScanner) scanUnit(ctx context.Context, unit BookUnit, result *ScanResult) error {
	files, err := s.walker.AudioFiles(ctx, unit)
	if err != nil {
		return err
	}
	parsed, err := s.parser.ParseChapters(ctx, unit, files)
	if err != nil {
		return err
	}
	if len(parsed.Chapters) == 0 {
		// A folder with nothing playable is ignored, not an empty book.
		result.Skipped++
		return nil
	}
	result.Books++

	chapterIDs := make([]string, len(parsed.Chapters))
	for i, ch := range parsed.Chapters {
		chapterIDs[i] = ch.ID
	}
	author := parsed.Author
	if author == "" {
		author = unit.Author
	}

	bookID := id.ForPath("book", unit.Path)
	existing, err := s.catalog.GetBook(ctx, bookID)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		book, err := domain.NewBookContent(bookID, unit.Name, author, chapterIDs, time.Now())
		if err != nil {
			return err
		}
		s.applyCover(ctx, book, files)
		if err := s.catalog.PutBook(ctx, book); err != nil {
			return err
		}
		result.Added++
		s.logger.Info("book added", "id", bookID, "name", unit.Name, "chapters", len(chapterIDs))
		return nil

	case err != nil:
		return err
	}

	updated := *existing
	updated.Name = unit.Name
	updated.Chapters = chapterIDs
	updated.IsActive = true
	if updated.Author == "" {
		updated.Author = author
	}
	if !updated.HasChapter(updated.CurrentChapter) {
		// The playing chapter vanished; start over at the new first one.
		updated.CurrentChapter = chapterIDs[0]
		updated.PositionInChapterMs = 0
	}
	if updated.Cover == "" {
		s.applyCover(ctx, &updated, files)
	}

	if updated.Equal(existing) {
		result.Unchanged++
		return nil
	}
	if err := s.catalog.PutBook(ctx, &updated); err != nil {
		return err
	}
	result.Updated++

	gone := make(map[string]struct{})
	for _, prev := range existing.Chapters {
		if !updated.HasChapter(prev) {
			gone[prev] = struct{}{}
		}
	}
	if len(gone) > 0 {
		if err := s.catalog.DeleteBookmarksForChapters(ctx, bookID, gone); err != nil {
			s.logger.Error("bookmark cleanup failed", "book", bookID, "error", err)
		}
	}

	s.logger.Info("book updated", "id", bookID, "name", unit.Name, "chapters", len(chapterIDs))
	return nil
}

// applyCover fills the book's cover path and placeholder from its first
// audio file. Silent on failure; covers are best-effort.
func (s *MediaScanner) applyCover(ctx context.Context, book *domain.BookContent, files []FileCandidate) {
	if s.covers == nil || len(files) == 0 {
		return
	}
	coverPath, blurHash, err := s.covers.CoverFor(ctx, files[0].Path, book.ID)
	if err != nil {
		s.logger.Warn("cover extraction failed", "book", book.ID, "error", err)
		return
	}
	book.Cover = coverPath
	book.CoverBlurHash = blurHash
}
