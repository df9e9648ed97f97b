package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiofolio/audiofolio-server/internal/domain"
	"github.com/audiofolio/audiofolio-server/internal/errors"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testBook(id string, chapters ...string) *domain.BookContent {
	book := &domain.BookContent{
		ID:            id,
		Name:          "Test Book",
		Author:        "Test Author",
		Chapters:      chapters,
		PlaybackSpeed: 1.0,
		IsActive:      true,
		AddedAt:       time.Now().Truncate(time.Millisecond),
	}
	if len(chapters) > 0 {
		book.CurrentChapter = chapters[0]
	}
	return book
}

func TestPutGetBook(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	book := testBook("book-1", "ch-1", "ch-2")
	require.NoError(t, s.PutBook(ctx, book))

	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, book.Name, got.Name)
	assert.Equal(t, book.Chapters, got.Chapters)
	assert.True(t, book.Equal(got))
}

func TestGetBookNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetBook(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestPutBookRejectsIntegrityViolation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	bad := testBook("book-1", "ch-1")
	bad.CurrentChapter = "not-in-list"
	err := s.PutBook(ctx, bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIntegrityViolation))

	// the violating record must never reach the database
	_, err = s.GetBook(ctx, "book-1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSetAllInactiveExcept(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBook(ctx, testBook("book-1", "ch-1")))
	require.NoError(t, s.PutBook(ctx, testBook("book-2", "ch-2")))
	require.NoError(t, s.PutBook(ctx, testBook("book-3", "ch-3")))

	require.NoError(t, s.SetAllInactiveExcept(ctx, []string{"book-2"}))

	active, err := s.ActiveBookIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"book-2"}, active)

	// deactivated books keep their record
	got, err := s.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, "ch-1", got.CurrentChapter)
}

func TestGetOrPutChapterCaching(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	modTime := time.Now().Truncate(time.Second)

	computes := 0
	compute := func() (*domain.Chapter, error) {
		computes++
		return &domain.Chapter{
			ID:               "ch-1",
			Name:             "Chapter One",
			DurationMs:       300_000,
			FileLastModified: modTime,
			Marks:            []domain.MarkData{{StartMs: 0, Name: "Opening"}},
		}, nil
	}

	first, err := s.GetOrPutChapter(ctx, "ch-1", modTime, compute)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, computes)

	// unchanged mod time reuses the record without recomputing
	second, err := s.GetOrPutChapter(ctx, "ch-1", modTime, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, computes)
	assert.Equal(t, first.Name, second.Name)
	assert.Len(t, second.Marks, 1)

	// a newer mod time invalidates the cache
	_, err = s.GetOrPutChapter(ctx, "ch-1", modTime.Add(time.Minute), func() (*domain.Chapter, error) {
		computes++
		return &domain.Chapter{ID: "ch-1", Name: "Refreshed", FileLastModified: modTime.Add(time.Minute)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, computes)

	got, err := s.GetChapter(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "Refreshed", got.Name)
}

func TestGetOrPutChapterUnparsableStoresNothing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	chapter, err := s.GetOrPutChapter(ctx, "ch-bad", time.Now(), func() (*domain.Chapter, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, chapter)

	_, err = s.GetChapter(ctx, "ch-bad")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBookmarkLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	bm1 := &domain.Bookmark{ID: "bm-1", BookID: "book-1", ChapterID: "ch-1", TimeMs: 1000, Title: "here"}
	bm2 := &domain.Bookmark{ID: "bm-2", BookID: "book-1", ChapterID: "ch-2", TimeMs: 2000}
	other := &domain.Bookmark{ID: "bm-3", BookID: "book-2", ChapterID: "ch-1", TimeMs: 3000}
	require.NoError(t, s.PutBookmark(ctx, bm1))
	require.NoError(t, s.PutBookmark(ctx, bm2))
	require.NoError(t, s.PutBookmark(ctx, other))

	got, err := s.BookmarksForBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, s.DeleteBookmark(ctx, "bm-1"))
	got, err = s.BookmarksForBook(ctx, "book-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bm-2", got[0].ID)
}

func TestDeleteBookmarksForChapters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBookmark(ctx, &domain.Bookmark{ID: "bm-1", BookID: "book-1", ChapterID: "ch-gone"}))
	require.NoError(t, s.PutBookmark(ctx, &domain.Bookmark{ID: "bm-2", BookID: "book-1", ChapterID: "ch-kept"}))

	gone := map[string]struct{}{"ch-gone": {}}
	require.NoError(t, s.DeleteBookmarksForChapters(ctx, "book-1", gone))

	got, err := s.BookmarksForBook(ctx, "book-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ch-kept", got[0].ChapterID)
}
