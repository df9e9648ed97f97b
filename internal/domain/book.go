// Package domain contains the core entities of the AudioFolio catalog.
package domain

import (
	"slices"
	"time"

	"github.com/audiofolio/audiofolio-server/internal/errors"
)

// MarkData is one chapter mark within an audio file. Marks in a chapter are
// unique by start position and sorted ascending; a mark's end is the next
// mark's start, or the file duration for the last one.
type MarkData struct {
	StartMs int64  `json:"start_ms"`
	Name    string `json:"name"`
}

// Chapter is one analyzed audio file. Chapters are never mutated in place:
// a refresh replaces the whole record under the same ID.
type Chapter struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	DurationMs       int64      `json:"duration_ms"`
	FileLastModified time.Time  `json:"file_last_modified"`
	Marks            []MarkData `json:"marks,omitempty"`
}

// BookContent is the persisted state of one book: its ordered chapter list
// plus playback progress. Books are soft-deleted by flipping IsActive so
// progress and bookmarks survive a folder being unplugged and replugged.
type BookContent struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Author              string    `json:"author,omitempty"`
	Chapters            []string  `json:"chapters"`
	CurrentChapter      string    `json:"current_chapter"`
	PositionInChapterMs int64     `json:"position_in_chapter_ms"`
	PlaybackSpeed       float32   `json:"playback_speed"`
	IsActive            bool      `json:"is_active"`
	AddedAt             time.Time `json:"added_at"`
	LastPlayedAt        time.Time `json:"last_played_at"`
	Cover               string    `json:"cover,omitempty"`
	CoverBlurHash       string    `json:"cover_blur_hash,omitempty"`
}

// Validate enforces the catalog integrity invariant: an active book has a
// non-empty chapter list and its current chapter is one of them. A violation
// is a programmer error and must abort the single book write that produced
// it.
func (b *BookContent) Validate() error {
	if !b.IsActive {
		return nil
	}
	if len(b.Chapters) == 0 {
		return errors.IntegrityViolationf("book %s is active with no chapters", b.ID)
	}
	if !slices.Contains(b.Chapters, b.CurrentChapter) {
		return errors.IntegrityViolationf("book %s: current chapter %s not in chapter list", b.ID, b.CurrentChapter)
	}
	return nil
}

// HasChapter reports whether id is in the book's chapter list.
func (b *BookContent) HasChapter(id string) bool {
	return slices.Contains(b.Chapters, id)
}

// Book is a BookContent joined with its resolved chapters, in list order.
type Book struct {
	BookContent
	ChapterRecords []Chapter `json:"chapter_records"`
}

// NewBookContent builds a fresh active book positioned at its first chapter.
func NewBookContent(id, name, author string, chapterIDs []string, now time.Time) (*BookContent, error) {
	b := &BookContent{
		ID:            id,
		Name:          name,
		Author:        author,
		Chapters:      chapterIDs,
		PlaybackSpeed: 1.0,
		IsActive:      true,
		AddedAt:       now,
	}
	if len(chapterIDs) > 0 {
		b.CurrentChapter = chapterIDs[0]
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Equal reports whether two book records carry the same persisted state.
// Used to skip redundant catalog writes during rescans.
func (b *BookContent) Equal(other *BookContent) bool {
	return b.ID == other.ID &&
		b.Name == other.Name &&
		b.Author == other.Author &&
		slices.Equal(b.Chapters, other.Chapters) &&
		b.CurrentChapter == other.CurrentChapter &&
		b.PositionInChapterMs == other.PositionInChapterMs &&
		b.PlaybackSpeed == other.PlaybackSpeed &&
		b.IsActive == other.IsActive &&
		b.AddedAt.Equal(other.AddedAt) &&
		b.LastPlayedAt.Equal(other.LastPlayedAt) &&
		b.Cover == other.Cover &&
		b.CoverBlurHash == other.CoverBlurHash
}
