package domain

import "time"

// Bookmark pins a position inside one chapter of a book. Bookmarks live
// independently of rescans; they are only removed when their chapter
// disappears from the book.
type Bookmark struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	ChapterID string    `json:"chapter_id"`
	TimeMs    int64     `json:"time_ms"`
	Title     string    `json:"title,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}
