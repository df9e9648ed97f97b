package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiofolio/audiofolio-server/internal/errors"
)

func TestNewBookContent(t *testing.T) {
	now := time.Now()
	book, err := NewBookContent("book-1", "A Book", "An Author", []string{"ch-1", "ch-2"}, now)
	require.NoError(t, err)

	assert.Equal(t, "book-1", book.ID)
	assert.Equal(t, "ch-1", book.CurrentChapter)
	assert.Equal(t, float32(1.0), book.PlaybackSpeed)
	assert.True(t, book.IsActive)
	assert.True(t, book.AddedAt.Equal(now))
}

func TestNewBookContentRejectsEmptyChapters(t *testing.T) {
	_, err := NewBookContent("book-1", "A Book", "", nil, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIntegrityViolation))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		book    BookContent
		wantErr bool
	}{
		{
			name: "active book with valid current chapter",
			book: BookContent{ID: "b", IsActive: true, Chapters: []string{"a", "b"}, CurrentChapter: "b"},
		},
		{
			name:    "active book with no chapters",
			book:    BookContent{ID: "b", IsActive: true},
			wantErr: true,
		},
		{
			name:    "active book with current chapter not in list",
			book:    BookContent{ID: "b", IsActive: true, Chapters: []string{"a"}, CurrentChapter: "z"},
			wantErr: true,
		},
		{
			name: "inactive book is exempt",
			book: BookContent{ID: "b", IsActive: false, CurrentChapter: "gone"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.book.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrIntegrityViolation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEqual(t *testing.T) {
	now := time.Now()
	base := func() *BookContent {
		return &BookContent{
			ID:             "b",
			Name:           "A Book",
			Author:         "An Author",
			Chapters:       []string{"ch-1", "ch-2"},
			CurrentChapter: "ch-1",
			PlaybackSpeed:  1.0,
			IsActive:       true,
			AddedAt:        now,
			Cover:          "/covers/b.jpg",
		}
	}

	a, b := base(), base()
	assert.True(t, a.Equal(b))

	b = base()
	b.PositionInChapterMs = 5000
	assert.False(t, a.Equal(b))

	b = base()
	b.Chapters = []string{"ch-1"}
	assert.False(t, a.Equal(b))

	b = base()
	b.CoverBlurHash = "LKO2?U%2Tw=w]~RBVZRi};RPxuwH"
	assert.False(t, a.Equal(b))

	// equal wall time in a different location still compares equal
	b = base()
	b.AddedAt = now.UTC()
	assert.True(t, a.Equal(b))
}

func TestHasChapter(t *testing.T) {
	book := BookContent{Chapters: []string{"ch-1", "ch-2"}}
	assert.True(t, book.HasChapter("ch-2"))
	assert.False(t, book.HasChapter("ch-9"))
}
